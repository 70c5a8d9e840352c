// Package pricing пересчитывает стоимость тарифа при изменении черновика формы.
// Запрос отправляется после паузы во вводе; каждый новый черновик отменяет
// ожидающий таймер и запрос, уже отправленный для предыдущего черновика.
package pricing

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/subscription-admin/internal/actions"
	"github.com/mmeshcher/subscription-admin/internal/model"
)

// DefaultWindow задаёт паузу во вводе, после которой запрашивается расчёт.
const DefaultWindow = 500 * time.Millisecond

// Quoter описывает источник расчёта стоимости.
type Quoter interface {
	GetPlanPrice(ctx context.Context, req actions.PriceRequest) (model.PriceQuote, error)
}

// Debouncer хранит последний расчёт стоимости для одного черновика формы.
type Debouncer struct {
	quoter Quoter
	window time.Duration
	parent context.Context
	logger *zap.Logger

	mu       sync.Mutex
	seq      uint64
	timer    *time.Timer
	cancel   context.CancelFunc
	quote    model.PriceQuote
	hasQuote bool
	lastErr  error
	closed   bool
	onError  func(error)
}

// New создаёт Debouncer. Запросы выполняются в контексте ctx, его отмена
// равносильна Close.
func New(ctx context.Context, quoter Quoter, window time.Duration, logger *zap.Logger) *Debouncer {
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Debouncer{
		quoter: quoter,
		window: window,
		parent: ctx,
		logger: logger,
	}
}

// OnError задаёт обработчик ошибок расчёта. Отмена запроса ошибкой не считается.
func (d *Debouncer) OnError(fn func(error)) {
	d.mu.Lock()
	d.onError = fn
	d.mu.Unlock()
}

// Schedule планирует пересчёт стоимости для черновика. Пустой набор приёмов пищи
// или дней доставки сразу сбрасывает расчёт в ноль без обращения к API, даже
// если клиент, тариф или длительность ещё не заданы. Иначе, пока они не заданы,
// запрос не отправляется.
func (d *Debouncer) Schedule(draft model.ActionDraft) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	d.seq++
	d.stopLocked()

	req := actions.NewPriceRequest(draft)
	if len(req.MealsType) == 0 || len(req.DeliveryDays) == 0 {
		d.quote = model.ZeroPriceQuote()
		d.hasQuote = true
		d.lastErr = nil
		return
	}

	if req.CustomerID == 0 || req.PlanID == 0 || req.Duration <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(d.parent)
	seq := d.seq
	d.cancel = cancel
	d.timer = time.AfterFunc(d.window, func() {
		d.fire(ctx, seq, req)
	})
}

func (d *Debouncer) fire(ctx context.Context, seq uint64, req actions.PriceRequest) {
	if ctx.Err() != nil {
		return
	}

	quote, err := d.quoter.GetPlanPrice(ctx, req)

	d.mu.Lock()
	if d.closed || seq != d.seq {
		d.mu.Unlock()
		return
	}
	canceled := ctx.Err() != nil
	d.stopLocked()

	if canceled || errors.Is(err, context.Canceled) {
		d.mu.Unlock()
		return
	}

	if err != nil {
		d.lastErr = err
		onError := d.onError
		d.mu.Unlock()

		d.logger.Warn("plan price calculation failed",
			zap.Int64("planID", req.PlanID),
			zap.Int("duration", req.Duration),
			zap.Error(err),
		)
		if onError != nil {
			onError(err)
		}
		return
	}

	d.quote = quote
	d.hasQuote = true
	d.lastErr = nil
	d.mu.Unlock()
}

// Quote возвращает последний применённый расчёт и признак его наличия.
func (d *Debouncer) Quote() (model.PriceQuote, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quote, d.hasQuote
}

// Err возвращает ошибку последнего запроса, если она была после последнего успешного расчёта.
func (d *Debouncer) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

// Pending сообщает, что есть запланированный или выполняющийся запрос.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancel != nil
}

// Close отменяет ожидающий и выполняющийся запросы. Последующие вызовы Schedule игнорируются.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.stopLocked()
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}
