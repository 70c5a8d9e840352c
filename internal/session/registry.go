package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/subscription-admin/internal/selection"
)

// ErrSessionNotFound возвращается для неизвестной или вытесненной сессии просмотра.
var ErrSessionNotFound = errors.New("view session not found")

// DefaultTTL задаёт время простоя, после которого сессия просмотра удаляется.
const DefaultTTL = 30 * time.Minute

// View хранит сессию просмотра одной подписки в браузере оператора.
type View struct {
	ID  string
	SID string

	Slot Slot

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	controller *selection.Controller
	renew      *RenewDialog
	lastSeen   time.Time
}

// Context возвращает контекст сессии, отменяемый при её удалении.
func (v *View) Context() context.Context {
	return v.ctx
}

// Controller возвращает контроллер выбора дней.
func (v *View) Controller() *selection.Controller {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.controller
}

// SetController устанавливает контроллер выбора дней.
func (v *View) SetController(c *selection.Controller) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.controller = c
}

// Renew возвращает открытый диалог продления или nil.
func (v *View) Renew() *RenewDialog {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.renew
}

// OpenRenew открывает диалог продления, закрывая предыдущий.
func (v *View) OpenRenew(r *RenewDialog) {
	v.mu.Lock()
	prev := v.renew
	v.renew = r
	v.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
}

// CloseRenew закрывает диалог продления r, если он всё ещё открыт в сессии.
func (v *View) CloseRenew(r *RenewDialog) {
	v.mu.Lock()
	if v.renew == r {
		v.renew = nil
	}
	v.mu.Unlock()

	if r != nil {
		r.Close()
	}
}

func (v *View) touch(now time.Time) {
	v.mu.Lock()
	v.lastSeen = now
	v.mu.Unlock()
}

func (v *View) idleSince(now time.Time) time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return now.Sub(v.lastSeen)
}

func (v *View) close() {
	v.CloseRenew(v.Renew())
	v.cancel()
}

// Registry хранит сессии просмотра в памяти процесса.
type Registry struct {
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	views map[string]*View
}

// NewRegistry создаёт хранилище сессий с указанным временем простоя.
func NewRegistry(ttl time.Duration, logger *zap.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
		views:  make(map[string]*View),
	}
}

// Create создаёт сессию просмотра подписки sid.
func (r *Registry) Create(sid string) *View {
	ctx, cancel := context.WithCancel(context.Background())
	v := &View{
		ID:       uuid.NewString(),
		SID:      sid,
		ctx:      ctx,
		cancel:   cancel,
		lastSeen: r.now(),
	}

	r.mu.Lock()
	r.views[v.ID] = v
	r.mu.Unlock()

	return v
}

// Get возвращает сессию и продлевает её жизнь.
func (r *Registry) Get(id string) (*View, error) {
	r.mu.Lock()
	v, ok := r.views[id]
	r.mu.Unlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	v.touch(r.now())
	return v, nil
}

// Delete удаляет сессию и закрывает её диалоги.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	v, ok := r.views[id]
	delete(r.views, id)
	r.mu.Unlock()

	if ok {
		v.close()
	}
}

// Len возвращает количество активных сессий.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// EvictIdle удаляет сессии, простаивающие дольше TTL, и возвращает их количество.
func (r *Registry) EvictIdle() int {
	now := r.now()

	r.mu.Lock()
	var idle []*View
	for id, v := range r.views {
		if v.idleSince(now) > r.ttl {
			idle = append(idle, v)
			delete(r.views, id)
		}
	}
	r.mu.Unlock()

	for _, v := range idle {
		v.close()
	}
	return len(idle)
}

// StartReaper запускает фоновое удаление простаивающих сессий до отмены ctx.
func (r *Registry) StartReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.EvictIdle(); n > 0 {
					r.logger.Info("evicted idle view sessions", zap.Int("count", n))
				}
			}
		}
	}()
}
