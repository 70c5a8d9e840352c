package session

import (
	"context"
	"sync"

	"github.com/mmeshcher/subscription-admin/internal/model"
	"github.com/mmeshcher/subscription-admin/internal/pricing"
)

// Dialog привязывает асинхронные операции к времени жизни открытого диалога.
// После Close результаты операций не применяются.
type Dialog struct {
	Kind string

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
}

// OpenDialog открывает диалог, дочерний к ctx.
func OpenDialog(ctx context.Context, kind string) *Dialog {
	dctx, cancel := context.WithCancel(ctx)
	return &Dialog{Kind: kind, ctx: dctx, cancel: cancel}
}

// Context возвращает контекст, отменяемый при закрытии диалога.
func (d *Dialog) Context() context.Context {
	return d.ctx
}

// Alive сообщает, что диалог ещё открыт.
func (d *Dialog) Alive() bool {
	return d.ctx.Err() == nil
}

// Apply выполняет fn, только если диалог ещё открыт. Закрытие не может произойти
// во время выполнения fn.
func (d *Dialog) Apply(fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.Alive() {
		return false
	}
	fn()
	return true
}

// Close закрывает диалог и отменяет его операции.
func (d *Dialog) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancel()
}

// RenewDialog описывает диалог продления с черновиком и пересчётом стоимости.
type RenewDialog struct {
	*Dialog

	Pricing *pricing.Debouncer

	mu    sync.Mutex
	draft model.ActionDraft
}

// NewRenewDialog открывает диалог продления, черновик заполняется данными подписки.
func NewRenewDialog(d *Dialog, debouncer *pricing.Debouncer, draft model.ActionDraft) *RenewDialog {
	return &RenewDialog{Dialog: d, Pricing: debouncer, draft: draft}
}

// Draft возвращает текущий черновик.
func (r *RenewDialog) Draft() model.ActionDraft {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draft
}

// UpdateDraft сохраняет черновик и планирует пересчёт стоимости.
func (r *RenewDialog) UpdateDraft(draft model.ActionDraft) bool {
	return r.Apply(func() {
		r.mu.Lock()
		r.draft = draft
		r.mu.Unlock()
		r.Pricing.Schedule(draft)
	})
}

// Close закрывает диалог и отменяет пересчёт стоимости.
func (r *RenewDialog) Close() {
	r.Pricing.Close()
	r.Dialog.Close()
}
