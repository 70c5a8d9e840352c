package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/subscription-admin/internal/actions"
	"github.com/mmeshcher/subscription-admin/internal/dayview"
	"github.com/mmeshcher/subscription-admin/internal/model"
	"github.com/mmeshcher/subscription-admin/internal/pricing"
	"github.com/mmeshcher/subscription-admin/internal/selection"
	"github.com/mmeshcher/subscription-admin/internal/session"
	"github.com/mmeshcher/subscription-admin/internal/validation"
)

var (
	// ErrNoRenewDialog возвращается при работе с закрытым диалогом продления.
	ErrNoRenewDialog = errors.New("renew dialog is not open")
	// ErrQuoteNotReady возвращается при продлении до получения расчёта стоимости.
	ErrQuoteNotReady = errors.New("price is not calculated yet")
)

// ViewState описывает состояние сессии просмотра для отображения.
type ViewState struct {
	ID           string                `json:"id"`
	Subscription *model.Subscription   `json:"subscription"`
	Version      uint64                `json:"version"`
	Summary      dayview.StatusSummary `json:"summary"`
	Chips        []dayview.StatusChip  `json:"chips"`
	Table        selection.Snapshot    `json:"table"`
}

// QuoteState описывает расчёт стоимости открытого диалога продления.
type QuoteState struct {
	Draft   model.ActionDraft `json:"draft"`
	Quote   *model.PriceQuote `json:"quote,omitempty"`
	Pending bool              `json:"pending"`
	Error   string            `json:"error,omitempty"`
}

// OpenView создаёт сессию просмотра подписки sid и загружает подписку.
func (s *Service) OpenView(ctx context.Context, sid string) (*session.View, error) {
	if !validation.IsValidSID(sid) {
		return nil, validation.Errorf("invalid subscription id %q", sid)
	}

	v := s.sessions.Create(sid)
	v.SetController(selection.NewController(sid, nil, performerFunc(s.perform), s.reloader(v), s.logger))

	if err := s.RefreshView(ctx, v); err != nil {
		s.sessions.Delete(v.ID)
		return nil, err
	}
	return v, nil
}

// View возвращает сессию просмотра по идентификатору.
func (s *Service) View(id string) (*session.View, error) {
	return s.sessions.Get(id)
}

// CloseView удаляет сессию просмотра.
func (s *Service) CloseView(id string) {
	s.sessions.Delete(id)
}

// RefreshView перечитывает подписку сессии. Если за время запроса был отправлен
// более новый запрос, ответ отбрасывается.
func (s *Service) RefreshView(ctx context.Context, v *session.View) error {
	_, _, err := s.fetchIntoView(ctx, v)
	return err
}

// fetchIntoView загружает подписку в сессию и передаёт её дни таблице выбора.
// Дни применяются с номером запроса, поэтому запоздавший ответ не заменит дни,
// уже полученные более новым запросом.
func (s *Service) fetchIntoView(ctx context.Context, v *session.View) ([]model.DeliveryGroup, uint64, error) {
	seq := v.Slot.Begin()

	sub, err := s.client.GetSubscription(ctx, v.SID)
	if err != nil {
		return nil, 0, err
	}

	if !v.Slot.Apply(seq, sub) {
		s.logger.Debug("discarded stale subscription response", zap.String("sid", v.SID), zap.Uint64("seq", seq))
		current, applied := v.Slot.Current()
		groups, err := s.group(current)
		return groups, applied, err
	}

	groups, err := s.group(sub)
	if err != nil {
		return nil, 0, err
	}
	if !v.Controller().SetGroupsAt(seq, groups) {
		s.logger.Debug("discarded stale delivery groups", zap.String("sid", v.SID), zap.Uint64("seq", seq))
	}
	return groups, seq, nil
}

func (s *Service) reloader(v *session.View) selection.Reloader {
	return func(ctx context.Context) ([]model.DeliveryGroup, uint64, error) {
		return s.fetchIntoView(ctx, v)
	}
}

// ViewState возвращает состояние сессии просмотра.
func (s *Service) ViewState(v *session.View) (*ViewState, error) {
	sub, version := v.Slot.Current()
	groups, err := s.group(sub)
	if err != nil {
		return nil, err
	}

	summary := dayview.AggregateStatuses(groups)
	return &ViewState{
		ID:           v.ID,
		Subscription: sub,
		Version:      version,
		Summary:      summary,
		Chips:        summary.Chips(),
		Table:        v.Controller().Snapshot(),
	}, nil
}

// OpenRenew открывает диалог продления с черновиком, заполненным из подписки,
// и запускает первый расчёт стоимости.
func (s *Service) OpenRenew(v *session.View) (*session.RenewDialog, error) {
	sub, _ := v.Slot.Current()
	if sub == nil {
		return nil, validation.Errorf("subscription %s is not loaded", v.SID)
	}

	dialog := session.OpenDialog(v.Context(), actions.Renew{}.Kind())
	debouncer := pricing.New(dialog.Context(), s.client, s.opts.PriceDebounce, s.logger)
	debouncer.OnError(func(err error) {
		s.logger.Warn("renew price update failed", zap.String("sid", v.SID), zap.Error(err))
	})

	r := session.NewRenewDialog(dialog, debouncer, renewDraft(sub))
	v.OpenRenew(r)
	r.UpdateDraft(r.Draft())
	return r, nil
}

// UpdateRenewDraft сохраняет черновик продления и планирует пересчёт стоимости.
func (s *Service) UpdateRenewDraft(v *session.View, draft model.ActionDraft) (*QuoteState, error) {
	r := v.Renew()
	if r == nil || !r.UpdateDraft(draft) {
		return nil, ErrNoRenewDialog
	}
	return quoteState(r), nil
}

// RenewQuote возвращает текущий расчёт стоимости диалога продления.
func (s *Service) RenewQuote(v *session.View) (*QuoteState, error) {
	r := v.Renew()
	if r == nil || !r.Alive() {
		return nil, ErrNoRenewDialog
	}
	return quoteState(r), nil
}

// SubmitRenew отправляет продление по черновику и последнему расчёту стоимости.
// После успеха диалог закрывается, а подписка перечитывается.
func (s *Service) SubmitRenew(ctx context.Context, v *session.View) (*model.Subscription, error) {
	r := v.Renew()
	if r == nil || !r.Alive() {
		return nil, ErrNoRenewDialog
	}
	if r.Pricing.Pending() {
		return nil, ErrQuoteNotReady
	}
	quote, ok := r.Pricing.Quote()
	if !ok {
		return nil, ErrQuoteNotReady
	}

	a := actions.NewRenew(v.SID, r.Draft(), quote)
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := s.perform(ctx, v.SID, a); err != nil {
		return nil, err
	}

	v.CloseRenew(r)
	if err := s.RefreshView(ctx, v); err != nil {
		return nil, err
	}
	sub, _ := v.Slot.Current()
	return sub, nil
}

// CloseRenew закрывает диалог продления и отменяет пересчёт стоимости.
func (s *Service) CloseRenew(v *session.View) {
	v.CloseRenew(v.Renew())
}

func quoteState(r *session.RenewDialog) *QuoteState {
	st := &QuoteState{
		Draft:   r.Draft(),
		Pending: r.Pricing.Pending(),
	}
	if q, ok := r.Pricing.Quote(); ok {
		st.Quote = &q
	}
	if err := r.Pricing.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}

func renewDraft(sub *model.Subscription) model.ActionDraft {
	draft := model.ActionDraft{
		CustomerID: sub.CustomerID,
		PlanID:     sub.PlanID,
		Duration:   sub.Duration,
	}
	for _, mt := range sub.MealTypes {
		draft.MealTypeIDs = append(draft.MealTypeIDs, mt.ID)
	}
	for _, dd := range sub.DeliveryDays {
		if dd.ID != 0 {
			draft.DeliveryDayIDs = append(draft.DeliveryDayIDs, dd.ID)
		}
	}
	if end, err := time.Parse(validation.DateLayout, sub.EndDate); err == nil {
		draft.StartDate = end.AddDate(0, 0, 1).Format(validation.DateLayout)
	}
	return draft
}
