// Package handler содержит HTTP-обработчики API панели управления подписками.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/subscription-admin/internal/actions"
	"github.com/mmeshcher/subscription-admin/internal/dayview"
	"github.com/mmeshcher/subscription-admin/internal/middleware"
	"github.com/mmeshcher/subscription-admin/internal/model"
	"github.com/mmeshcher/subscription-admin/internal/repository"
	"github.com/mmeshcher/subscription-admin/internal/selection"
	"github.com/mmeshcher/subscription-admin/internal/service"
	"github.com/mmeshcher/subscription-admin/internal/session"
	"github.com/mmeshcher/subscription-admin/internal/validation"
)

const maxBodySize = 1 << 20

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	GetSubscription(ctx context.Context, sid string) (*model.Subscription, error)
	SearchByPhone(ctx context.Context, phone string) ([]model.Subscription, error)
	GetDayView(ctx context.Context, sid, filter string) (*service.DayView, error)
	Perform(ctx context.Context, sid string, a actions.Action) (*model.Subscription, error)
	ActionLog(ctx context.Context, sid string, limit int) ([]model.ActionLogEntry, error)
	ActionLogEntry(ctx context.Context, sid, id string) (*model.ActionLogEntry, error)

	OpenView(ctx context.Context, sid string) (*session.View, error)
	View(id string) (*session.View, error)
	CloseView(id string)
	RefreshView(ctx context.Context, v *session.View) error
	ViewState(v *session.View) (*service.ViewState, error)

	OpenRenew(v *session.View) (*session.RenewDialog, error)
	UpdateRenewDraft(v *session.View, draft model.ActionDraft) (*service.QuoteState, error)
	RenewQuote(v *session.View) (*service.QuoteState, error)
	SubmitRenew(ctx context.Context, v *session.View) (*model.Subscription, error)
	CloseRenew(v *session.View)
}

// Handler реализует HTTP-обработчики API панели управления подписками.
type Handler struct {
	service  Service
	logger   *zap.Logger
	sessions *middleware.SessionMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, sessions *middleware.SessionMiddleware) *Handler {
	return &Handler{
		service:  s,
		logger:   logger,
		sessions: sessions,
	}
}

// GetSubscription возвращает нормализованную подписку.
func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")

	sub, err := h.service.GetSubscription(r.Context(), sid)
	if err != nil {
		h.writeError(w, "get subscription", err, zap.String("sid", sid))
		return
	}

	h.writeJSON(w, http.StatusOK, sub)
}

// SearchByPhone ищет подписки по номеру телефона клиента.
func (h *Handler) SearchByPhone(w http.ResponseWriter, r *http.Request) {
	subs, err := h.service.SearchByPhone(r.Context(), r.URL.Query().Get("phone"))
	if err != nil {
		h.writeError(w, "search by phone", err)
		return
	}

	if len(subs) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.writeJSON(w, http.StatusOK, subs)
}

// GetDays возвращает сгруппированные дни доставки подписки со сводкой по статусам.
func (h *Handler) GetDays(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")

	view, err := h.service.GetDayView(r.Context(), sid, r.URL.Query().Get("status"))
	if err != nil {
		h.writeError(w, "get days", err, zap.String("sid", sid))
		return
	}

	h.writeJSON(w, http.StatusOK, view)
}

// PerformAction проверяет и отправляет действие над подпиской и возвращает
// перечитанную подписку.
func (h *Handler) PerformAction(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")
	kind := chi.URLParam(r, "kind")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	a, err := actions.DecodeAction(kind, body)
	if err != nil {
		h.writeError(w, "decode action", err, zap.String("action", kind))
		return
	}

	sub, err := h.service.Perform(r.Context(), sid, a)
	if err != nil {
		h.writeError(w, "perform action", err, zap.String("sid", sid), zap.String("action", kind))
		return
	}

	h.writeJSON(w, http.StatusOK, sub)
}

// ListActionKinds возвращает виды действий, которые принимает PerformAction.
func (h *Handler) ListActionKinds(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, actions.Kinds())
}

type actionLogResponse struct {
	ID        string          `json:"id"`
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload"`
	Succeeded bool            `json:"succeeded"`
	Error     string          `json:"error,omitempty"`
	CreatedAt string          `json:"created_at"`
}

func newActionLogResponse(e model.ActionLogEntry) actionLogResponse {
	payload := json.RawMessage(e.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return actionLogResponse{
		ID:        e.ID,
		Action:    e.Action,
		Payload:   payload,
		Succeeded: e.Succeeded,
		Error:     e.Error,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
}

// GetActionLog возвращает журнал действий по подписке.
func (h *Handler) GetActionLog(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := h.service.ActionLog(r.Context(), sid, limit)
	if err != nil {
		h.writeError(w, "get action log", err, zap.String("sid", sid))
		return
	}

	if len(entries) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]actionLogResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, newActionLogResponse(e))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetActionLogEntry возвращает одну запись журнала действий.
func (h *Handler) GetActionLogEntry(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")
	id := chi.URLParam(r, "id")

	entry, err := h.service.ActionLogEntry(r.Context(), sid, id)
	if err != nil {
		h.writeError(w, "get action log entry", err, zap.String("sid", sid), zap.String("id", id))
		return
	}

	h.writeJSON(w, http.StatusOK, newActionLogResponse(*entry))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("encode response error", zap.Error(err))
	}
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return false
	}
	return true
}

// writeError переводит ошибку сервиса в HTTP-статус. Ошибки API управления
// подписками и дубли приёмов пищи в данных подписки возвращаются клиенту как есть.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error, fields ...zap.Field) {
	var (
		apiErr       *actions.APIError
		transportErr *actions.TransportError
	)

	switch {
	case errors.Is(err, validation.ErrInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, service.ErrNoRenewDialog),
		errors.Is(err, repository.ErrActionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, selection.ErrBusy), errors.Is(err, service.ErrQuoteNotReady):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, dayview.ErrDuplicateMeal):
		h.logger.Warn(op+" error", append(fields, zap.Error(err))...)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &apiErr), errors.As(err, &transportErr), errors.Is(err, selection.ErrReload):
		h.logger.Warn(op+" error", append(fields, zap.Error(err))...)
		http.Error(w, err.Error(), http.StatusBadGateway)
	case errors.Is(err, context.Canceled):
		h.logger.Debug(op+" canceled", fields...)
	default:
		h.logger.Error(op+" error", append(fields, zap.Error(err))...)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
