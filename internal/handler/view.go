package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/subscription-admin/internal/dayview"
	"github.com/mmeshcher/subscription-admin/internal/middleware"
	"github.com/mmeshcher/subscription-admin/internal/model"
	"github.com/mmeshcher/subscription-admin/internal/selection"
	"github.com/mmeshcher/subscription-admin/internal/session"
)

type openViewRequest struct {
	SID string `json:"sid"`
}

// OpenView открывает сессию просмотра подписки и выдаёт cookie сессии.
func (h *Handler) OpenView(w http.ResponseWriter, r *http.Request) {
	var req openViewRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	v, err := h.service.OpenView(r.Context(), req.SID)
	if err != nil {
		h.writeError(w, "open view", err, zap.String("sid", req.SID))
		return
	}

	h.sessions.SetSessionCookie(w, v.ID)
	h.writeViewState(w, http.StatusCreated, v)
}

// GetView возвращает состояние текущей сессии просмотра.
func (h *Handler) GetView(w http.ResponseWriter, r *http.Request) {
	v, ok := h.currentView(w, r)
	if !ok {
		return
	}
	h.writeViewState(w, http.StatusOK, v)
}

// CloseView закрывает сессию просмотра и удаляет cookie.
func (h *Handler) CloseView(w http.ResponseWriter, r *http.Request) {
	if id, ok := middleware.GetViewIDFromContext(r.Context()); ok {
		h.service.CloseView(id)
	}
	h.sessions.ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// RefreshView перечитывает подписку текущей сессии.
func (h *Handler) RefreshView(w http.ResponseWriter, r *http.Request) {
	v, ok := h.currentView(w, r)
	if !ok {
		return
	}

	if err := h.service.RefreshView(r.Context(), v); err != nil {
		h.writeError(w, "refresh view", err, zap.String("sid", v.SID))
		return
	}
	h.writeViewState(w, http.StatusOK, v)
}

type filterRequest struct {
	Status string `json:"status"`
}

// SetFilter меняет фильтр таблицы по статусу.
func (h *Handler) SetFilter(w http.ResponseWriter, r *http.Request) {
	v, ok := h.currentView(w, r)
	if !ok {
		return
	}

	var req filterRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	filter := req.Status
	switch {
	case filter == "" || filter == dayview.FilterAll:
		filter = dayview.FilterAll
	case filter == string(model.StatusUnknown):
	default:
		st, ok := model.ParseDeliveryStatus(filter)
		if !ok {
			http.Error(w, "unknown status filter", http.StatusBadRequest)
			return
		}
		filter = string(st)
	}

	v.Controller().SetFilter(filter)
	h.writeViewState(w, http.StatusOK, v)
}

type toggleRequest struct {
	DayID int64 `json:"dayId"`
}

// ToggleDay переключает выбор дня.
func (h *Handler) ToggleDay(w http.ResponseWriter, r *http.Request) {
	v, ok := h.currentView(w, r)
	if !ok {
		return
	}

	var req toggleRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := v.Controller().Toggle(req.DayID); err != nil {
		h.writeError(w, "toggle day", err, zap.Int64("dayID", req.DayID))
		return
	}
	h.writeJSON(w, http.StatusOK, v.Controller().Snapshot())
}

// SelectAll выбирает все видимые дни.
func (h *Handler) SelectAll(w http.ResponseWriter, r *http.Request) {
	v, ok := h.currentView(w, r)
	if !ok {
		return
	}
	v.Controller().SelectAll()
	h.writeJSON(w, http.StatusOK, v.Controller().Snapshot())
}

// ClearSelection сбрасывает выбор.
func (h *Handler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	v, ok := h.currentView(w, r)
	if !ok {
		return
	}
	v.Controller().Clear()
	h.writeJSON(w, http.StatusOK, v.Controller().Snapshot())
}

// GetDeleteConfirmation возвращает текст подтверждения удаления выбранных дней.
func (h *Handler) GetDeleteConfirmation(w http.ResponseWriter, r *http.Request) {
	v, ok := h.currentView(w, r)
	if !ok {
		return
	}

	confirmation, err := v.Controller().DeleteConfirmation()
	if err != nil {
		h.writeError(w, "delete confirmation", err)
		return
	}
	h.writeJSON(w, http.StatusOK, confirmation)
}

type bulkDeleteRequest struct {
	selection.Confirmation
	Notes string `json:"notes"`
}

// BulkDelete удаляет выбранные дни.
func (h *Handler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	v, ok := h.currentView(w, r)
	if !ok {
		return
	}

	var req bulkDeleteRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	err := v.Controller().DeleteDays(r.Context(), req.Confirmation, req.Notes)
	h.finishBulk(w, v, "bulk delete", err)
}

type changeStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// BulkChangeStatus меняет статус доставки выбранных дней.
func (h *Handler) BulkChangeStatus(w http.ResponseWriter, r *http.Request) {
	v, ok := h.currentView(w, r)
	if !ok {
		return
	}

	var req changeStatusRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	st, ok := model.ParseDeliveryStatus(req.Status)
	if !ok {
		http.Error(w, "unknown delivery status", http.StatusBadRequest)
		return
	}

	err := v.Controller().ChangeStatus(r.Context(), st, req.Notes)
	h.finishBulk(w, v, "bulk change status", err)
}

// GetMergeDrafts возвращает черновики объединения выбранных дней.
func (h *Handler) GetMergeDrafts(w http.ResponseWriter, r *http.Request) {
	v, ok := h.currentView(w, r)
	if !ok {
		return
	}

	drafts, err := v.Controller().MergeDrafts()
	if err != nil {
		h.writeError(w, "merge drafts", err)
		return
	}
	h.writeJSON(w, http.StatusOK, drafts)
}

type mergeRequest struct {
	Days  []model.MergeDayDraft `json:"days"`
	Notes string                `json:"notes"`
}

// BulkMerge объединяет выбранные дни по отредактированным черновикам.
func (h *Handler) BulkMerge(w http.ResponseWriter, r *http.Request) {
	v, ok := h.currentView(w, r)
	if !ok {
		return
	}

	var req mergeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	err := v.Controller().MergeDays(r.Context(), req.Days, req.Notes)
	h.finishBulk(w, v, "bulk merge", err)
}

func (h *Handler) finishBulk(w http.ResponseWriter, v *session.View, op string, err error) {
	if err != nil {
		h.writeError(w, op, err, zap.String("sid", v.SID))
		return
	}
	h.writeViewState(w, http.StatusOK, v)
}

// OpenRenew открывает диалог продления.
func (h *Handler) OpenRenew(w http.ResponseWriter, r *http.Request) {
	v, ok := h.currentView(w, r)
	if !ok {
		return
	}

	if _, err := h.service.OpenRenew(v); err != nil {
		h.writeError(w, "open renew", err, zap.String("sid", v.SID))
		return
	}

	state, err := h.service.RenewQuote(v)
	if err != nil {
		h.writeError(w, "open renew", err, zap.String("sid", v.SID))
		return
	}
	h.writeJSON(w, http.StatusCreated, state)
}

// UpdateRenewDraft сохраняет черновик продления и планирует пересчёт стоимости.
func (h *Handler) UpdateRenewDraft(w http.ResponseWriter, r *http.Request) {
	v, ok := h.currentView(w, r)
	if !ok {
		return
	}

	var draft model.ActionDraft
	if !h.decodeJSON(w, r, &draft) {
		return
	}

	state, err := h.service.UpdateRenewDraft(v, draft)
	if err != nil {
		h.writeError(w, "update renew draft", err, zap.String("sid", v.SID))
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

// GetRenewQuote возвращает текущий расчёт стоимости продления.
func (h *Handler) GetRenewQuote(w http.ResponseWriter, r *http.Request) {
	v, ok := h.currentView(w, r)
	if !ok {
		return
	}

	state, err := h.service.RenewQuote(v)
	if err != nil {
		h.writeError(w, "get renew quote", err, zap.String("sid", v.SID))
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

// SubmitRenew отправляет продление подписки.
func (h *Handler) SubmitRenew(w http.ResponseWriter, r *http.Request) {
	v, ok := h.currentView(w, r)
	if !ok {
		return
	}

	sub, err := h.service.SubmitRenew(r.Context(), v)
	if err != nil {
		h.writeError(w, "submit renew", err, zap.String("sid", v.SID))
		return
	}
	h.writeJSON(w, http.StatusOK, sub)
}

// CloseRenew закрывает диалог продления.
func (h *Handler) CloseRenew(w http.ResponseWriter, r *http.Request) {
	v, ok := h.currentView(w, r)
	if !ok {
		return
	}
	h.service.CloseRenew(v)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) currentView(w http.ResponseWriter, r *http.Request) (*session.View, bool) {
	id, ok := middleware.GetViewIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return nil, false
	}

	v, err := h.service.View(id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			h.sessions.ClearSessionCookie(w)
		}
		h.writeError(w, "get view", err)
		return nil, false
	}
	return v, true
}

func (h *Handler) writeViewState(w http.ResponseWriter, status int, v *session.View) {
	state, err := h.service.ViewState(v)
	if err != nil {
		h.writeError(w, "view state", err, zap.String("sid", v.SID))
		return
	}
	h.writeJSON(w, status, state)
}
