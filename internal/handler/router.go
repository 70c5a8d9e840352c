package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/subscription-admin/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware панели управления подписками.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/api/actions", h.ListActionKinds)

	r.Route("/api/subscriptions", func(r chi.Router) {
		r.Get("/search", h.SearchByPhone)

		r.Route("/{sid}", func(r chi.Router) {
			r.Get("/", h.GetSubscription)
			r.Get("/days", h.GetDays)
			r.Post("/actions/{kind}", h.PerformAction)
			r.Get("/actions", h.GetActionLog)
			r.Get("/actions/{id}", h.GetActionLogEntry)
		})
	})

	r.Route("/api/view", func(r chi.Router) {
		r.Post("/", h.OpenView)

		r.Group(func(r chi.Router) {
			r.Use(h.sessions.Middleware)

			r.Get("/", h.GetView)
			r.Delete("/", h.CloseView)
			r.Post("/refresh", h.RefreshView)
			r.Put("/filter", h.SetFilter)

			r.Post("/selection/toggle", h.ToggleDay)
			r.Post("/selection/select-all", h.SelectAll)
			r.Post("/selection/clear", h.ClearSelection)

			r.Get("/delete-confirmation", h.GetDeleteConfirmation)
			r.Get("/merge-drafts", h.GetMergeDrafts)
			r.Post("/bulk/delete", h.BulkDelete)
			r.Post("/bulk/change-status", h.BulkChangeStatus)
			r.Post("/bulk/merge", h.BulkMerge)

			r.Post("/renew", h.OpenRenew)
			r.Delete("/renew", h.CloseRenew)
			r.Put("/renew/draft", h.UpdateRenewDraft)
			r.Get("/renew/quote", h.GetRenewQuote)
			r.Post("/renew/submit", h.SubmitRenew)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
