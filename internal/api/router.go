// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bankcards/internal/api/handler"
)

// Handlers groups the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Auth  *handler.AuthHandler
	Cards *handler.CardHandler
	Users *handler.UserHandler
}

// NewRouter sets up and returns a new HTTP router.
func NewRouter(h Handlers, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(handler.DefaultTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Auth.Register)
		r.Post("/login", h.Auth.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.Auth.Authenticate)

		r.Route("/cards", func(r chi.Router) {
			r.Get("/", h.Cards.List)
			r.Post("/", h.Cards.Create)
			r.Post("/credit", h.Cards.Credit)
			r.Post("/debit", h.Cards.Debit)
			r.Post("/transfer", h.Cards.Transfer)
			r.Get("/block-requests", h.Cards.ListBlockRequests)
			r.Post("/block-requests", h.Cards.CreateBlockRequest)
			r.Put("/block-requests/{requestID}/reject", h.Cards.RejectBlockRequest)
			r.Get("/{cardID}", h.Cards.Get)
			r.Delete("/{cardID}", h.Cards.Delete)
			r.Put("/{cardID}/block", h.Cards.Block)
			r.Put("/{cardID}/activate", h.Cards.Activate)
		})

		r.Get("/transfers", h.Cards.ListTransfers)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.Users.List)
			r.Post("/", h.Users.Create)
			r.Get("/{userID}", h.Users.Get)
			r.Put("/{userID}", h.Users.Update)
			r.Delete("/{userID}", h.Users.Delete)
		})
	})

	logger.Debug("HTTP routes registered")
	return r
}
