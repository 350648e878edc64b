// Package api implements the Notes API handlers for the twin.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/bouvet-sqad/flowcheck/pkg/twincore"
	"github.com/bouvet-sqad/flowcheck/twin-notes/internal/store"
)

// TokenHeader carries the session token.
const TokenHeader = "x-auth-token"

// Messages shared by several handlers.
const (
	msgUnauthorized = "Access token is not valid or has expired, you will need to login"
	msgNoteNotFound = "No note was found with the provided ID, Maybe it was deleted"
	msgBadNoteID    = "Note ID must be a valid ID"
)

// Handler holds all API handler state.
type Handler struct {
	store    *store.MemoryStore
	mw       *twincore.Middleware
	tokens   *TokenManager
	validate *validator.Validate
	logger   *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s *store.MemoryStore, mw *twincore.Middleware, tokens *TokenManager, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:    s,
		mw:       mw,
		tokens:   tokens,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// Routes mounts the Notes API under /notes/api.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/notes/api", func(r chi.Router) {
		r.Use(h.mw.FaultInjection)

		r.Get("/health-check", h.HealthCheck)
		r.Post("/users/register", h.Register)
		r.Post("/users/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware)

			r.Get("/users/profile", h.GetProfile)
			r.Patch("/users/profile", h.UpdateProfile)
			r.Delete("/users/logout", h.Logout)
			r.Delete("/users/delete-account", h.DeleteAccount)

			r.Post("/notes", h.CreateNote)
			r.Get("/notes", h.ListNotes)
			r.Get("/notes/{id}", h.GetNote)
			r.Put("/notes/{id}", h.ReplaceNote)
			r.Patch("/notes/{id}", h.SetCompleted)
			r.Delete("/notes/{id}", h.DeleteNote)
		})
	})
}

// HealthCheck handles GET /notes/api/health-check.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	twincore.Success(w, http.StatusOK, "Notes API is Running", nil)
}

type ctxKey struct{}

// principal is the authenticated caller of a request.
type principal struct {
	user    store.User
	tokenID string
}

// authMiddleware resolves x-auth-token to a live user. Expired, revoked and
// orphaned tokens all get the same 401.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(TokenHeader)
		if raw == "" {
			twincore.Error(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		claims, err := h.tokens.Verify(raw)
		if err != nil {
			h.logger.Debug("rejected token", zap.Error(err))
			twincore.Error(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		if _, revoked := h.store.Revoked.Get(claims.ID); revoked {
			twincore.Error(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		user, ok := h.store.Users.Get(claims.Subject)
		if !ok {
			twincore.Error(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKey{}, principal{user: user, tokenID: claims.ID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func caller(r *http.Request) principal {
	p, _ := r.Context().Value(ctxKey{}).(principal)
	return p
}
