// internal/api/handler/auth.go
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"bankcards/internal/api/types"
	"bankcards/internal/domain"
	"bankcards/internal/service"
	"bankcards/internal/util"
)

// TokenVerifier turns a bearer token into a principal.
type TokenVerifier interface {
	Verify(raw string) (domain.Principal, error)
}

type principalKey struct{}

// PrincipalFrom returns the principal stored by Authenticate.
func PrincipalFrom(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(domain.Principal)
	return p, ok
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// AuthHandler handles login, registration and bearer authentication.
type AuthHandler struct {
	responder
	service  service.AuthService
	verifier TokenVerifier
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc service.AuthService, verifier TokenVerifier, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{responder: responder{logger: logger}, service: svc, verifier: verifier}
}

// Authenticate rejects requests without a valid bearer token.
func (h *AuthHandler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			h.respondWithError(w, util.ErrInvalidCredentials)
			return
		}
		p, err := h.verifier.Verify(raw)
		if err != nil {
			h.respondWithError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RegisterRequest represents the request body for registration.
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (r RegisterRequest) toService() service.RegisterRequest {
	return service.RegisterRequest{
		Username:  r.Username,
		Email:     r.Email,
		Password:  r.Password,
		FirstName: r.FirstName,
		LastName:  r.LastName,
	}
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register handles self-registration.
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.RegisterAndIssue(r.Context(), req.toService())
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, authResponse(res))
}

// Login handles credential login.
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, authResponse(res))
}

func authResponse(res *service.AuthResult) types.AuthResponse {
	return types.AuthResponse{
		AccessToken: res.Token.Value,
		TokenType:   "Bearer",
		ExpiresAt:   res.Token.ExpiresAt.Format(time.RFC3339),
		User:        res.User,
	}
}

// principal returns the authenticated caller. The zero value is inactive and denied everywhere.
func principal(r *http.Request) domain.Principal {
	p, _ := PrincipalFrom(r.Context())
	return p
}
