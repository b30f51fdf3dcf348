// internal/api/handler/user.go
package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"bankcards/internal/domain"
	"bankcards/internal/repository"
	"bankcards/internal/service"
)

// UserHandler handles HTTP requests related to users.
type UserHandler struct {
	responder
	service service.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(svc service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{responder: responder{logger: logger}, service: svc}
}

// UpdateUserRequest represents the request body for a user update. Absent fields are left unchanged.
type UpdateUserRequest struct {
	Username  *string         `json:"username"`
	Email     *string         `json:"email"`
	Password  *string         `json:"password"`
	FirstName *string         `json:"first_name"`
	LastName  *string         `json:"last_name"`
	Roles     *domain.RoleSet `json:"roles"`
	Active    *bool           `json:"is_active"`
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// Create handles user creation by an administrator.
// POST /users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.service.CreateUser(r.Context(), req.toService(), principal(r))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, user)
}

// List handles user listing.
// GET /users?username=&first_name=&last_name=&limit=&offset=
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.UserFilter{
		Username:  q.Get("username"),
		FirstName: q.Get("first_name"),
		LastName:  q.Get("last_name"),
	}
	page := pageFrom(r)
	users, total, err := h.service.ListUsers(r.Context(), filter, page, principal(r))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, paginated(users, page, total))
}

// Get handles user lookup.
// GET /users/{userID}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	user, err := h.service.GetUser(r.Context(), id, principal(r))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, user)
}

// Update handles user updates.
// PUT /users/{userID}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	var req UpdateUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.service.UpdateUser(r.Context(), id, service.UpdateUserRequest{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Roles:     req.Roles,
		Active:    req.Active,
	}, principal(r))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, user)
}

// Delete handles user deletion.
// DELETE /users/{userID}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	if err := h.service.DeleteUser(r.Context(), id, principal(r)); err != nil {
		h.respondWithError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
