// internal/api/handler/respond.go
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"bankcards/internal/api/types"
	"bankcards/internal/domain"
	"bankcards/internal/util"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 30 * time.Second

type responder struct {
	logger *slog.Logger
}

func (h responder) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// respondWithError maps the error taxonomy onto HTTP status codes. Messages of
// client errors are passed through; server errors are logged and hidden.
func (h responder) respondWithError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case util.IsError(err, util.ErrInvalidInput),
		util.IsError(err, util.ErrInvalidAmount),
		util.IsError(err, util.ErrInvalidState):
		statusCode = http.StatusBadRequest
		message = err.Error()
	case util.IsError(err, util.ErrInvalidCredentials):
		statusCode = http.StatusUnauthorized
		message = "Invalid credentials"
	case util.IsError(err, util.ErrInsufficientFunds):
		statusCode = http.StatusPaymentRequired
		message = "Insufficient funds"
	case util.IsError(err, util.ErrAccessDenied):
		statusCode = http.StatusForbidden
		message = err.Error()
	case util.IsError(err, util.ErrNotFound):
		statusCode = http.StatusNotFound
		message = err.Error()
	case util.IsError(err, util.ErrConflict):
		statusCode = http.StatusConflict
		message = err.Error()
	case util.IsError(err, util.ErrTransferFailed):
		h.logger.Error("Transfer failed", "error", err)
		message = "Transfer failed"
	default:
		h.logger.Error("Unhandled service error", "error", err)
	}

	h.respondWithJSON(w, statusCode, types.ErrorResponse{Error: message})
}

func (h responder) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.respondWithJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: "malformed request body: " + err.Error()})
		return false
	}
	return true
}

func (h responder) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		h.respondWithJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: "invalid " + name})
		return 0, false
	}
	return id, true
}

// pageFrom reads limit and offset query parameters. Bad values fall back to defaults.
func pageFrom(r *http.Request) domain.Page {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		limit = domain.DefaultPageLimit
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil {
		offset = 0
	}
	return domain.Page{Limit: limit, Offset: offset}.Normalize()
}

func paginated[T any](data []T, page domain.Page, total int64) types.PaginatedResponse[T] {
	if data == nil {
		data = []T{}
	}
	return types.PaginatedResponse[T]{Data: data, Limit: page.Limit, Offset: page.Offset, TotalCount: total}
}
