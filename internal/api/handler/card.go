// internal/api/handler/card.go
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"bankcards/internal/domain"
	"bankcards/internal/repository"
	"bankcards/internal/service"
	"bankcards/internal/util"
)

// CardHandler handles HTTP requests related to cards, money movement and block requests.
type CardHandler struct {
	responder
	cards  service.CardService
	ledger service.LedgerService
}

// NewCardHandler creates a new CardHandler.
func NewCardHandler(cards service.CardService, ledger service.LedgerService, logger *slog.Logger) *CardHandler {
	return &CardHandler{responder: responder{logger: logger}, cards: cards, ledger: ledger}
}

// CreateCardRequest represents the request body for issuing a card.
type CreateCardRequest struct {
	OwnerID        *int64           `json:"owner_id"`
	ExpiryDate     *string          `json:"expiry_date"`
	InitialBalance *decimal.Decimal `json:"initial_balance"`
}

// AmountRequest represents the request body for credit and debit.
type AmountRequest struct {
	CardID int64           `json:"card_id"`
	Amount decimal.Decimal `json:"amount"`
}

// TransferRequest represents the request body for transfer.
type TransferRequest struct {
	FromCardID  int64           `json:"from_card_id"`
	ToCardID    int64           `json:"to_card_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description *string         `json:"description"`
}

// BlockRequestBody represents the request body for a block request.
type BlockRequestBody struct {
	CardID      int64  `json:"card_id"`
	Description string `json:"description"`
}

// Create handles card issuance.
// POST /cards
func (h *CardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCardRequest
	if !h.decode(w, r, &req) {
		return
	}
	in := service.CreateCardRequest{OwnerID: req.OwnerID, InitialBalance: req.InitialBalance}
	if req.ExpiryDate != nil {
		expiry, err := time.Parse(time.DateOnly, *req.ExpiryDate)
		if err != nil {
			h.respondWithError(w, util.ErrInvalidInput)
			return
		}
		in.ExpiryDate = &expiry
	}

	card, err := h.cards.CreateCard(r.Context(), in, principal(r))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, card)
}

// List handles card listing.
// GET /cards?owner_id=&number=&status=&limit=&offset=
func (h *CardHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.CardFilter{NumberContains: q.Get("number")}
	if v := q.Get("owner_id"); v != "" {
		id, err := parseID(v)
		if err != nil {
			h.respondWithError(w, util.ErrInvalidInput)
			return
		}
		filter.OwnerID = &id
	}
	if v := q.Get("status"); v != "" {
		status := domain.CardStatus(v)
		if !status.Valid() {
			h.respondWithError(w, util.ErrInvalidInput)
			return
		}
		filter.Status = &status
	}

	page := pageFrom(r)
	cards, total, err := h.cards.ListCards(r.Context(), filter, page, principal(r))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, paginated(cards, page, total))
}

// Get handles single card lookup.
// GET /cards/{cardID}
func (h *CardHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "cardID")
	if !ok {
		return
	}
	card, err := h.cards.GetCard(r.Context(), id, principal(r))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, card)
}

// Delete handles card deletion.
// DELETE /cards/{cardID}
func (h *CardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "cardID")
	if !ok {
		return
	}
	if err := h.cards.DeleteCard(r.Context(), id, principal(r)); err != nil {
		h.respondWithError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Block handles card blocking.
// PUT /cards/{cardID}/block
func (h *CardHandler) Block(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "cardID")
	if !ok {
		return
	}
	card, err := h.cards.BlockCard(r.Context(), id, principal(r))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, card)
}

// Activate handles card activation.
// PUT /cards/{cardID}/activate
func (h *CardHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "cardID")
	if !ok {
		return
	}
	card, err := h.cards.ActivateCard(r.Context(), id, principal(r))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, card)
}

// Credit handles balance credit.
// POST /cards/credit
func (h *CardHandler) Credit(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if !h.decode(w, r, &req) {
		return
	}
	card, err := h.ledger.Credit(r.Context(), req.CardID, req.Amount, principal(r))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, card)
}

// Debit handles balance debit.
// POST /cards/debit
func (h *CardHandler) Debit(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if !h.decode(w, r, &req) {
		return
	}
	card, err := h.ledger.Debit(r.Context(), req.CardID, req.Amount, principal(r))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, card)
}

// Transfer handles the transfer money request.
// POST /cards/transfer
func (h *CardHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !h.decode(w, r, &req) {
		return
	}
	transfer, err := h.ledger.Transfer(r.Context(), service.TransferRequest{
		FromCardID:  req.FromCardID,
		ToCardID:    req.ToCardID,
		Amount:      req.Amount,
		Description: req.Description,
	}, principal(r))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, transfer)
}

// ListTransfers handles the transfer history request.
// GET /transfers
func (h *CardHandler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	page := pageFrom(r)
	transfers, total, err := h.ledger.ListTransfers(r.Context(), page, principal(r))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, paginated(transfers, page, total))
}

// CreateBlockRequest handles a request to block a card.
// POST /cards/block-requests
func (h *CardHandler) CreateBlockRequest(w http.ResponseWriter, r *http.Request) {
	var req BlockRequestBody
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.ledger.CreateBlockRequest(r.Context(), req.CardID, req.Description, principal(r))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, created)
}

// ListBlockRequests handles the block request listing.
// GET /cards/block-requests
func (h *CardHandler) ListBlockRequests(w http.ResponseWriter, r *http.Request) {
	page := pageFrom(r)
	reqs, total, err := h.ledger.ListBlockRequests(r.Context(), page, principal(r))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, paginated(reqs, page, total))
}

// RejectBlockRequest handles rejection of a pending block request.
// PUT /cards/block-requests/{requestID}/reject
func (h *CardHandler) RejectBlockRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "requestID")
	if !ok {
		return
	}
	req, err := h.ledger.RejectBlockRequest(r.Context(), id, principal(r))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, req)
}
