// internal/service/ledger_service.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bankcards/internal/domain"
	"bankcards/internal/policy"
	"bankcards/internal/repository"
	"bankcards/internal/util"

	"github.com/shopspring/decimal"
)

// TransferRequest moves Amount from one card to another.
type TransferRequest struct {
	FromCardID  int64
	ToCardID    int64
	Amount      decimal.Decimal
	Description *string
}

// LedgerService defines the balance-mutating operations and the block request workflow.
type LedgerService interface {
	Credit(ctx context.Context, cardID int64, amount decimal.Decimal, p domain.Principal) (*domain.Card, error)
	Debit(ctx context.Context, cardID int64, amount decimal.Decimal, p domain.Principal) (*domain.Card, error)
	Transfer(ctx context.Context, req TransferRequest, p domain.Principal) (*domain.Transfer, error)
	ListTransfers(ctx context.Context, page domain.Page, p domain.Principal) ([]domain.Transfer, int64, error)
	CreateBlockRequest(ctx context.Context, cardID int64, description string, p domain.Principal) (*domain.CardBlockRequest, error)
	ListBlockRequests(ctx context.Context, page domain.Page, p domain.Principal) ([]domain.CardBlockRequest, int64, error)
	RejectBlockRequest(ctx context.Context, requestID int64, p domain.Principal) (*domain.CardBlockRequest, error)
}

type ledgerService struct {
	store  repository.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewLedgerService creates a new instance of LedgerService.
func NewLedgerService(store repository.Store, logger *slog.Logger) LedgerService {
	return &ledgerService{store: store, logger: logger, now: time.Now}
}

// validateAmount accepts positive values with at most two fractional digits.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", util.ErrInvalidAmount, amount)
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: amount %s has more than two decimal places", util.ErrInvalidAmount, amount)
	}
	return nil
}

func requireUsable(card *domain.Card, now time.Time, side string) error {
	if !card.IsUsable(now) {
		return fmt.Errorf("%w: %scard not active", util.ErrInvalidState, side)
	}
	return nil
}

func (s *ledgerService) Credit(ctx context.Context, cardID int64, amount decimal.Decimal, p domain.Principal) (*domain.Card, error) {
	card, err := s.adjust(ctx, cardID, amount, false, p)
	if err != nil {
		return nil, fmt.Errorf("credit: %w", err)
	}
	s.logger.Info("card credited", "card_id", cardID, "amount", amount.StringFixed(2))
	return card, nil
}

func (s *ledgerService) Debit(ctx context.Context, cardID int64, amount decimal.Decimal, p domain.Principal) (*domain.Card, error) {
	card, err := s.adjust(ctx, cardID, amount, true, p)
	if err != nil {
		return nil, fmt.Errorf("debit: %w", err)
	}
	s.logger.Info("card debited", "card_id", cardID, "amount", amount.StringFixed(2))
	return card, nil
}

func (s *ledgerService) adjust(ctx context.Context, cardID int64, amount decimal.Decimal, debit bool, p domain.Principal) (*domain.Card, error) {
	var updated *domain.Card
	err := s.store.Write(ctx, func(tx repository.Tx) error {
		card, err := tx.Cards().GetForUpdate(ctx, cardID)
		if err != nil {
			return err
		}
		if !policy.CanAccessCard(p, card) {
			return fmt.Errorf("%w: card %d", util.ErrAccessDenied, cardID)
		}
		if err := requireUsable(card, s.now(), ""); err != nil {
			return err
		}
		if err := validateAmount(amount); err != nil {
			return err
		}

		delta := amount
		if debit {
			if card.Balance.LessThan(amount) {
				return fmt.Errorf("%w: card %d", util.ErrInsufficientFunds, cardID)
			}
			delta = amount.Neg()
		}
		if err := tx.Cards().AdjustBalance(ctx, cardID, delta); err != nil {
			return err
		}

		updated, err = tx.Cards().GetByID(ctx, cardID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Transfer moves money between two cards atomically. Validation failures return
// their own error and leave no audit row. Any failure after validation rolls the
// unit of work back, records a FAILED transfer separately and returns ErrTransferFailed.
func (s *ledgerService) Transfer(ctx context.Context, req TransferRequest, p domain.Principal) (*domain.Transfer, error) {
	var transfer *domain.Transfer
	validated := false

	err := s.store.Write(ctx, func(tx repository.Tx) error {
		cards, err := tx.Cards().LockByIDs(ctx, req.FromCardID, req.ToCardID)
		if err != nil {
			return err
		}
		from, ok := cards[req.FromCardID]
		if !ok {
			return fmt.Errorf("source card %d: %w", req.FromCardID, util.ErrNotFound)
		}
		to, ok := cards[req.ToCardID]
		if !ok {
			return fmt.Errorf("destination card %d: %w", req.ToCardID, util.ErrNotFound)
		}
		if !policy.IsAdmin(p) && !(policy.OwnsCard(p, from) && policy.OwnsCard(p, to)) {
			return fmt.Errorf("%w: transfers are only allowed between your own cards", util.ErrAccessDenied)
		}
		if from.ID == to.ID {
			return fmt.Errorf("%w: cannot transfer to the same card", util.ErrInvalidState)
		}
		now := s.now()
		if err := requireUsable(from, now, "source "); err != nil {
			return err
		}
		if err := requireUsable(to, now, "destination "); err != nil {
			return err
		}
		if err := validateAmount(req.Amount); err != nil {
			return err
		}
		if from.Balance.LessThan(req.Amount) {
			return fmt.Errorf("%w: card %d", util.ErrInsufficientFunds, from.ID)
		}
		validated = true

		if err := tx.Cards().AdjustBalance(ctx, from.ID, req.Amount.Neg()); err != nil {
			return err
		}
		if err := tx.Cards().AdjustBalance(ctx, to.ID, req.Amount); err != nil {
			return err
		}
		transfer = domain.NewTransfer(from.ID, to.ID, req.Amount, req.Description)
		transfer.Finish(domain.TransferStatusCompleted, s.now())
		return tx.Transfers().Create(ctx, transfer)
	})
	if err == nil {
		s.logger.Info("transfer completed",
			"transfer_id", transfer.ID,
			"from_card_id", transfer.FromCardID,
			"to_card_id", transfer.ToCardID,
			"amount", transfer.Amount.StringFixed(2))
		return transfer, nil
	}
	if !validated {
		return nil, fmt.Errorf("transfer: %w", err)
	}

	s.recordFailedTransfer(ctx, req, err)
	return nil, fmt.Errorf("%w: %w", util.ErrTransferFailed, err)
}

// recordFailedTransfer writes the FAILED audit row even if the caller's context is already done.
func (s *ledgerService) recordFailedTransfer(ctx context.Context, req TransferRequest, cause error) {
	failed := domain.NewTransfer(req.FromCardID, req.ToCardID, req.Amount, req.Description)
	failed.Finish(domain.TransferStatusFailed, s.now())

	auditCtx := context.WithoutCancel(ctx)
	err := s.store.Write(auditCtx, func(tx repository.Tx) error {
		return tx.Transfers().Create(auditCtx, failed)
	})
	if err != nil {
		s.logger.Error("failed to record failed transfer",
			"from_card_id", req.FromCardID,
			"to_card_id", req.ToCardID,
			"cause", cause,
			"error", err)
		return
	}
	s.logger.Warn("transfer failed",
		"transfer_id", failed.ID,
		"from_card_id", req.FromCardID,
		"to_card_id", req.ToCardID,
		"error", cause)
}

func (s *ledgerService) ListTransfers(ctx context.Context, page domain.Page, p domain.Principal) ([]domain.Transfer, int64, error) {
	if !p.Active {
		return nil, 0, fmt.Errorf("%w: account is deactivated", util.ErrAccessDenied)
	}
	var filter repository.TransferFilter
	if !policy.IsAdmin(p) {
		filter.OwnerID = &p.ID
	}

	var transfers []domain.Transfer
	var total int64
	err := s.store.Read(ctx, func(tx repository.Tx) error {
		var err error
		transfers, total, err = tx.Transfers().List(ctx, filter, page)
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list transfers: %w", err)
	}
	return transfers, total, nil
}

func (s *ledgerService) CreateBlockRequest(ctx context.Context, cardID int64, description string, p domain.Principal) (*domain.CardBlockRequest, error) {
	var req *domain.CardBlockRequest
	err := s.store.Write(ctx, func(tx repository.Tx) error {
		card, err := tx.Cards().GetForUpdate(ctx, cardID)
		if err != nil {
			return err
		}
		if !policy.CanAccessCard(p, card) {
			return fmt.Errorf("%w: card %d", util.ErrAccessDenied, cardID)
		}
		if err := requireUsable(card, s.now(), ""); err != nil {
			return err
		}
		pending, err := tx.BlockRequests().HasPending(ctx, cardID)
		if err != nil {
			return err
		}
		if pending {
			return fmt.Errorf("%w: card %d already has a pending block request", util.ErrConflict, cardID)
		}
		req = domain.NewCardBlockRequest(cardID, description)
		return tx.BlockRequests().Create(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("create block request: %w", err)
	}
	s.logger.Info("block request created", "block_request_id", req.ID, "card_id", cardID)
	return req, nil
}

func (s *ledgerService) ListBlockRequests(ctx context.Context, page domain.Page, p domain.Principal) ([]domain.CardBlockRequest, int64, error) {
	if !policy.IsAdmin(p) {
		return nil, 0, fmt.Errorf("list block requests: %w", util.ErrAccessDenied)
	}
	var reqs []domain.CardBlockRequest
	var total int64
	err := s.store.Read(ctx, func(tx repository.Tx) error {
		var err error
		reqs, total, err = tx.BlockRequests().List(ctx, page)
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list block requests: %w", err)
	}
	return reqs, total, nil
}

func (s *ledgerService) RejectBlockRequest(ctx context.Context, requestID int64, p domain.Principal) (*domain.CardBlockRequest, error) {
	if !policy.IsAdmin(p) {
		return nil, fmt.Errorf("reject block request: %w", util.ErrAccessDenied)
	}
	var req *domain.CardBlockRequest
	err := s.store.Write(ctx, func(tx repository.Tx) error {
		var err error
		req, err = tx.BlockRequests().GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != domain.BlockRequestPending {
			return fmt.Errorf("%w: block request %d is %s", util.ErrInvalidState, requestID, req.Status)
		}
		if err := tx.BlockRequests().UpdateStatus(ctx, requestID, domain.BlockRequestRejected); err != nil {
			return err
		}
		req, err = tx.BlockRequests().GetByID(ctx, requestID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reject block request: %w", err)
	}
	s.logger.Info("block request rejected", "block_request_id", requestID, "card_id", req.CardID)
	return req, nil
}
