// internal/service/card_service.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bankcards/internal/cardnumber"
	"bankcards/internal/domain"
	"bankcards/internal/policy"
	"bankcards/internal/repository"
	"bankcards/internal/util"

	"github.com/shopspring/decimal"
)

// NumberGenerator issues fresh card numbers.
type NumberGenerator interface {
	Generate(ctx context.Context, exists cardnumber.ExistsFunc) (cardnumber.Generated, error)
}

// CreateCardRequest holds the optional inputs of CreateCard. Nil fields take defaults.
type CreateCardRequest struct {
	OwnerID        *int64
	ExpiryDate     *time.Time
	InitialBalance *decimal.Decimal
}

// CardService defines card issuance, lookup and lifecycle operations.
type CardService interface {
	CreateCard(ctx context.Context, req CreateCardRequest, p domain.Principal) (*domain.Card, error)
	GetCard(ctx context.Context, cardID int64, p domain.Principal) (*domain.Card, error)
	ListCards(ctx context.Context, filter repository.CardFilter, page domain.Page, p domain.Principal) ([]domain.Card, int64, error)
	DeleteCard(ctx context.Context, cardID int64, p domain.Principal) error
	BlockCard(ctx context.Context, cardID int64, p domain.Principal) (*domain.Card, error)
	ActivateCard(ctx context.Context, cardID int64, p domain.Principal) (*domain.Card, error)
	// ExpireDueCards flips every ACTIVE card whose expiry date has passed. It is a system operation.
	ExpireDueCards(ctx context.Context) (int64, error)
}

type cardService struct {
	store   repository.Store
	numbers NumberGenerator
	logger  *slog.Logger
	now     func() time.Time
}

// NewCardService creates a new instance of CardService.
func NewCardService(store repository.Store, numbers NumberGenerator, logger *slog.Logger) CardService {
	return &cardService{store: store, numbers: numbers, logger: logger, now: time.Now}
}

func (s *cardService) CreateCard(ctx context.Context, req CreateCardRequest, p domain.Principal) (*domain.Card, error) {
	if !p.Active {
		return nil, fmt.Errorf("create card: %w: account is deactivated", util.ErrAccessDenied)
	}
	ownerID := p.ID
	if req.OwnerID != nil && *req.OwnerID != p.ID {
		if !policy.IsAdmin(p) {
			return nil, fmt.Errorf("create card: %w: only administrators may issue cards to other users", util.ErrAccessDenied)
		}
		ownerID = *req.OwnerID
	}

	now := s.now().UTC()
	expiry := now.AddDate(domain.DefaultCardValidity, 0, 0)
	if req.ExpiryDate != nil {
		requested := req.ExpiryDate.UTC()
		if !domain.DateOf(requested).After(domain.DateOf(now)) {
			return nil, fmt.Errorf("create card: %w: expiry date must be in the future", util.ErrInvalidInput)
		}
		expiry = requested
	}
	balance := decimal.Zero
	if req.InitialBalance != nil {
		balance = *req.InitialBalance
		if balance.IsNegative() || !balance.Equal(balance.Round(2)) {
			return nil, fmt.Errorf("create card: %w: initial balance %s", util.ErrInvalidAmount, balance)
		}
	}

	var card *domain.Card
	err := s.store.Write(ctx, func(tx repository.Tx) error {
		if _, err := tx.Users().GetByID(ctx, ownerID); err != nil {
			return err
		}
		number, err := s.numbers.Generate(ctx, tx.Cards().ExistsByNumber)
		if err != nil {
			return err
		}
		card = domain.NewCard(ownerID, number.Encrypted, number.Masked, expiry, balance)
		return tx.Cards().Create(ctx, card)
	})
	if err != nil {
		return nil, fmt.Errorf("create card: %w", err)
	}
	s.logger.Info("card issued", "card_id", card.ID, "owner_id", ownerID, "masked_number", card.MaskedNumber)
	return card, nil
}

// GetCard flips an ACTIVE card past its expiry date to EXPIRED before returning it.
func (s *cardService) GetCard(ctx context.Context, cardID int64, p domain.Principal) (*domain.Card, error) {
	var card *domain.Card
	err := s.store.Read(ctx, func(tx repository.Tx) error {
		var err error
		card, err = tx.Cards().GetByID(ctx, cardID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get card: %w", err)
	}
	if !policy.CanAccessCard(p, card) {
		return nil, fmt.Errorf("get card: %w: card %d", util.ErrAccessDenied, cardID)
	}
	if err := s.expireLazily(ctx, card); err != nil {
		return nil, fmt.Errorf("get card: %w", err)
	}
	return card, nil
}

func (s *cardService) ListCards(ctx context.Context, filter repository.CardFilter, page domain.Page, p domain.Principal) ([]domain.Card, int64, error) {
	if !p.Active {
		return nil, 0, fmt.Errorf("list cards: %w: account is deactivated", util.ErrAccessDenied)
	}
	if !policy.IsAdmin(p) {
		filter.OwnerID = &p.ID
	}

	var cards []domain.Card
	var total int64
	err := s.store.Read(ctx, func(tx repository.Tx) error {
		var err error
		cards, total, err = tx.Cards().List(ctx, filter, page)
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list cards: %w", err)
	}

	listed := make([]*domain.Card, len(cards))
	for i := range cards {
		listed[i] = &cards[i]
	}
	if err := s.expireLazily(ctx, listed...); err != nil {
		return nil, 0, fmt.Errorf("list cards: %w", err)
	}
	return cards, total, nil
}

// expireLazily runs the idempotent ACTIVE to EXPIRED write for cards read past their expiry.
func (s *cardService) expireLazily(ctx context.Context, cards ...*domain.Card) error {
	now := s.now()
	due := cards[:0:0]
	for _, c := range cards {
		if c.NeedsExpiry(now) {
			due = append(due, c)
		}
	}
	if len(due) == 0 {
		return nil
	}
	err := s.store.Write(ctx, func(tx repository.Tx) error {
		for _, c := range due {
			if _, err := tx.Cards().MarkExpired(ctx, c.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, c := range due {
		c.Status = domain.CardStatusExpired
		s.logger.Info("card expired", "card_id", c.ID)
	}
	return nil
}

func (s *cardService) DeleteCard(ctx context.Context, cardID int64, p domain.Principal) error {
	if !policy.IsAdmin(p) {
		return fmt.Errorf("delete card: %w", util.ErrAccessDenied)
	}
	err := s.store.Write(ctx, func(tx repository.Tx) error {
		card, err := tx.Cards().GetForUpdate(ctx, cardID)
		if err != nil {
			return err
		}
		if !card.Balance.IsZero() {
			return fmt.Errorf("%w: card %d still holds %s", util.ErrInvalidState, cardID, card.Balance.StringFixed(2))
		}
		return tx.Cards().Delete(ctx, cardID)
	})
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	s.logger.Info("card deleted", "card_id", cardID)
	return nil
}

// BlockCard blocks a usable card and approves its pending block requests.
func (s *cardService) BlockCard(ctx context.Context, cardID int64, p domain.Principal) (*domain.Card, error) {
	var card *domain.Card
	var approved int64
	err := s.store.Write(ctx, func(tx repository.Tx) error {
		var err error
		card, err = tx.Cards().GetForUpdate(ctx, cardID)
		if err != nil {
			return err
		}
		if !policy.CanAccessCard(p, card) {
			return fmt.Errorf("%w: card %d", util.ErrAccessDenied, cardID)
		}
		if card.IsExpired(s.now()) {
			return fmt.Errorf("%w: cannot block an expired card", util.ErrInvalidState)
		}
		if card.Status != domain.CardStatusActive {
			return fmt.Errorf("%w: card not active", util.ErrInvalidState)
		}
		if err := tx.Cards().UpdateStatus(ctx, cardID, domain.CardStatusBlocked); err != nil {
			return err
		}
		approved, err = tx.BlockRequests().ResolvePending(ctx, cardID, domain.BlockRequestApproved)
		if err != nil {
			return err
		}
		card, err = tx.Cards().GetByID(ctx, cardID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("block card: %w", err)
	}
	s.logger.Info("card blocked", "card_id", cardID, "approved_requests", approved)
	return card, nil
}

// ActivateCard returns a BLOCKED card to ACTIVE. Activating an ACTIVE card changes nothing.
func (s *cardService) ActivateCard(ctx context.Context, cardID int64, p domain.Principal) (*domain.Card, error) {
	if !policy.IsAdmin(p) {
		return nil, fmt.Errorf("activate card: %w", util.ErrAccessDenied)
	}
	var card *domain.Card
	err := s.store.Write(ctx, func(tx repository.Tx) error {
		var err error
		card, err = tx.Cards().GetForUpdate(ctx, cardID)
		if err != nil {
			return err
		}
		if card.Status == domain.CardStatusExpired || card.IsExpired(s.now()) {
			return fmt.Errorf("%w: cannot activate an expired card", util.ErrInvalidState)
		}
		if card.Status == domain.CardStatusActive {
			return nil
		}
		if err := tx.Cards().UpdateStatus(ctx, cardID, domain.CardStatusActive); err != nil {
			return err
		}
		card, err = tx.Cards().GetByID(ctx, cardID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("activate card: %w", err)
	}
	s.logger.Info("card activated", "card_id", cardID)
	return card, nil
}

func (s *cardService) ExpireDueCards(ctx context.Context) (int64, error) {
	var n int64
	err := s.store.Write(ctx, func(tx repository.Tx) error {
		var err error
		n, err = tx.Cards().ExpireDue(ctx, s.now())
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("expire due cards: %w", err)
	}
	return n, nil
}
