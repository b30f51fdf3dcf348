// internal/repository/card_repo.go
package repository

import (
	"context"
	"time"

	"bankcards/internal/domain"

	"github.com/shopspring/decimal"
)

// CardFilter narrows a card listing.
type CardFilter struct {
	OwnerID *int64
	// NumberContains is matched against the masked number.
	NumberContains string
	Status         *domain.CardStatus
}

// CardRepository defines the interface for card data operations.
type CardRepository interface {
	Create(ctx context.Context, card *domain.Card) error
	GetByID(ctx context.Context, id int64) (*domain.Card, error)
	// GetForUpdate reads the card and holds its row lock until the unit of work ends.
	GetForUpdate(ctx context.Context, id int64) (*domain.Card, error)
	// LockByIDs locks the given rows in ascending id order. Missing ids are absent from the result.
	LockByIDs(ctx context.Context, ids ...int64) (map[int64]*domain.Card, error)
	// LockByOwner locks every card of the owner in ascending id order.
	LockByOwner(ctx context.Context, ownerID int64) ([]domain.Card, error)
	ExistsByNumber(ctx context.Context, encrypted string) (bool, error)
	// AdjustBalance adds delta to the balance. It fails if the result would be negative.
	AdjustBalance(ctx context.Context, id int64, delta decimal.Decimal) error
	UpdateStatus(ctx context.Context, id int64, status domain.CardStatus) error
	// MarkExpired flips an ACTIVE card to EXPIRED and reports whether a row changed.
	MarkExpired(ctx context.Context, id int64) (bool, error)
	// ExpireDue flips every ACTIVE card whose expiry date is before today.
	ExpireDue(ctx context.Context, today time.Time) (int64, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter CardFilter, page domain.Page) ([]domain.Card, int64, error)
}
