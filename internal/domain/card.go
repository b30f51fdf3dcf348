// internal/domain/card.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CardStatus is the lifecycle state of a card.
type CardStatus string

const (
	CardStatusActive  CardStatus = "ACTIVE"
	CardStatusBlocked CardStatus = "BLOCKED"
	CardStatusExpired CardStatus = "EXPIRED"
)

// Valid reports whether s is a known status.
func (s CardStatus) Valid() bool {
	switch s {
	case CardStatusActive, CardStatusBlocked, CardStatusExpired:
		return true
	}
	return false
}

// DefaultCardValidity is applied when a card is issued without an expiry date.
const DefaultCardValidity = 3

// Card is a bank card. EncryptedNumber is the only persisted form of the card number
// besides its mask.
type Card struct {
	ID              int64           `db:"id" json:"id"`
	OwnerID         int64           `db:"owner_id" json:"owner_id"`
	EncryptedNumber string          `db:"card_number" json:"-"`
	MaskedNumber    string          `db:"masked_card_number" json:"masked_card_number"`
	ExpiryDate      *time.Time      `db:"expiry_date" json:"expiry_date"`
	Status          CardStatus      `db:"status" json:"status"`
	Balance         decimal.Decimal `db:"balance" json:"balance"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// NewCard creates an ACTIVE card.
func NewCard(ownerID int64, encrypted, masked string, expiry time.Time, balance decimal.Decimal) *Card {
	now := time.Now().UTC()
	exp := DateOf(expiry)
	return &Card{
		OwnerID:         ownerID,
		EncryptedNumber: encrypted,
		MaskedNumber:    masked,
		ExpiryDate:      &exp,
		Status:          CardStatusActive,
		Balance:         balance,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// IsExpired reports whether the expiry date is missing or strictly before the date of now.
func (c *Card) IsExpired(now time.Time) bool {
	if c.ExpiryDate == nil {
		return true
	}
	return DateOf(*c.ExpiryDate).Before(DateOf(now.UTC()))
}

// IsUsable reports whether money may move through the card.
func (c *Card) IsUsable(now time.Time) bool {
	return c.Status == CardStatusActive && !c.IsExpired(now)
}

// NeedsExpiry reports whether the card is still marked ACTIVE although it has expired.
func (c *Card) NeedsExpiry(now time.Time) bool {
	return c.Status == CardStatusActive && c.IsExpired(now)
}

// DateOf truncates t to midnight UTC of its calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
