// internal/domain/transfer.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferStatus defines the status of a transfer attempt.
type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "PENDING"
	TransferStatusCompleted TransferStatus = "COMPLETED"
	TransferStatusFailed    TransferStatus = "FAILED"
)

// Transfer is the audit row written once per transfer attempt.
type Transfer struct {
	ID          int64           `db:"id" json:"id"`
	FromCardID  int64           `db:"from_card_id" json:"from_card_id"`
	ToCardID    int64           `db:"to_card_id" json:"to_card_id"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Status      TransferStatus  `db:"status" json:"status"`
	Description *string         `db:"description" json:"description"`
	ProcessedAt *time.Time      `db:"processed_at" json:"processed_at"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// NewTransfer creates a PENDING transfer.
func NewTransfer(fromCardID, toCardID int64, amount decimal.Decimal, description *string) *Transfer {
	return &Transfer{
		FromCardID:  fromCardID,
		ToCardID:    toCardID,
		Amount:      amount,
		Status:      TransferStatusPending,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
}

// Finish sets the final status and the processing time.
func (t *Transfer) Finish(status TransferStatus, at time.Time) {
	at = at.UTC()
	t.Status = status
	t.ProcessedAt = &at
}
