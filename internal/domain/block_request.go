// internal/domain/block_request.go
package domain

import "time"

// BlockRequestStatus is the state of a user's request to block a card.
type BlockRequestStatus string

const (
	BlockRequestPending  BlockRequestStatus = "PENDING"
	BlockRequestApproved BlockRequestStatus = "APPROVED"
	BlockRequestRejected BlockRequestStatus = "REJECTED"
)

// CardBlockRequest asks an administrator to block a card.
type CardBlockRequest struct {
	ID          int64              `db:"id" json:"id"`
	CardID      int64              `db:"card_id" json:"card_id"`
	Status      BlockRequestStatus `db:"status" json:"status"`
	Description string             `db:"description" json:"description"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `db:"updated_at" json:"updated_at"`
}

// NewCardBlockRequest creates a PENDING request.
func NewCardBlockRequest(cardID int64, description string) *CardBlockRequest {
	now := time.Now().UTC()
	return &CardBlockRequest{
		CardID:      cardID,
		Status:      BlockRequestPending,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
