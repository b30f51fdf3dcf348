// internal/repository/block_request_repo.go
package repository

import (
	"context"

	"bankcards/internal/domain"
)

// BlockRequestRepository defines the interface for card block requests.
type BlockRequestRepository interface {
	Create(ctx context.Context, req *domain.CardBlockRequest) error
	GetByID(ctx context.Context, id int64) (*domain.CardBlockRequest, error)
	HasPending(ctx context.Context, cardID int64) (bool, error)
	// ResolvePending moves every PENDING request of the card to status.
	ResolvePending(ctx context.Context, cardID int64, status domain.BlockRequestStatus) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status domain.BlockRequestStatus) error
	// List returns one page, newest first, plus the total count.
	List(ctx context.Context, page domain.Page) ([]domain.CardBlockRequest, int64, error)
}
