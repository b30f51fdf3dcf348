// internal/repository/transfer_repo.go
package repository

import (
	"context"

	"bankcards/internal/domain"
)

// TransferFilter narrows a transfer listing. OwnerID keeps transfers whose source or
// destination card belongs to that user.
type TransferFilter struct {
	OwnerID *int64
}

// TransferRepository defines the interface for transfer audit rows.
type TransferRepository interface {
	// Create adds a new transfer record and fills in its ID.
	Create(ctx context.Context, transfer *domain.Transfer) error
	// List returns one page, newest first, plus the total count.
	List(ctx context.Context, filter TransferFilter, page domain.Page) ([]domain.Transfer, int64, error)
}
