// internal/repository/postgres/block_request_pg.go
package postgres

import (
	"context"
	"time"

	"bankcards/internal/domain"
	"bankcards/internal/repository"
)

const blockRequestColumns = `id, card_id, status, description, created_at, updated_at`

// BlockRequestRepository implements repository.BlockRequestRepository for PostgreSQL.
type BlockRequestRepository struct {
	q repository.DBExecutor
}

// Create relies on uq_card_block_requests_pending to reject a second PENDING request.
func (r *BlockRequestRepository) Create(ctx context.Context, req *domain.CardBlockRequest) error {
	query := `INSERT INTO card_block_requests (card_id, status, description, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5) RETURNING id`
	err := r.q.QueryRowContext(ctx, query,
		req.CardID,
		req.Status,
		req.Description,
		req.CreatedAt,
		req.UpdatedAt,
	).Scan(&req.ID)
	if err != nil {
		return mapError(err, "failed to create block request for card %d", req.CardID)
	}
	return nil
}

func (r *BlockRequestRepository) GetByID(ctx context.Context, id int64) (*domain.CardBlockRequest, error) {
	var req domain.CardBlockRequest
	query := `SELECT ` + blockRequestColumns + ` FROM card_block_requests WHERE id = $1`
	if err := r.q.GetContext(ctx, &req, query, id); err != nil {
		return nil, mapError(err, "failed to get block request %d", id)
	}
	return &req, nil
}

func (r *BlockRequestRepository) HasPending(ctx context.Context, cardID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM card_block_requests WHERE card_id = $1 AND status = $2)`
	if err := r.q.GetContext(ctx, &exists, query, cardID, domain.BlockRequestPending); err != nil {
		return false, mapError(err, "failed to check pending block requests of card %d", cardID)
	}
	return exists, nil
}

func (r *BlockRequestRepository) ResolvePending(ctx context.Context, cardID int64, status domain.BlockRequestStatus) (int64, error) {
	query := `UPDATE card_block_requests SET status = $1, updated_at = $2 WHERE card_id = $3 AND status = $4`
	result, err := r.q.ExecContext(ctx, query, status, time.Now().UTC(), cardID, domain.BlockRequestPending)
	if err != nil {
		return 0, mapError(err, "failed to resolve block requests of card %d", cardID)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, mapError(err, "failed to resolve block requests of card %d", cardID)
	}
	return rows, nil
}

func (r *BlockRequestRepository) UpdateStatus(ctx context.Context, id int64, status domain.BlockRequestStatus) error {
	query := `UPDATE card_block_requests SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.q.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return mapError(err, "failed to update block request %d", id)
	}
	return expectOneRow(result, "failed to update block request %d", id)
}

func (r *BlockRequestRepository) List(ctx context.Context, page domain.Page) ([]domain.CardBlockRequest, int64, error) {
	page = page.Normalize()

	reqs := []domain.CardBlockRequest{}
	query := `SELECT ` + blockRequestColumns + ` FROM card_block_requests ORDER BY id DESC LIMIT $1 OFFSET $2`
	if err := r.q.SelectContext(ctx, &reqs, query, page.Limit, page.Offset); err != nil {
		return nil, 0, mapError(err, "failed to list block requests")
	}

	var total int64
	if err := r.q.GetContext(ctx, &total, `SELECT COUNT(*) FROM card_block_requests`); err != nil {
		return nil, 0, mapError(err, "failed to count block requests")
	}
	return reqs, total, nil
}
