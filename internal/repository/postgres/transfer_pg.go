// internal/repository/postgres/transfer_pg.go
package postgres

import (
	"context"

	"bankcards/internal/domain"
	"bankcards/internal/repository"
)

const transferColumns = `id, from_card_id, to_card_id, amount, status, description, processed_at, created_at`

// TransferRepository implements repository.TransferRepository for PostgreSQL.
type TransferRepository struct {
	q repository.DBExecutor
}

// Create adds a new transfer record to the database.
func (r *TransferRepository) Create(ctx context.Context, t *domain.Transfer) error {
	query := `INSERT INTO transfers (from_card_id, to_card_id, amount, status, description, processed_at, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err := r.q.QueryRowContext(ctx, query,
		t.FromCardID,
		t.ToCardID,
		t.Amount,
		t.Status,
		t.Description,
		t.ProcessedAt,
		t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		return mapError(err, "failed to record transfer %d -> %d", t.FromCardID, t.ToCardID)
	}
	return nil
}

func (r *TransferRepository) List(ctx context.Context, filter repository.TransferFilter, page domain.Page) ([]domain.Transfer, int64, error) {
	page = page.Normalize()

	var c conditions
	if filter.OwnerID != nil {
		c.add(`(from_card_id IN (SELECT id FROM cards WHERE owner_id = ?)
                OR to_card_id IN (SELECT id FROM cards WHERE owner_id = ?))`, *filter.OwnerID, *filter.OwnerID)
	}

	transfers := []domain.Transfer{}
	query := rebind(`SELECT ` + transferColumns + ` FROM transfers` + c.where() + ` ORDER BY id DESC LIMIT ? OFFSET ?`)
	if err := r.q.SelectContext(ctx, &transfers, query, append(c.args, page.Limit, page.Offset)...); err != nil {
		return nil, 0, mapError(err, "failed to list transfers")
	}

	var total int64
	if err := r.q.GetContext(ctx, &total, rebind(`SELECT COUNT(*) FROM transfers`+c.where()), c.args...); err != nil {
		return nil, 0, mapError(err, "failed to count transfers")
	}
	return transfers, total, nil
}
