// internal/repository/postgres/card_pg.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"bankcards/internal/domain"
	"bankcards/internal/repository"
	"bankcards/internal/util"
)

const cardColumns = `id, owner_id, card_number, masked_card_number, expiry_date, status, balance, created_at, updated_at`

// CardRepository implements repository.CardRepository for PostgreSQL.
type CardRepository struct {
	q repository.DBExecutor
}

func (r *CardRepository) Create(ctx context.Context, card *domain.Card) error {
	query := `INSERT INTO cards (owner_id, card_number, masked_card_number, expiry_date, status, balance, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	err := r.q.QueryRowContext(ctx, query,
		card.OwnerID,
		card.EncryptedNumber,
		card.MaskedNumber,
		card.ExpiryDate,
		card.Status,
		card.Balance,
		card.CreatedAt,
		card.UpdatedAt,
	).Scan(&card.ID)
	if err != nil {
		return mapError(err, "failed to create card for user %d", card.OwnerID)
	}
	return nil
}

func (r *CardRepository) GetByID(ctx context.Context, id int64) (*domain.Card, error) {
	var card domain.Card
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1`
	if err := r.q.GetContext(ctx, &card, query, id); err != nil {
		return nil, mapError(err, "failed to get card by ID %d", id)
	}
	return &card, nil
}

func (r *CardRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Card, error) {
	var card domain.Card
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1 FOR UPDATE`
	if err := r.q.GetContext(ctx, &card, query, id); err != nil {
		return nil, mapError(err, "failed to lock card %d", id)
	}
	return &card, nil
}

// LockByIDs takes the row locks in ascending id order, so two units of work
// locking the same pair never wait on each other in a cycle.
func (r *CardRepository) LockByIDs(ctx context.Context, ids ...int64) (map[int64]*domain.Card, error) {
	cards := []domain.Card{}
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = ANY($1) ORDER BY id FOR UPDATE`
	if err := r.q.SelectContext(ctx, &cards, query, pq.Array(ids)); err != nil {
		return nil, mapError(err, "failed to lock cards %v", ids)
	}
	locked := make(map[int64]*domain.Card, len(cards))
	for i := range cards {
		locked[cards[i].ID] = &cards[i]
	}
	return locked, nil
}

func (r *CardRepository) LockByOwner(ctx context.Context, ownerID int64) ([]domain.Card, error) {
	cards := []domain.Card{}
	query := `SELECT ` + cardColumns + ` FROM cards WHERE owner_id = $1 ORDER BY id FOR UPDATE`
	if err := r.q.SelectContext(ctx, &cards, query, ownerID); err != nil {
		return nil, mapError(err, "failed to lock cards of user %d", ownerID)
	}
	return cards, nil
}

func (r *CardRepository) ExistsByNumber(ctx context.Context, encrypted string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM cards WHERE card_number = $1)`
	if err := r.q.GetContext(ctx, &exists, query, encrypted); err != nil {
		return false, mapError(err, "failed to check card number")
	}
	return exists, nil
}

func (r *CardRepository) AdjustBalance(ctx context.Context, id int64, delta decimal.Decimal) error {
	query := `UPDATE cards SET balance = balance + $1, updated_at = $2
              WHERE id = $3 AND balance + $1 >= 0`
	result, err := r.q.ExecContext(ctx, query, delta, time.Now().UTC(), id)
	if err != nil {
		return mapError(err, "failed to adjust balance of card %d", id)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return mapError(err, "failed to adjust balance of card %d", id)
	}
	if rows == 0 {
		return fmt.Errorf("%w: balance of card %d cannot change by %s", util.ErrInsufficientFunds, id, delta.StringFixed(2))
	}
	return nil
}

func (r *CardRepository) UpdateStatus(ctx context.Context, id int64, status domain.CardStatus) error {
	query := `UPDATE cards SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.q.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return mapError(err, "failed to update status of card %d", id)
	}
	return expectOneRow(result, "failed to update status of card %d", id)
}

func (r *CardRepository) MarkExpired(ctx context.Context, id int64) (bool, error) {
	query := `UPDATE cards SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	result, err := r.q.ExecContext(ctx, query, domain.CardStatusExpired, time.Now().UTC(), id, domain.CardStatusActive)
	if err != nil {
		return false, mapError(err, "failed to expire card %d", id)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, mapError(err, "failed to expire card %d", id)
	}
	return rows > 0, nil
}

func (r *CardRepository) ExpireDue(ctx context.Context, today time.Time) (int64, error) {
	query := `UPDATE cards SET status = $1, updated_at = $2
              WHERE status = $3 AND (expiry_date IS NULL OR expiry_date < $4)`
	result, err := r.q.ExecContext(ctx, query,
		domain.CardStatusExpired, time.Now().UTC(), domain.CardStatusActive, domain.DateOf(today))
	if err != nil {
		return 0, mapError(err, "failed to expire due cards")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, mapError(err, "failed to expire due cards")
	}
	return rows, nil
}

func (r *CardRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "failed to delete card %d", id)
	}
	return expectOneRow(result, "failed to delete card %d", id)
}

func (r *CardRepository) List(ctx context.Context, filter repository.CardFilter, page domain.Page) ([]domain.Card, int64, error) {
	page = page.Normalize()

	var c conditions
	if filter.OwnerID != nil {
		c.add("owner_id = ?", *filter.OwnerID)
	}
	if filter.NumberContains != "" {
		c.add("strpos(masked_card_number, ?) > 0", filter.NumberContains)
	}
	if filter.Status != nil {
		c.add("status = ?", *filter.Status)
	}

	cards := []domain.Card{}
	query := rebind(`SELECT ` + cardColumns + ` FROM cards` + c.where() + ` ORDER BY id LIMIT ? OFFSET ?`)
	if err := r.q.SelectContext(ctx, &cards, query, append(c.args, page.Limit, page.Offset)...); err != nil {
		return nil, 0, mapError(err, "failed to list cards")
	}

	var total int64
	if err := r.q.GetContext(ctx, &total, rebind(`SELECT COUNT(*) FROM cards`+c.where()), c.args...); err != nil {
		return nil, 0, mapError(err, "failed to count cards")
	}
	return cards, total, nil
}
