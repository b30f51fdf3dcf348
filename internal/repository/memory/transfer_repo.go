// internal/repository/memory/transfer_repo.go
package memory

import (
	"context"
	"fmt"

	"bankcards/internal/domain"
	"bankcards/internal/repository"
	"bankcards/internal/util"
)

type transferRepo struct {
	tx *memTx
}

func (r *transferRepo) Create(ctx context.Context, transfer *domain.Transfer) error {
	if err := r.tx.writable("record transfer"); err != nil {
		return err
	}
	if !transfer.Amount.IsPositive() || transfer.FromCardID == transfer.ToCardID {
		return fmt.Errorf("%w: transfer row violates its checks", util.ErrPersistence)
	}
	r.tx.store.seq.transfer++
	transfer.ID = r.tx.store.seq.transfer
	r.tx.tables().transfers[transfer.ID] = *transfer
	return nil
}

func (r *transferRepo) List(ctx context.Context, filter repository.TransferFilter, page domain.Page) ([]domain.Transfer, int64, error) {
	t := r.tx.tables()
	ownsCard := func(cardID int64) bool {
		c, ok := t.cards[cardID]
		return ok && c.OwnerID == *filter.OwnerID
	}

	var matched []domain.Transfer
	for _, id := range sortedKeys(t.transfers, true) {
		tr := t.transfers[id]
		if filter.OwnerID != nil && !ownsCard(tr.FromCardID) && !ownsCard(tr.ToCardID) {
			continue
		}
		matched = append(matched, tr)
	}
	start, end := window(len(matched), page)
	return append([]domain.Transfer{}, matched[start:end]...), int64(len(matched)), nil
}
