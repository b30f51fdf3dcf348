// internal/repository/memory/card_repo.go
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bankcards/internal/domain"
	"bankcards/internal/repository"
	"bankcards/internal/util"
)

type cardRepo struct {
	tx *memTx
}

func (r *cardRepo) Create(ctx context.Context, card *domain.Card) error {
	if err := r.tx.writable("create card"); err != nil {
		return err
	}
	t := r.tx.tables()
	if _, ok := t.users[card.OwnerID]; !ok {
		return fmt.Errorf("%w: card owner %d does not exist", util.ErrPersistence, card.OwnerID)
	}
	if card.Balance.IsNegative() {
		return fmt.Errorf("%w: negative opening balance", util.ErrPersistence)
	}
	for _, c := range t.cards {
		if c.EncryptedNumber == card.EncryptedNumber {
			return fmt.Errorf("card number: %w", util.ErrConflict)
		}
	}
	r.tx.store.seq.card++
	card.ID = r.tx.store.seq.card
	t.cards[card.ID] = *card
	return nil
}

func (r *cardRepo) GetByID(ctx context.Context, id int64) (*domain.Card, error) {
	c, ok := r.tx.tables().cards[id]
	if !ok {
		return nil, fmt.Errorf("card %d: %w", id, util.ErrNotFound)
	}
	return &c, nil
}

// GetForUpdate needs no row lock; the Store lock already serializes writers.
func (r *cardRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Card, error) {
	if err := r.tx.writable("lock card"); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *cardRepo) LockByIDs(ctx context.Context, ids ...int64) (map[int64]*domain.Card, error) {
	if err := r.tx.writable("lock cards"); err != nil {
		return nil, err
	}
	locked := make(map[int64]*domain.Card, len(ids))
	for _, id := range ids {
		if c, ok := r.tx.tables().cards[id]; ok {
			locked[id] = &c
		}
	}
	return locked, nil
}

func (r *cardRepo) LockByOwner(ctx context.Context, ownerID int64) ([]domain.Card, error) {
	if err := r.tx.writable("lock cards"); err != nil {
		return nil, err
	}
	t := r.tx.tables()
	owned := []domain.Card{}
	for _, id := range sortedKeys(t.cards, false) {
		if c := t.cards[id]; c.OwnerID == ownerID {
			owned = append(owned, c)
		}
	}
	return owned, nil
}

func (r *cardRepo) ExistsByNumber(ctx context.Context, encrypted string) (bool, error) {
	for _, c := range r.tx.tables().cards {
		if c.EncryptedNumber == encrypted {
			return true, nil
		}
	}
	return false, nil
}

func (r *cardRepo) AdjustBalance(ctx context.Context, id int64, delta decimal.Decimal) error {
	if err := r.tx.writable("adjust balance"); err != nil {
		return err
	}
	c, ok := r.tx.tables().cards[id]
	if !ok {
		return fmt.Errorf("card %d: %w", id, util.ErrNotFound)
	}
	next := c.Balance.Add(delta)
	if next.IsNegative() {
		return fmt.Errorf("%w: balance of card %d cannot change by %s", util.ErrInsufficientFunds, id, delta.StringFixed(2))
	}
	c.Balance = next
	c.UpdatedAt = time.Now().UTC()
	r.tx.tables().cards[id] = c
	return nil
}

func (r *cardRepo) UpdateStatus(ctx context.Context, id int64, status domain.CardStatus) error {
	if err := r.tx.writable("update card status"); err != nil {
		return err
	}
	c, ok := r.tx.tables().cards[id]
	if !ok {
		return fmt.Errorf("card %d: %w", id, util.ErrNotFound)
	}
	c.Status = status
	c.UpdatedAt = time.Now().UTC()
	r.tx.tables().cards[id] = c
	return nil
}

func (r *cardRepo) MarkExpired(ctx context.Context, id int64) (bool, error) {
	if err := r.tx.writable("expire card"); err != nil {
		return false, err
	}
	c, ok := r.tx.tables().cards[id]
	if !ok || c.Status != domain.CardStatusActive {
		return false, nil
	}
	c.Status = domain.CardStatusExpired
	c.UpdatedAt = time.Now().UTC()
	r.tx.tables().cards[id] = c
	return true, nil
}

func (r *cardRepo) ExpireDue(ctx context.Context, today time.Time) (int64, error) {
	if err := r.tx.writable("expire due cards"); err != nil {
		return 0, err
	}
	var n int64
	for id, c := range r.tx.tables().cards {
		if !c.NeedsExpiry(today) {
			continue
		}
		c.Status = domain.CardStatusExpired
		c.UpdatedAt = time.Now().UTC()
		r.tx.tables().cards[id] = c
		n++
	}
	return n, nil
}

func (r *cardRepo) Delete(ctx context.Context, id int64) error {
	if err := r.tx.writable("delete card"); err != nil {
		return err
	}
	if _, ok := r.tx.tables().cards[id]; !ok {
		return fmt.Errorf("card %d: %w", id, util.ErrNotFound)
	}
	deleteCard(r.tx.tables(), id)
	return nil
}

// deleteCard removes the card and its block requests. Transfers are audit rows and stay.
func deleteCard(t *tables, id int64) {
	delete(t.cards, id)
	for reqID, req := range t.blockRequests {
		if req.CardID == id {
			delete(t.blockRequests, reqID)
		}
	}
}

func (r *cardRepo) List(ctx context.Context, filter repository.CardFilter, page domain.Page) ([]domain.Card, int64, error) {
	var matched []domain.Card
	for _, c := range r.tx.tables().cards {
		if filter.OwnerID != nil && c.OwnerID != *filter.OwnerID {
			continue
		}
		if !strings.Contains(c.MaskedNumber, filter.NumberContains) {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		matched = append(matched, c)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	start, end := window(len(matched), page)
	return append([]domain.Card{}, matched[start:end]...), int64(len(matched)), nil
}
