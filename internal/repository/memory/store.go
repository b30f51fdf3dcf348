// internal/repository/memory/store.go

// Package memory keeps every table in process memory. It backs the
// STORAGE_DRIVER=memory mode and the service and API tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"bankcards/internal/domain"
	"bankcards/internal/repository"
	"bankcards/internal/util"
)

// Store implements repository.Store. Write units of work are serialized and
// restored from a snapshot when fn fails, so a failed unit leaves no trace.
type Store struct {
	mu   sync.RWMutex
	data *tables
	seq  sequences
}

type tables struct {
	users         map[int64]domain.User
	cards         map[int64]domain.Card
	transfers     map[int64]domain.Transfer
	blockRequests map[int64]domain.CardBlockRequest
}

// sequences are not rolled back, like database sequences.
type sequences struct {
	user, card, transfer, blockRequest int64
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{data: newTables()}
}

func newTables() *tables {
	return &tables{
		users:         make(map[int64]domain.User),
		cards:         make(map[int64]domain.Card),
		transfers:     make(map[int64]domain.Transfer),
		blockRequests: make(map[int64]domain.CardBlockRequest),
	}
}

func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.cards {
		c.cards[k] = v
	}
	for k, v := range t.transfers {
		c.transfers[k] = v
	}
	for k, v := range t.blockRequests {
		c.blockRequests[k] = v
	}
	return c
}

func (s *Store) Read(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", util.ErrPersistence, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&memTx{store: s, readOnly: true})
}

func (s *Store) Write(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", util.ErrPersistence, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(&memTx{store: s}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// memTx is only valid while the Store lock taken by Read or Write is held.
type memTx struct {
	store    *Store
	readOnly bool
}

func (t *memTx) Users() repository.UserRepository { return &userRepo{tx: t} }

func (t *memTx) Cards() repository.CardRepository { return &cardRepo{tx: t} }

func (t *memTx) Transfers() repository.TransferRepository { return &transferRepo{tx: t} }

func (t *memTx) BlockRequests() repository.BlockRequestRepository { return &blockRequestRepo{tx: t} }

func (t *memTx) tables() *tables { return t.store.data }

func (t *memTx) writable(op string) error {
	if t.readOnly {
		return fmt.Errorf("%w: %s in a read-only transaction", util.ErrPersistence, op)
	}
	return nil
}

// window applies a normalized page to n sorted items.
func window(n int, page domain.Page) (int, int) {
	page = page.Normalize()
	start := page.Offset
	if start > n {
		start = n
	}
	end := start + page.Limit
	if end > n {
		end = n
	}
	return start, end
}

func sortedKeys[V any](m map[int64]V, desc bool) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if desc {
			return keys[i] > keys[j]
		}
		return keys[i] < keys[j]
	})
	return keys
}
