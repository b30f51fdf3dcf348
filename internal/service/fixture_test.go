// internal/service/fixture_test.go
package service

import (
	"context"
	"testing"
	"time"

	"bankcards/internal/cardnumber"
	"bankcards/internal/domain"
	"bankcards/internal/repository"
	"bankcards/internal/repository/memory"
	"bankcards/internal/security"
	"bankcards/internal/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testCardKey = "0123456789abcdef0123456789abcdef"

type fixture struct {
	store  *memory.Store
	hasher *security.BcryptHasher
	users  UserService
	cards  CardService
	ledger LedgerService

	admin domain.Principal
	alice domain.Principal
	bob   domain.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, memory.NewStore())
}

func newFixtureWithStore(t *testing.T, store *memory.Store) *fixture {
	t.Helper()
	return newFixtureOn(t, store, store)
}

// newFixtureOn seeds through seed and runs the services on svcStore.
func newFixtureOn(t *testing.T, seed *memory.Store, svcStore repository.Store) *fixture {
	t.Helper()
	cipher, err := cardnumber.NewAESCipher(testCardKey)
	require.NoError(t, err)

	logger := util.DiscardLogger()
	f := &fixture{
		store:  seed,
		hasher: security.NewBcryptHasher(bcrypt.MinCost),
	}
	f.users = NewUserService(svcStore, f.hasher, logger)
	f.cards = NewCardService(svcStore, cardnumber.NewCodec(cipher), logger)
	f.ledger = NewLedgerService(svcStore, logger)

	seedUsers := NewUserService(seed, f.hasher, logger)
	ctx := context.Background()
	admin, _, err := seedUsers.EnsureAdmin(ctx, RegisterRequest{
		Username: "admin", Email: "admin@example.com", Password: "admin-pass",
	})
	require.NoError(t, err)
	alice, err := seedUsers.Register(ctx, RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: "alice-pass", FirstName: "Alice", LastName: "Smith",
	})
	require.NoError(t, err)
	bob, err := seedUsers.Register(ctx, RegisterRequest{
		Username: "bob", Email: "bob@example.com", Password: "bob-pass", FirstName: "Bob", LastName: "Jones",
	})
	require.NoError(t, err)

	f.admin = domain.PrincipalFor(admin)
	f.alice = domain.PrincipalFor(alice)
	f.bob = domain.PrincipalFor(bob)
	return f
}

// issueCard stores an ACTIVE card for owner with the given balance, bypassing the services.
func (f *fixture) issueCard(t *testing.T, owner domain.Principal, balance string) *domain.Card {
	t.Helper()
	return f.insertCard(t, owner, balance, time.Now().AddDate(1, 0, 0), domain.CardStatusActive)
}

func (f *fixture) insertCard(t *testing.T, owner domain.Principal, balance string, expiry time.Time, status domain.CardStatus) *domain.Card {
	t.Helper()
	ctx := context.Background()
	cipher, err := cardnumber.NewAESCipher(testCardKey)
	require.NoError(t, err)
	codec := cardnumber.NewCodec(cipher)

	var card *domain.Card
	require.NoError(t, f.store.Write(ctx, func(tx repository.Tx) error {
		number, err := codec.Generate(ctx, tx.Cards().ExistsByNumber)
		if err != nil {
			return err
		}
		card = domain.NewCard(owner.ID, number.Encrypted, number.Masked, expiry, decimal.RequireFromString(balance))
		card.Status = status
		return tx.Cards().Create(ctx, card)
	}))
	return card
}

func (f *fixture) balance(t *testing.T, cardID int64) decimal.Decimal {
	t.Helper()
	return f.reload(t, cardID).Balance
}

func (f *fixture) reload(t *testing.T, cardID int64) *domain.Card {
	t.Helper()
	var card *domain.Card
	require.NoError(t, f.store.Read(context.Background(), func(tx repository.Tx) error {
		var err error
		card, err = tx.Cards().GetByID(context.Background(), cardID)
		return err
	}))
	return card
}

func (f *fixture) transfers(t *testing.T) []domain.Transfer {
	t.Helper()
	list, _, err := f.ledger.ListTransfers(context.Background(), domain.Page{Limit: domain.MaxPageLimit}, f.admin)
	require.NoError(t, err)
	return list
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// failingCommitStore fails the next n Write units of work after fn succeeds, as a
// failed commit would. The unit of work is rolled back.
type failingCommitStore struct {
	*memory.Store
	n      int
	err    error
	onFail func()
}

func (s *failingCommitStore) Write(ctx context.Context, fn func(tx repository.Tx) error) error {
	if s.n == 0 {
		return s.Store.Write(ctx, fn)
	}
	s.n--
	return s.Store.Write(ctx, func(tx repository.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		if s.onFail != nil {
			s.onFail()
		}
		return s.err
	})
}

// MockStore is a mock implementation of repository.Store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Read(ctx context.Context, fn func(tx repository.Tx) error) error {
	args := m.Called(ctx, fn)
	return args.Error(0)
}

func (m *MockStore) Write(ctx context.Context, fn func(tx repository.Tx) error) error {
	args := m.Called(ctx, fn)
	return args.Error(0)
}
