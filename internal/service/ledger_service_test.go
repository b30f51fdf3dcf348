// internal/service/ledger_service_test.go
package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"bankcards/internal/domain"
	"bankcards/internal/repository/memory"
	"bankcards/internal/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreditDebit(t *testing.T) {
	ctx := context.Background()

	t.Run("SuccessfulCredit", func(t *testing.T) {
		f := newFixture(t)
		card := f.issueCard(t, f.alice, "10.00")

		updated, err := f.ledger.Credit(ctx, card.ID, dec("15.50"), f.alice)
		require.NoError(t, err)
		assert.True(t, updated.Balance.Equal(dec("25.50")))
		assert.True(t, f.balance(t, card.ID).Equal(dec("25.50")))
	})

	t.Run("DebitMoreThanBalanceLeavesBalance", func(t *testing.T) {
		f := newFixture(t)
		card := f.issueCard(t, f.alice, "50.00")

		_, err := f.ledger.Debit(ctx, card.ID, dec("100.00"), f.alice)
		assert.True(t, util.IsError(err, util.ErrInsufficientFunds))
		assert.True(t, f.balance(t, card.ID).Equal(dec("50.00")))
	})

	t.Run("DebitWholeBalance", func(t *testing.T) {
		f := newFixture(t)
		card := f.issueCard(t, f.alice, "50.00")

		updated, err := f.ledger.Debit(ctx, card.ID, dec("50"), f.alice)
		require.NoError(t, err)
		assert.True(t, updated.Balance.IsZero())
	})

	t.Run("InvalidAmounts", func(t *testing.T) {
		f := newFixture(t)
		card := f.issueCard(t, f.alice, "50.00")

		for _, amount := range []string{"0", "-1", "0.001", "10.555"} {
			_, err := f.ledger.Credit(ctx, card.ID, dec(amount), f.alice)
			assert.True(t, util.IsError(err, util.ErrInvalidAmount), amount)
		}
		assert.True(t, f.balance(t, card.ID).Equal(dec("50.00")))
	})

	t.Run("ForeignCardDenied", func(t *testing.T) {
		f := newFixture(t)
		card := f.issueCard(t, f.alice, "50.00")

		_, err := f.ledger.Debit(ctx, card.ID, dec("1"), f.bob)
		assert.True(t, util.IsError(err, util.ErrAccessDenied))

		_, err = f.ledger.Credit(ctx, card.ID, dec("1"), f.admin)
		assert.NoError(t, err)
	})

	t.Run("BlockedCardRejected", func(t *testing.T) {
		f := newFixture(t)
		card := f.insertCard(t, f.alice, "50.00", time.Now().AddDate(1, 0, 0), domain.CardStatusBlocked)

		_, err := f.ledger.Credit(ctx, card.ID, dec("1"), f.alice)
		assert.True(t, util.IsError(err, util.ErrInvalidState))
	})

	t.Run("ExpiredCardRejected", func(t *testing.T) {
		f := newFixture(t)
		card := f.insertCard(t, f.alice, "50.00", time.Now().AddDate(0, 0, -1), domain.CardStatusActive)

		_, err := f.ledger.Debit(ctx, card.ID, dec("1"), f.alice)
		assert.True(t, util.IsError(err, util.ErrInvalidState))
	})

	t.Run("MissingCard", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.Credit(ctx, 999, dec("1"), f.admin)
		assert.True(t, util.IsError(err, util.ErrNotFound))
	})
}

func TestTransfer(t *testing.T) {
	ctx := context.Background()

	t.Run("SuccessfulTransferConservesTotal", func(t *testing.T) {
		f := newFixture(t)
		from := f.issueCard(t, f.alice, "100.00")
		to := f.issueCard(t, f.alice, "20.00")
		desc := "rent"

		transfer, err := f.ledger.Transfer(ctx, TransferRequest{
			FromCardID: from.ID, ToCardID: to.ID, Amount: dec("30.25"), Description: &desc,
		}, f.alice)
		require.NoError(t, err)

		assert.Equal(t, domain.TransferStatusCompleted, transfer.Status)
		assert.NotNil(t, transfer.ProcessedAt)
		assert.True(t, f.balance(t, from.ID).Equal(dec("69.75")))
		assert.True(t, f.balance(t, to.ID).Equal(dec("50.25")))
		assert.True(t, f.balance(t, from.ID).Add(f.balance(t, to.ID)).Equal(dec("120.00")))

		rows := f.transfers(t)
		require.Len(t, rows, 1)
		assert.Equal(t, domain.TransferStatusCompleted, rows[0].Status)
		assert.Equal(t, "rent", *rows[0].Description)
	})

	t.Run("NonOwnerDeniedWithoutChanges", func(t *testing.T) {
		f := newFixture(t)
		from := f.issueCard(t, f.alice, "100.00")
		to := f.issueCard(t, f.bob, "0")

		_, err := f.ledger.Transfer(ctx, TransferRequest{FromCardID: from.ID, ToCardID: to.ID, Amount: dec("10")}, f.alice)
		assert.True(t, util.IsError(err, util.ErrAccessDenied))
		assert.True(t, f.balance(t, from.ID).Equal(dec("100.00")))
		assert.True(t, f.balance(t, to.ID).IsZero())
		assert.Empty(t, f.transfers(t))
	})

	t.Run("AdminMayTransferBetweenAnyCards", func(t *testing.T) {
		f := newFixture(t)
		from := f.issueCard(t, f.alice, "100.00")
		to := f.issueCard(t, f.bob, "0")

		_, err := f.ledger.Transfer(ctx, TransferRequest{FromCardID: from.ID, ToCardID: to.ID, Amount: dec("10")}, f.admin)
		require.NoError(t, err)
		assert.True(t, f.balance(t, to.ID).Equal(dec("10")))
	})

	t.Run("ValidationFailures", func(t *testing.T) {
		f := newFixture(t)
		a := f.issueCard(t, f.alice, "10.00")
		b := f.issueCard(t, f.alice, "0")
		blocked := f.insertCard(t, f.alice, "10.00", time.Now().AddDate(1, 0, 0), domain.CardStatusBlocked)

		tests := []struct {
			name string
			req  TransferRequest
			want error
			msg  string
		}{
			{"MissingSource", TransferRequest{FromCardID: 999, ToCardID: b.ID, Amount: dec("1")}, util.ErrNotFound, "source card"},
			{"MissingDestination", TransferRequest{FromCardID: a.ID, ToCardID: 999, Amount: dec("1")}, util.ErrNotFound, "destination card"},
			{"SameCard", TransferRequest{FromCardID: a.ID, ToCardID: a.ID, Amount: dec("1")}, util.ErrInvalidState, "same card"},
			{"BlockedSource", TransferRequest{FromCardID: blocked.ID, ToCardID: b.ID, Amount: dec("1")}, util.ErrInvalidState, "source card not active"},
			{"BlockedDestination", TransferRequest{FromCardID: a.ID, ToCardID: blocked.ID, Amount: dec("1")}, util.ErrInvalidState, "destination card not active"},
			{"ZeroAmount", TransferRequest{FromCardID: a.ID, ToCardID: b.ID, Amount: decimal.Zero}, util.ErrInvalidAmount, ""},
			{"InsufficientFunds", TransferRequest{FromCardID: a.ID, ToCardID: b.ID, Amount: dec("10.01")}, util.ErrInsufficientFunds, ""},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.ledger.Transfer(ctx, tt.req, f.alice)
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.want), err.Error())
				assert.False(t, errors.Is(err, util.ErrTransferFailed))
				assert.Contains(t, err.Error(), tt.msg)
			})
		}
		assert.True(t, f.balance(t, a.ID).Equal(dec("10.00")))
		assert.Empty(t, f.transfers(t))
	})

	t.Run("CommitFailureRecordsFailedRow", func(t *testing.T) {
		seed := memory.NewStore()
		commitErr := errors.New("connection lost during commit")
		failing := &failingCommitStore{Store: seed, err: commitErr}
		f := newFixtureOn(t, seed, failing)
		from := f.issueCard(t, f.alice, "100.00")
		to := f.issueCard(t, f.alice, "0")

		failing.n = 1
		_, err := f.ledger.Transfer(ctx, TransferRequest{FromCardID: from.ID, ToCardID: to.ID, Amount: dec("40")}, f.alice)
		require.Error(t, err)
		assert.True(t, util.IsError(err, util.ErrTransferFailed))
		assert.True(t, errors.Is(err, commitErr))

		assert.True(t, f.balance(t, from.ID).Equal(dec("100.00")))
		assert.True(t, f.balance(t, to.ID).IsZero())

		rows := f.transfers(t)
		require.Len(t, rows, 1)
		assert.Equal(t, domain.TransferStatusFailed, rows[0].Status)
		assert.True(t, rows[0].Amount.Equal(dec("40")))
		assert.NotNil(t, rows[0].ProcessedAt)
	})

	t.Run("FailedRowSurvivesCancelledContext", func(t *testing.T) {
		seed := memory.NewStore()
		failing := &failingCommitStore{Store: seed, err: errors.New("commit aborted")}
		f := newFixtureOn(t, seed, failing)
		from := f.issueCard(t, f.alice, "100.00")
		to := f.issueCard(t, f.alice, "0")

		cctx, cancel := context.WithCancel(ctx)
		defer cancel()
		failing.n = 1
		failing.onFail = cancel

		_, err := f.ledger.Transfer(cctx, TransferRequest{FromCardID: from.ID, ToCardID: to.ID, Amount: dec("1")}, f.alice)
		assert.True(t, util.IsError(err, util.ErrTransferFailed))
		rows := f.transfers(t)
		require.Len(t, rows, 1)
		assert.Equal(t, domain.TransferStatusFailed, rows[0].Status)
	})

	t.Run("BeginFailureWritesNoAuditRow", func(t *testing.T) {
		store := new(MockStore)
		ledger := NewLedgerService(store, util.DiscardLogger())
		store.On("Write", mock.Anything, mock.Anything).Return(util.ErrPersistence).Once()

		_, err := ledger.Transfer(ctx, TransferRequest{FromCardID: 1, ToCardID: 2, Amount: dec("1")}, domain.Principal{ID: 1, Active: true})
		assert.True(t, util.IsError(err, util.ErrPersistence))
		assert.False(t, util.IsError(err, util.ErrTransferFailed))
		store.AssertNumberOfCalls(t, "Write", 1)
		store.AssertExpectations(t)
	})
}

func TestConcurrentOppositeTransfers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.issueCard(t, f.alice, "100.00")
	b := f.issueCard(t, f.alice, "100.00")

	const rounds = 50
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = f.ledger.Transfer(ctx, TransferRequest{FromCardID: a.ID, ToCardID: b.ID, Amount: dec("10")}, f.alice)
		}()
		go func() {
			defer wg.Done()
			_, _ = f.ledger.Transfer(ctx, TransferRequest{FromCardID: b.ID, ToCardID: a.ID, Amount: dec("5")}, f.alice)
		}()
	}
	wg.Wait()

	balA, balB := f.balance(t, a.ID), f.balance(t, b.ID)
	assert.False(t, balA.IsNegative())
	assert.False(t, balB.IsNegative())
	assert.True(t, balA.Add(balB).Equal(dec("200.00")), "total %s", balA.Add(balB))
}

func TestRandomOperationsKeepBalancesNonNegative(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cards := []*domain.Card{
		f.issueCard(t, f.alice, "25.00"),
		f.issueCard(t, f.alice, "0"),
		f.issueCard(t, f.alice, "7.50"),
	}
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 300; i++ {
		amount := decimal.New(rng.Int63n(3000)+1, -2)
		c := cards[rng.Intn(len(cards))]
		switch rng.Intn(3) {
		case 0:
			_, _ = f.ledger.Credit(ctx, c.ID, amount, f.alice)
		case 1:
			_, _ = f.ledger.Debit(ctx, c.ID, amount, f.alice)
		default:
			to := cards[rng.Intn(len(cards))]
			before := f.balance(t, c.ID).Add(f.balance(t, to.ID))
			_, err := f.ledger.Transfer(ctx, TransferRequest{FromCardID: c.ID, ToCardID: to.ID, Amount: amount}, f.alice)
			if err == nil {
				assert.True(t, before.Equal(f.balance(t, c.ID).Add(f.balance(t, to.ID))))
			}
		}
		for _, card := range cards {
			require.False(t, f.balance(t, card.ID).IsNegative(), "card %d went negative at step %d", card.ID, i)
		}
	}
}

func TestBlockRequests(t *testing.T) {
	ctx := context.Background()

	t.Run("OnePendingPerCard", func(t *testing.T) {
		f := newFixture(t)
		card := f.issueCard(t, f.alice, "0")

		req, err := f.ledger.CreateBlockRequest(ctx, card.ID, "lost it", f.alice)
		require.NoError(t, err)
		assert.Equal(t, domain.BlockRequestPending, req.Status)

		_, err = f.ledger.CreateBlockRequest(ctx, card.ID, "again", f.alice)
		assert.True(t, util.IsError(err, util.ErrConflict))
	})

	t.Run("ForeignCardDenied", func(t *testing.T) {
		f := newFixture(t)
		card := f.issueCard(t, f.alice, "0")
		_, err := f.ledger.CreateBlockRequest(ctx, card.ID, "", f.bob)
		assert.True(t, util.IsError(err, util.ErrAccessDenied))
	})

	t.Run("UnusableCardRejected", func(t *testing.T) {
		f := newFixture(t)
		card := f.insertCard(t, f.alice, "0", time.Now().AddDate(1, 0, 0), domain.CardStatusBlocked)
		_, err := f.ledger.CreateBlockRequest(ctx, card.ID, "", f.alice)
		assert.True(t, util.IsError(err, util.ErrInvalidState))
	})

	t.Run("ListIsAdminOnlyNewestFirst", func(t *testing.T) {
		f := newFixture(t)
		first := f.issueCard(t, f.alice, "0")
		second := f.issueCard(t, f.alice, "0")
		_, err := f.ledger.CreateBlockRequest(ctx, first.ID, "", f.alice)
		require.NoError(t, err)
		_, err = f.ledger.CreateBlockRequest(ctx, second.ID, "", f.alice)
		require.NoError(t, err)

		_, _, err = f.ledger.ListBlockRequests(ctx, domain.Page{}, f.alice)
		assert.True(t, util.IsError(err, util.ErrAccessDenied))

		reqs, total, err := f.ledger.ListBlockRequests(ctx, domain.Page{}, f.admin)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, reqs, 2)
		assert.Equal(t, second.ID, reqs[0].CardID)
	})

	t.Run("Reject", func(t *testing.T) {
		f := newFixture(t)
		card := f.issueCard(t, f.alice, "0")
		req, err := f.ledger.CreateBlockRequest(ctx, card.ID, "", f.alice)
		require.NoError(t, err)

		_, err = f.ledger.RejectBlockRequest(ctx, req.ID, f.alice)
		assert.True(t, util.IsError(err, util.ErrAccessDenied))

		rejected, err := f.ledger.RejectBlockRequest(ctx, req.ID, f.admin)
		require.NoError(t, err)
		assert.Equal(t, domain.BlockRequestRejected, rejected.Status)

		_, err = f.ledger.RejectBlockRequest(ctx, req.ID, f.admin)
		assert.True(t, util.IsError(err, util.ErrInvalidState))

		_, err = f.ledger.CreateBlockRequest(ctx, card.ID, "second try", f.alice)
		assert.NoError(t, err)
	})
}

func TestListTransfers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a1 := f.issueCard(t, f.alice, "100")
	a2 := f.issueCard(t, f.alice, "0")
	b1 := f.issueCard(t, f.bob, "100")
	b2 := f.issueCard(t, f.bob, "0")

	_, err := f.ledger.Transfer(ctx, TransferRequest{FromCardID: a1.ID, ToCardID: a2.ID, Amount: dec("1")}, f.alice)
	require.NoError(t, err)
	_, err = f.ledger.Transfer(ctx, TransferRequest{FromCardID: b1.ID, ToCardID: b2.ID, Amount: dec("2")}, f.bob)
	require.NoError(t, err)

	mine, total, err := f.ledger.ListTransfers(ctx, domain.Page{}, f.alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, mine, 1)
	assert.Equal(t, a1.ID, mine[0].FromCardID)

	all, total, err := f.ledger.ListTransfers(ctx, domain.Page{}, f.admin)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, b1.ID, all[0].FromCardID)

	_, _, err = f.ledger.ListTransfers(ctx, domain.Page{}, domain.Principal{ID: f.alice.ID, Roles: f.alice.Roles})
	assert.True(t, util.IsError(err, util.ErrAccessDenied))
}
