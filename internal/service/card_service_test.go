// internal/service/card_service_test.go
package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"bankcards/internal/domain"
	"bankcards/internal/repository"
	"bankcards/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var maskedPattern = regexp.MustCompile(`^\*\*\*\* \*\*\*\* \*\*\*\* \d{4}$`)

func TestCreateCard(t *testing.T) {
	ctx := context.Background()

	t.Run("Defaults", func(t *testing.T) {
		f := newFixture(t)
		card, err := f.cards.CreateCard(ctx, CreateCardRequest{}, f.alice)
		require.NoError(t, err)

		assert.Equal(t, f.alice.ID, card.OwnerID)
		assert.Equal(t, domain.CardStatusActive, card.Status)
		assert.True(t, card.Balance.IsZero())
		assert.Regexp(t, maskedPattern, card.MaskedNumber)
		require.NotNil(t, card.ExpiryDate)
		assert.Equal(t, domain.DateOf(time.Now().UTC().AddDate(3, 0, 0)), *card.ExpiryDate)
	})

	t.Run("AdminIssuesForOtherUser", func(t *testing.T) {
		f := newFixture(t)
		balance := dec("12.34")
		expiry := time.Now().AddDate(0, 6, 0)
		card, err := f.cards.CreateCard(ctx, CreateCardRequest{OwnerID: &f.bob.ID, ExpiryDate: &expiry, InitialBalance: &balance}, f.admin)
		require.NoError(t, err)
		assert.Equal(t, f.bob.ID, card.OwnerID)
		assert.True(t, card.Balance.Equal(balance))
		assert.Equal(t, domain.DateOf(expiry.UTC()), *card.ExpiryDate)
	})

	t.Run("ExpiryIsComparedInUTC", func(t *testing.T) {
		f := newFixture(t)
		today := domain.DateOf(time.Now().UTC())

		// Tomorrow in UTC+14 is still today in UTC.
		east := time.Date(today.Year(), today.Month(), today.Day()+1, 0, 30, 0, 0, time.FixedZone("UTC+14", 14*3600))
		_, err := f.cards.CreateCard(ctx, CreateCardRequest{ExpiryDate: &east}, f.alice)
		assert.True(t, util.IsError(err, util.ErrInvalidInput))

		west := time.Date(today.Year(), today.Month(), today.Day()+1, 20, 0, 0, 0, time.FixedZone("UTC-12", -12*3600))
		card, err := f.cards.CreateCard(ctx, CreateCardRequest{ExpiryDate: &west}, f.alice)
		require.NoError(t, err)
		assert.Equal(t, today.AddDate(0, 0, 2), *card.ExpiryDate)
	})

	t.Run("UserCannotIssueForOthers", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.cards.CreateCard(ctx, CreateCardRequest{OwnerID: &f.bob.ID}, f.alice)
		assert.True(t, util.IsError(err, util.ErrAccessDenied))
	})

	t.Run("MissingOwner", func(t *testing.T) {
		f := newFixture(t)
		missing := int64(999)
		_, err := f.cards.CreateCard(ctx, CreateCardRequest{OwnerID: &missing}, f.admin)
		assert.True(t, util.IsError(err, util.ErrNotFound))
	})

	t.Run("NegativeBalance", func(t *testing.T) {
		f := newFixture(t)
		balance := dec("-0.01")
		_, err := f.cards.CreateCard(ctx, CreateCardRequest{InitialBalance: &balance}, f.alice)
		assert.True(t, util.IsError(err, util.ErrInvalidAmount))
	})

	t.Run("PastExpiry", func(t *testing.T) {
		f := newFixture(t)
		expiry := time.Now().AddDate(0, 0, -1)
		_, err := f.cards.CreateCard(ctx, CreateCardRequest{ExpiryDate: &expiry}, f.alice)
		assert.True(t, util.IsError(err, util.ErrInvalidInput))
	})

	t.Run("UniqueNumbers", func(t *testing.T) {
		f := newFixture(t)
		seen := map[string]bool{}
		for i := 0; i < 20; i++ {
			card, err := f.cards.CreateCard(ctx, CreateCardRequest{}, f.alice)
			require.NoError(t, err)
			assert.False(t, seen[card.EncryptedNumber])
			seen[card.EncryptedNumber] = true
		}
	})
}

func TestGetCard(t *testing.T) {
	ctx := context.Background()

	t.Run("OwnerAndAdminOnly", func(t *testing.T) {
		f := newFixture(t)
		card := f.issueCard(t, f.alice, "1")

		_, err := f.cards.GetCard(ctx, card.ID, f.alice)
		assert.NoError(t, err)
		_, err = f.cards.GetCard(ctx, card.ID, f.admin)
		assert.NoError(t, err)
		_, err = f.cards.GetCard(ctx, card.ID, f.bob)
		assert.True(t, util.IsError(err, util.ErrAccessDenied))
	})

	t.Run("LazyExpiryIsPersisted", func(t *testing.T) {
		f := newFixture(t)
		card := f.insertCard(t, f.alice, "5", time.Now().AddDate(0, 0, -2), domain.CardStatusActive)

		got, err := f.cards.GetCard(ctx, card.ID, f.alice)
		require.NoError(t, err)
		assert.Equal(t, domain.CardStatusExpired, got.Status)
		assert.Equal(t, domain.CardStatusExpired, f.reload(t, card.ID).Status)

		again, err := f.cards.GetCard(ctx, card.ID, f.alice)
		require.NoError(t, err)
		assert.Equal(t, domain.CardStatusExpired, again.Status)
	})

	t.Run("ExpiringTodayStaysActive", func(t *testing.T) {
		f := newFixture(t)
		card := f.insertCard(t, f.alice, "5", time.Now().UTC(), domain.CardStatusActive)

		got, err := f.cards.GetCard(ctx, card.ID, f.alice)
		require.NoError(t, err)
		assert.Equal(t, domain.CardStatusActive, got.Status)
	})

	t.Run("Missing", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.cards.GetCard(ctx, 42, f.admin)
		assert.True(t, util.IsError(err, util.ErrNotFound))
	})
}

func TestListCards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a1 := f.issueCard(t, f.alice, "0")
	f.issueCard(t, f.alice, "0")
	f.issueCard(t, f.bob, "0")
	f.insertCard(t, f.bob, "0", time.Now().AddDate(1, 0, 0), domain.CardStatusBlocked)

	t.Run("UserSeesOnlyOwnCards", func(t *testing.T) {
		cards, total, err := f.cards.ListCards(ctx, repository.CardFilter{OwnerID: &f.bob.ID}, domain.Page{}, f.alice)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		for _, c := range cards {
			assert.Equal(t, f.alice.ID, c.OwnerID)
		}
	})

	t.Run("AdminFilters", func(t *testing.T) {
		blocked := domain.CardStatusBlocked
		cards, total, err := f.cards.ListCards(ctx, repository.CardFilter{Status: &blocked}, domain.Page{}, f.admin)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, f.bob.ID, cards[0].OwnerID)

		cards, _, err = f.cards.ListCards(ctx, repository.CardFilter{NumberContains: a1.MaskedNumber[15:]}, domain.Page{}, f.admin)
		require.NoError(t, err)
		assert.NotEmpty(t, cards)
		for _, c := range cards {
			assert.Contains(t, c.MaskedNumber, a1.MaskedNumber[15:])
		}
	})

	t.Run("Paging", func(t *testing.T) {
		cards, total, err := f.cards.ListCards(ctx, repository.CardFilter{}, domain.Page{Limit: 3}, f.admin)
		require.NoError(t, err)
		assert.Equal(t, int64(4), total)
		assert.Len(t, cards, 3)
	})

	t.Run("ListAppliesLazyExpiry", func(t *testing.T) {
		g := newFixture(t)
		stale := g.insertCard(t, g.alice, "0", time.Now().AddDate(0, -1, 0), domain.CardStatusActive)
		cards, _, err := g.cards.ListCards(ctx, repository.CardFilter{}, domain.Page{}, g.alice)
		require.NoError(t, err)
		require.Len(t, cards, 1)
		assert.Equal(t, domain.CardStatusExpired, cards[0].Status)
		assert.Equal(t, domain.CardStatusExpired, g.reload(t, stale.ID).Status)
	})
}

func TestDeleteCard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	withCent := f.issueCard(t, f.alice, "0.01")
	err := f.cards.DeleteCard(ctx, withCent.ID, f.admin)
	assert.True(t, util.IsError(err, util.ErrInvalidState))

	empty := f.issueCard(t, f.alice, "0.00")
	assert.True(t, util.IsError(f.cards.DeleteCard(ctx, empty.ID, f.alice), util.ErrAccessDenied))
	require.NoError(t, f.cards.DeleteCard(ctx, empty.ID, f.admin))

	_, err = f.cards.GetCard(ctx, empty.ID, f.admin)
	assert.True(t, util.IsError(err, util.ErrNotFound))
}

func TestBlockCard(t *testing.T) {
	ctx := context.Background()

	t.Run("ApprovesPendingRequest", func(t *testing.T) {
		f := newFixture(t)
		card := f.issueCard(t, f.alice, "0")
		req, err := f.ledger.CreateBlockRequest(ctx, card.ID, "stolen", f.alice)
		require.NoError(t, err)

		blocked, err := f.cards.BlockCard(ctx, card.ID, f.admin)
		require.NoError(t, err)
		assert.Equal(t, domain.CardStatusBlocked, blocked.Status)

		reqs, _, err := f.ledger.ListBlockRequests(ctx, domain.Page{}, f.admin)
		require.NoError(t, err)
		require.Len(t, reqs, 1)
		assert.Equal(t, req.ID, reqs[0].ID)
		assert.Equal(t, domain.BlockRequestApproved, reqs[0].Status)
	})

	t.Run("OwnerMayBlock", func(t *testing.T) {
		f := newFixture(t)
		card := f.issueCard(t, f.alice, "0")
		_, err := f.cards.BlockCard(ctx, card.ID, f.bob)
		assert.True(t, util.IsError(err, util.ErrAccessDenied))
		_, err = f.cards.BlockCard(ctx, card.ID, f.alice)
		assert.NoError(t, err)
	})

	t.Run("ExpiredCard", func(t *testing.T) {
		f := newFixture(t)
		card := f.insertCard(t, f.alice, "0", time.Now().AddDate(0, 0, -1), domain.CardStatusActive)
		_, err := f.cards.BlockCard(ctx, card.ID, f.admin)
		assert.True(t, util.IsError(err, util.ErrInvalidState))
		assert.Contains(t, err.Error(), "cannot block an expired card")
	})

	t.Run("AlreadyBlocked", func(t *testing.T) {
		f := newFixture(t)
		card := f.insertCard(t, f.alice, "0", time.Now().AddDate(1, 0, 0), domain.CardStatusBlocked)
		_, err := f.cards.BlockCard(ctx, card.ID, f.admin)
		assert.True(t, util.IsError(err, util.ErrInvalidState))
	})
}

func TestActivateCard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	blocked := f.insertCard(t, f.alice, "0", time.Now().AddDate(1, 0, 0), domain.CardStatusBlocked)
	_, err := f.cards.ActivateCard(ctx, blocked.ID, f.alice)
	assert.True(t, util.IsError(err, util.ErrAccessDenied))

	card, err := f.cards.ActivateCard(ctx, blocked.ID, f.admin)
	require.NoError(t, err)
	assert.Equal(t, domain.CardStatusActive, card.Status)

	card, err = f.cards.ActivateCard(ctx, blocked.ID, f.admin)
	require.NoError(t, err)
	assert.Equal(t, domain.CardStatusActive, card.Status)

	expired := f.insertCard(t, f.alice, "0", time.Now().AddDate(1, 0, 0), domain.CardStatusExpired)
	_, err = f.cards.ActivateCard(ctx, expired.ID, f.admin)
	assert.True(t, util.IsError(err, util.ErrInvalidState))

	lapsed := f.insertCard(t, f.alice, "0", time.Now().AddDate(0, 0, -3), domain.CardStatusBlocked)
	_, err = f.cards.ActivateCard(ctx, lapsed.ID, f.admin)
	assert.True(t, util.IsError(err, util.ErrInvalidState))
}

func TestExpireDueCardsAndJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	fresh := f.issueCard(t, f.alice, "0")
	stale := f.insertCard(t, f.alice, "0", time.Now().AddDate(0, 0, -1), domain.CardStatusActive)
	blocked := f.insertCard(t, f.alice, "0", time.Now().AddDate(0, 0, -1), domain.CardStatusBlocked)

	job, err := NewExpiryJob(f.cards, "@hourly", util.DiscardLogger())
	require.NoError(t, err)
	job.Run()

	assert.Equal(t, domain.CardStatusActive, f.reload(t, fresh.ID).Status)
	assert.Equal(t, domain.CardStatusExpired, f.reload(t, stale.ID).Status)
	assert.Equal(t, domain.CardStatusBlocked, f.reload(t, blocked.ID).Status)

	n, err := f.cards.ExpireDueCards(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = NewExpiryJob(f.cards, "not a schedule", util.DiscardLogger())
	assert.Error(t, err)
}
