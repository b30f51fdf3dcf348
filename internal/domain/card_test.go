// internal/domain/card_test.go
package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCardExpiry(t *testing.T) {
	now := time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)
	at := func(y int, m time.Month, d int) *time.Time {
		v := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return &v
	}

	tests := []struct {
		name    string
		expiry  *time.Time
		status  CardStatus
		expired bool
		usable  bool
	}{
		{"Future", at(2027, 1, 1), CardStatusActive, false, true},
		{"Today", at(2026, 5, 10), CardStatusActive, false, true},
		{"Yesterday", at(2026, 5, 9), CardStatusActive, true, false},
		{"Missing", nil, CardStatusActive, true, false},
		{"BlockedFuture", at(2027, 1, 1), CardStatusBlocked, false, false},
		{"ExpiredStatus", at(2027, 1, 1), CardStatusExpired, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Card{ExpiryDate: tt.expiry, Status: tt.status}
			assert.Equal(t, tt.expired, c.IsExpired(now))
			assert.Equal(t, tt.usable, c.IsUsable(now))
			assert.Equal(t, tt.status == CardStatusActive && tt.expired, c.NeedsExpiry(now))
		})
	}
}

func TestNewCard(t *testing.T) {
	expiry := time.Date(2029, 3, 4, 17, 30, 0, 0, time.UTC)
	c := NewCard(7, "enc", "**** **** **** 1234", expiry, decimal.RequireFromString("10.50"))

	assert.Equal(t, CardStatusActive, c.Status)
	assert.Equal(t, int64(7), c.OwnerID)
	assert.Equal(t, time.Date(2029, 3, 4, 0, 0, 0, 0, time.UTC), *c.ExpiryDate)
	assert.True(t, c.Balance.Equal(decimal.RequireFromString("10.5")))
}

func TestRoleSet(t *testing.T) {
	s, err := ParseRoleSet([]string{"ROLE_ADMIN", "user"})
	assert.NoError(t, err)
	assert.True(t, s.Has(RoleAdmin))
	assert.True(t, s.Has(RoleUser))
	assert.Equal(t, []string{"ADMIN", "USER"}, s.Names())

	_, err = ParseRoleSet([]string{"ROOT"})
	assert.Error(t, err)

	assert.True(t, RoleSet(0).IsEmpty())
	assert.False(t, NewRoleSet(RoleUser).Has(RoleAdmin))

	raw, err := NewRoleSet(RoleUser).MarshalJSON()
	assert.NoError(t, err)
	assert.JSONEq(t, `["USER"]`, string(raw))

	var decoded RoleSet
	assert.NoError(t, decoded.UnmarshalJSON([]byte(`["ADMIN"]`)))
	assert.Equal(t, NewRoleSet(RoleAdmin), decoded)
}
