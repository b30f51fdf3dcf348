// internal/policy/authorization.go

// Package policy holds the authorization predicates consulted before any state change.
// All functions are pure: they look only at their arguments.
package policy

import "bankcards/internal/domain"

// IsAdmin reports whether the principal holds the ADMIN role.
func IsAdmin(p domain.Principal) bool {
	return p.Active && p.Roles.Has(domain.RoleAdmin)
}

// OwnsCard reports whether the card belongs to the principal.
func OwnsCard(p domain.Principal, card *domain.Card) bool {
	return p.Active && card != nil && card.OwnerID == p.ID
}

func CanAccessCard(p domain.Principal, card *domain.Card) bool {
	return IsAdmin(p) || OwnsCard(p, card)
}

func CanAccessUser(p domain.Principal, targetUserID int64) bool {
	return IsAdmin(p) || (p.Active && p.ID == targetUserID)
}
