// internal/domain/principal.go
package domain

// Principal is the authenticated actor performing a request.
type Principal struct {
	ID     int64
	Roles  RoleSet
	Active bool
}

// PrincipalFor derives the principal of a stored user.
func PrincipalFor(u *User) Principal {
	return Principal{ID: u.ID, Roles: u.Roles, Active: u.Active}
}
