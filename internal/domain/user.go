// internal/domain/user.go
package domain

import "time"

// User represents an account holder or administrator.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Roles        RoleSet   `db:"-" json:"roles"`
	Active       bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// NewUser creates an active user holding only the USER role.
func NewUser(username, email, passwordHash, firstName, lastName string) *User {
	now := time.Now().UTC()
	return &User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    firstName,
		LastName:     lastName,
		Roles:        NewRoleSet(RoleUser),
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
