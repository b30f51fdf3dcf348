// internal/repository/user_repo.go
package repository

import (
	"context"

	"bankcards/internal/domain"
)

// UserFilter narrows a user listing. Empty fields match everything; set fields are
// case-sensitive substring matches.
type UserFilter struct {
	Username  string
	FirstName string
	LastName  string
}

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	// Create inserts the user and fills in its ID.
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// ExistsByUsername ignores the user with excludeID (0 excludes nobody).
	ExistsByUsername(ctx context.Context, username string, excludeID int64) (bool, error)
	ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error)
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id int64) error
	// List returns one page ordered by id plus the total number of matches.
	List(ctx context.Context, filter UserFilter, page domain.Page) ([]domain.User, int64, error)
}
