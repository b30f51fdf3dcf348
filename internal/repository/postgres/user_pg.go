// internal/repository/postgres/user_pg.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"bankcards/internal/domain"
	"bankcards/internal/repository"
)

const userColumns = `id, username, email, password_hash, first_name, last_name, roles, is_active, created_at, updated_at`

// UserRepository implements repository.UserRepository for PostgreSQL.
type UserRepository struct {
	q repository.DBExecutor
}

// userRow carries the roles column, which the domain keeps as a bit set.
type userRow struct {
	domain.User
	RoleNames pq.StringArray `db:"roles"`
}

func (r userRow) toDomain() (*domain.User, error) {
	roles, err := domain.ParseRoleSet(r.RoleNames)
	if err != nil {
		return nil, fmt.Errorf("user %d has invalid roles: %w", r.ID, err)
	}
	u := r.User
	u.Roles = roles
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `INSERT INTO users (username, email, password_hash, first_name, last_name, roles, is_active, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	err := r.q.QueryRowContext(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		pq.StringArray(user.Roles.Names()),
		user.Active,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		return mapError(err, "failed to create user '%s'", user.Username)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var row userRow
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if err := r.q.GetContext(ctx, &row, query, id); err != nil {
		return nil, mapError(err, "failed to get user by ID %d", id)
	}
	return row.toDomain()
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var row userRow
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	if err := r.q.GetContext(ctx, &row, query, username); err != nil {
		return nil, mapError(err, "failed to get user by username '%s'", username)
	}
	return row.toDomain()
}

func (r *UserRepository) ExistsByUsername(ctx context.Context, username string, excludeID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 AND id <> $2)`
	if err := r.q.GetContext(ctx, &exists, query, username, excludeID); err != nil {
		return false, mapError(err, "failed to check username '%s'", username)
	}
	return exists, nil
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id <> $2)`
	if err := r.q.GetContext(ctx, &exists, query, email, excludeID); err != nil {
		return false, mapError(err, "failed to check email")
	}
	return exists, nil
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = time.Now().UTC()
	query := `UPDATE users
              SET username = $1, email = $2, password_hash = $3, first_name = $4, last_name = $5,
                  roles = $6, is_active = $7, updated_at = $8
              WHERE id = $9`
	result, err := r.q.ExecContext(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		pq.StringArray(user.Roles.Names()),
		user.Active,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return mapError(err, "failed to update user %d", user.ID)
	}
	return expectOneRow(result, "failed to update user %d", user.ID)
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "failed to delete user %d", id)
	}
	return expectOneRow(result, "failed to delete user %d", id)
}

// List filters with strpos so that user input is matched literally and case-sensitively.
func (r *UserRepository) List(ctx context.Context, filter repository.UserFilter, page domain.Page) ([]domain.User, int64, error) {
	page = page.Normalize()

	var c conditions
	if filter.Username != "" {
		c.add("strpos(username, ?) > 0", filter.Username)
	}
	if filter.FirstName != "" {
		c.add("strpos(first_name, ?) > 0", filter.FirstName)
	}
	if filter.LastName != "" {
		c.add("strpos(last_name, ?) > 0", filter.LastName)
	}

	rows := []userRow{}
	query := rebind(`SELECT ` + userColumns + ` FROM users` + c.where() + ` ORDER BY id LIMIT ? OFFSET ?`)
	if err := r.q.SelectContext(ctx, &rows, query, append(c.args, page.Limit, page.Offset)...); err != nil {
		return nil, 0, mapError(err, "failed to list users")
	}

	var total int64
	if err := r.q.GetContext(ctx, &total, rebind(`SELECT COUNT(*) FROM users`+c.where()), c.args...); err != nil {
		return nil, 0, mapError(err, "failed to count users")
	}

	users := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		u, err := row.toDomain()
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	return users, total, nil
}
