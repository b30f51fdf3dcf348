// internal/repository/memory/user_repo.go
package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bankcards/internal/domain"
	"bankcards/internal/repository"
	"bankcards/internal/util"
)

type userRepo struct {
	tx *memTx
}

func (r *userRepo) Create(ctx context.Context, user *domain.User) error {
	if err := r.tx.writable("create user"); err != nil {
		return err
	}
	if err := r.checkUnique(user.Username, user.Email, 0); err != nil {
		return err
	}
	r.tx.store.seq.user++
	user.ID = r.tx.store.seq.user
	r.tx.tables().users[user.ID] = *user
	return nil
}

func (r *userRepo) checkUnique(username, email string, selfID int64) error {
	for id, u := range r.tx.tables().users {
		if id == selfID {
			continue
		}
		if u.Username == username {
			return fmt.Errorf("username '%s': %w", username, util.ErrConflict)
		}
		if u.Email == email {
			return fmt.Errorf("email: %w", util.ErrConflict)
		}
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	u, ok := r.tx.tables().users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, util.ErrNotFound)
	}
	return &u, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	for _, u := range r.tx.tables().users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user '%s': %w", username, util.ErrNotFound)
}

func (r *userRepo) ExistsByUsername(ctx context.Context, username string, excludeID int64) (bool, error) {
	for id, u := range r.tx.tables().users {
		if id != excludeID && u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r *userRepo) ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error) {
	for id, u := range r.tx.tables().users {
		if id != excludeID && u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *userRepo) Update(ctx context.Context, user *domain.User) error {
	if err := r.tx.writable("update user"); err != nil {
		return err
	}
	if _, ok := r.tx.tables().users[user.ID]; !ok {
		return fmt.Errorf("user %d: %w", user.ID, util.ErrNotFound)
	}
	if err := r.checkUnique(user.Username, user.Email, user.ID); err != nil {
		return err
	}
	user.UpdatedAt = time.Now().UTC()
	r.tx.tables().users[user.ID] = *user
	return nil
}

// Delete refuses while the user still owns cards.
func (r *userRepo) Delete(ctx context.Context, id int64) error {
	if err := r.tx.writable("delete user"); err != nil {
		return err
	}
	t := r.tx.tables()
	if _, ok := t.users[id]; !ok {
		return fmt.Errorf("user %d: %w", id, util.ErrNotFound)
	}
	for cardID, c := range t.cards {
		if c.OwnerID == id {
			return fmt.Errorf("user %d: %w: still owns card %d", id, util.ErrInvalidState, cardID)
		}
	}
	delete(t.users, id)
	return nil
}

func (r *userRepo) List(ctx context.Context, filter repository.UserFilter, page domain.Page) ([]domain.User, int64, error) {
	t := r.tx.tables()
	var matched []domain.User
	for _, id := range sortedKeys(t.users, false) {
		u := t.users[id]
		if !strings.Contains(u.Username, filter.Username) ||
			!strings.Contains(u.FirstName, filter.FirstName) ||
			!strings.Contains(u.LastName, filter.LastName) {
			continue
		}
		matched = append(matched, u)
	}
	start, end := window(len(matched), page)
	return append([]domain.User{}, matched[start:end]...), int64(len(matched)), nil
}
