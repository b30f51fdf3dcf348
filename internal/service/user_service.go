// internal/service/user_service.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"bankcards/internal/domain"
	"bankcards/internal/policy"
	"bankcards/internal/repository"
	"bankcards/internal/util"
)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Compare returns util.ErrInvalidCredentials on mismatch.
	Compare(hash, password string) error
}

// RegisterRequest carries the fields of a new account.
type RegisterRequest struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// UpdateUserRequest carries optional changes. Roles and Active are honoured for administrators only.
type UpdateUserRequest struct {
	Username  *string
	Email     *string
	Password  *string
	FirstName *string
	LastName  *string
	Roles     *domain.RoleSet
	Active    *bool
}

// UserService defines the user directory operations.
type UserService interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.User, error)
	CreateUser(ctx context.Context, req RegisterRequest, p domain.Principal) (*domain.User, error)
	GetUser(ctx context.Context, userID int64, p domain.Principal) (*domain.User, error)
	ListUsers(ctx context.Context, filter repository.UserFilter, page domain.Page, p domain.Principal) ([]domain.User, int64, error)
	UpdateUser(ctx context.Context, userID int64, req UpdateUserRequest, p domain.Principal) (*domain.User, error)
	DeleteUser(ctx context.Context, userID int64, p domain.Principal) error
	// EnsureAdmin creates an administrator with the given credentials unless the username exists.
	EnsureAdmin(ctx context.Context, req RegisterRequest) (*domain.User, bool, error)
}

type userService struct {
	store  repository.Store
	hasher PasswordHasher
	logger *slog.Logger
}

// NewUserService creates a new instance of UserService.
func NewUserService(store repository.Store, hasher PasswordHasher, logger *slog.Logger) UserService {
	return &userService{store: store, hasher: hasher, logger: logger}
}

func validateRegistration(req RegisterRequest) error {
	if strings.TrimSpace(req.Username) == "" {
		return fmt.Errorf("%w: username is required", util.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return fmt.Errorf("%w: invalid email %q", util.ErrInvalidInput, req.Email)
	}
	if req.Password == "" {
		return fmt.Errorf("%w: password is required", util.ErrInvalidInput)
	}
	return nil
}

func (s *userService) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	user, err := s.create(ctx, req, domain.NewRoleSet(domain.RoleUser))
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

func (s *userService) CreateUser(ctx context.Context, req RegisterRequest, p domain.Principal) (*domain.User, error) {
	if !policy.IsAdmin(p) {
		return nil, fmt.Errorf("create user: %w", util.ErrAccessDenied)
	}
	user, err := s.create(ctx, req, domain.NewRoleSet(domain.RoleUser))
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user created", "user_id", user.ID, "username", user.Username, "created_by", p.ID)
	return user, nil
}

func (s *userService) EnsureAdmin(ctx context.Context, req RegisterRequest) (*domain.User, bool, error) {
	var existing *domain.User
	err := s.store.Read(ctx, func(tx repository.Tx) error {
		var err error
		existing, err = tx.Users().GetByUsername(ctx, req.Username)
		return err
	})
	if err == nil {
		return existing, false, nil
	}
	if !util.IsError(err, util.ErrNotFound) {
		return nil, false, fmt.Errorf("ensure admin: %w", err)
	}
	user, err := s.create(ctx, req, domain.NewRoleSet(domain.RoleUser, domain.RoleAdmin))
	if err != nil {
		return nil, false, fmt.Errorf("ensure admin: %w", err)
	}
	s.logger.Info("administrator created", "user_id", user.ID, "username", user.Username)
	return user, true, nil
}

func (s *userService) create(ctx context.Context, req RegisterRequest, roles domain.RoleSet) (*domain.User, error) {
	if err := validateRegistration(req); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := domain.NewUser(req.Username, req.Email, hash, req.FirstName, req.LastName)
	user.Roles = roles
	err = s.store.Write(ctx, func(tx repository.Tx) error {
		if err := s.checkUnique(ctx, tx, req.Username, req.Email, 0); err != nil {
			return err
		}
		return tx.Users().Create(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) checkUnique(ctx context.Context, tx repository.Tx, username, email string, selfID int64) error {
	taken, err := tx.Users().ExistsByUsername(ctx, username, selfID)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: username '%s' is already taken", util.ErrConflict, username)
	}
	taken, err = tx.Users().ExistsByEmail(ctx, email, selfID)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: email is already registered", util.ErrConflict)
	}
	return nil
}

func (s *userService) GetUser(ctx context.Context, userID int64, p domain.Principal) (*domain.User, error) {
	if !policy.CanAccessUser(p, userID) {
		return nil, fmt.Errorf("get user: %w", util.ErrAccessDenied)
	}
	var user *domain.User
	err := s.store.Read(ctx, func(tx repository.Tx) error {
		var err error
		user, err = tx.Users().GetByID(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context, filter repository.UserFilter, page domain.Page, p domain.Principal) ([]domain.User, int64, error) {
	if !policy.IsAdmin(p) {
		return nil, 0, fmt.Errorf("list users: %w", util.ErrAccessDenied)
	}
	var users []domain.User
	var total int64
	err := s.store.Read(ctx, func(tx repository.Tx) error {
		var err error
		users, total, err = tx.Users().List(ctx, filter, page)
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// UpdateUser applies the set fields. Role and activation changes requested by a
// non-administrator are dropped without error.
func (s *userService) UpdateUser(ctx context.Context, userID int64, req UpdateUserRequest, p domain.Principal) (*domain.User, error) {
	if !policy.CanAccessUser(p, userID) {
		return nil, fmt.Errorf("update user: %w", util.ErrAccessDenied)
	}
	admin := policy.IsAdmin(p)
	if admin && req.Roles != nil && req.Roles.IsEmpty() {
		return nil, fmt.Errorf("update user: %w: role set cannot be empty", util.ErrInvalidState)
	}
	if req.Email != nil {
		if _, err := mail.ParseAddress(*req.Email); err != nil {
			return nil, fmt.Errorf("update user: %w: invalid email %q", util.ErrInvalidInput, *req.Email)
		}
	}
	if req.Username != nil && strings.TrimSpace(*req.Username) == "" {
		return nil, fmt.Errorf("update user: %w: username is required", util.ErrInvalidInput)
	}

	var hash string
	if req.Password != nil && *req.Password != "" {
		var err error
		if hash, err = s.hasher.Hash(*req.Password); err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
	}

	var user *domain.User
	err := s.store.Write(ctx, func(tx repository.Tx) error {
		var err error
		user, err = tx.Users().GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if req.Username != nil {
			user.Username = *req.Username
		}
		if req.Email != nil {
			user.Email = *req.Email
		}
		if req.FirstName != nil {
			user.FirstName = *req.FirstName
		}
		if req.LastName != nil {
			user.LastName = *req.LastName
		}
		if hash != "" {
			user.PasswordHash = hash
		}
		if admin {
			if req.Roles != nil {
				user.Roles = *req.Roles
			}
			if req.Active != nil {
				user.Active = *req.Active
			}
		}
		if err := s.checkUnique(ctx, tx, user.Username, user.Email, user.ID); err != nil {
			return err
		}
		return tx.Users().Update(ctx, user)
	})
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	s.logger.Info("user updated", "user_id", userID, "updated_by", p.ID)
	return user, nil
}

// DeleteUser removes the user and their cards. Every card must be empty.
func (s *userService) DeleteUser(ctx context.Context, userID int64, p domain.Principal) error {
	if !policy.IsAdmin(p) {
		return fmt.Errorf("delete user: %w", util.ErrAccessDenied)
	}
	if userID == p.ID {
		return fmt.Errorf("delete user: %w: cannot delete self", util.ErrInvalidState)
	}
	var removed int
	err := s.store.Write(ctx, func(tx repository.Tx) error {
		if _, err := tx.Users().GetByID(ctx, userID); err != nil {
			return err
		}
		cards, err := tx.Cards().LockByOwner(ctx, userID)
		if err != nil {
			return err
		}
		for _, c := range cards {
			if !c.Balance.IsZero() {
				return fmt.Errorf("%w: card %d still holds %s", util.ErrInvalidState, c.ID, c.Balance.StringFixed(2))
			}
		}
		for _, c := range cards {
			if err := tx.Cards().Delete(ctx, c.ID); err != nil {
				return err
			}
		}
		removed = len(cards)
		return tx.Users().Delete(ctx, userID)
	})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.logger.Info("user deleted", "user_id", userID, "deleted_by", p.ID, "cards_removed", removed)
	return nil
}
