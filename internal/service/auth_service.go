// internal/service/auth_service.go
package service

import (
	"context"
	"fmt"
	"log/slog"

	"bankcards/internal/domain"
	"bankcards/internal/repository"
	"bankcards/internal/security"
	"bankcards/internal/util"
)

// TokenIssuer signs access tokens for a principal.
type TokenIssuer interface {
	Issue(p domain.Principal) (security.Token, error)
}

// AuthResult is returned by a successful login or registration.
type AuthResult struct {
	Token security.Token
	User  *domain.User
}

// AuthService defines login and self-registration.
type AuthService interface {
	Login(ctx context.Context, username, password string) (*AuthResult, error)
	RegisterAndIssue(ctx context.Context, req RegisterRequest) (*AuthResult, error)
}

type authService struct {
	store  repository.Store
	users  UserService
	hasher PasswordHasher
	tokens TokenIssuer
	logger *slog.Logger
}

// NewAuthService creates a new instance of AuthService.
func NewAuthService(store repository.Store, users UserService, hasher PasswordHasher, tokens TokenIssuer, logger *slog.Logger) AuthService {
	return &authService{store: store, users: users, hasher: hasher, tokens: tokens, logger: logger}
}

// Login does not reveal whether the username or the password was wrong.
func (s *authService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	var user *domain.User
	err := s.store.Read(ctx, func(tx repository.Tx) error {
		var err error
		user, err = tx.Users().GetByUsername(ctx, username)
		return err
	})
	if util.IsError(err, util.ErrNotFound) {
		return nil, fmt.Errorf("login: %w", util.ErrInvalidCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		s.logger.Warn("login rejected", "username", username)
		return nil, fmt.Errorf("login: %w", err)
	}
	if !user.Active {
		return nil, fmt.Errorf("login: %w: account is deactivated", util.ErrAccessDenied)
	}
	return s.issue(user)
}

func (s *authService) RegisterAndIssue(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	user, err := s.users.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *authService) issue(user *domain.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(domain.PrincipalFor(user))
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResult{Token: token, User: user}, nil
}
