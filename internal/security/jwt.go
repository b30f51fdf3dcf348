// internal/security/jwt.go
package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"bankcards/internal/domain"
	"bankcards/internal/util"
)

// Token is a signed access token and its expiry.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type accessClaims struct {
	Roles  domain.RoleSet `json:"roles"`
	Active bool           `json:"active"`
	jwt.RegisteredClaims
}

// JWTIssuer signs and verifies HS256 access tokens carrying a principal.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTIssuer builds an issuer from a shared secret.
func NewJWTIssuer(secret string, ttl time.Duration) (*JWTIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("jwt ttl must be positive, got %s", ttl)
	}
	return &JWTIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (i *JWTIssuer) Issue(p domain.Principal) (Token, error) {
	now := i.now().UTC()
	expires := now.Add(i.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		Roles:  p.Roles,
		Active: p.Active,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(p.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return Token{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return Token{Value: signed, ExpiresAt: expires}, nil
}

// Verify parses raw and returns its principal. Any defect yields util.ErrInvalidCredentials.
func (i *JWTIssuer) Verify(raw string) (domain.Principal, error) {
	parsed, err := jwt.ParseWithClaims(raw, &accessClaims{}, func(token *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %w", util.ErrInvalidCredentials, err)
	}
	claims, ok := parsed.Claims.(*accessClaims)
	if !ok || !parsed.Valid {
		return domain.Principal{}, fmt.Errorf("%w: invalid token claims", util.ErrInvalidCredentials)
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: bad subject: %w", util.ErrInvalidCredentials, err)
	}
	return domain.Principal{ID: id, Roles: claims.Roles, Active: claims.Active}, nil
}
