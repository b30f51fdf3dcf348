// internal/util/errors.go
package util

import "errors"

// Common application-specific errors. Services wrap these with fmt.Errorf("...: %w")
// so callers can match them with errors.Is.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrAccessDenied       = errors.New("access denied")
	ErrInvalidState       = errors.New("invalid state")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrConflict           = errors.New("conflict")
	ErrCryptoError        = errors.New("crypto error")
	ErrPersistence        = errors.New("persistence error")
	ErrTransferFailed     = errors.New("transfer failed")
	ErrInvalidInput       = errors.New("invalid input provided")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// IsError reports whether any error in err's chain matches target.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}
