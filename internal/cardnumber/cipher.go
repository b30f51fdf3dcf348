// internal/cardnumber/cipher.go
package cardnumber

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"bankcards/internal/util"
)

// MinSecretLength is the minimum length of the process-wide card secret.
const MinSecretLength = 32

const (
	nonceSize = 12
	hkdfInfo  = "bankcards/card-number/v1"
)

// Cipher encrypts card numbers. Implementations must be deterministic for a fixed key
// so that uniqueness can be checked on the ciphertext.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// AESCipher is a deterministic AES-256-GCM cipher. The nonce is derived from an
// HMAC of the plaintext, so equal inputs give equal outputs and tampering is still detected.
type AESCipher struct {
	aead   cipher.AEAD
	macKey []byte
}

// NewAESCipher derives the encryption and MAC keys from secret with HKDF-SHA256.
func NewAESCipher(secret string) (*AESCipher, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: card encryption key must be at least %d bytes, got %d", util.ErrCryptoError, MinSecretLength, len(secret))
	}

	keys := make([]byte, 64)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo)), keys); err != nil {
		return nil, fmt.Errorf("%w: derive keys: %v", util.ErrCryptoError, err)
	}

	block, err := aes.NewCipher(keys[:32])
	if err != nil {
		return nil, fmt.Errorf("%w: create cipher: %v", util.ErrCryptoError, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: create gcm: %v", util.ErrCryptoError, err)
	}
	return &AESCipher{aead: aead, macKey: keys[32:]}, nil
}

// Encrypt returns base64url(nonce || sealed).
func (c *AESCipher) Encrypt(plaintext string) (string, error) {
	if c == nil || c.aead == nil {
		return "", fmt.Errorf("%w: cipher not configured", util.ErrCryptoError)
	}
	nonce := c.nonce(plaintext)
	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(append(nonce, sealed...)), nil
}

// Decrypt reverses Encrypt.
func (c *AESCipher) Decrypt(ciphertext string) (string, error) {
	if c == nil || c.aead == nil {
		return "", fmt.Errorf("%w: cipher not configured", util.ErrCryptoError)
	}
	raw, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: decode ciphertext: %v", util.ErrCryptoError, err)
	}
	if len(raw) < nonceSize+c.aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", util.ErrCryptoError)
	}
	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: open ciphertext: %v", util.ErrCryptoError, err)
	}
	if !hmac.Equal(nonce, c.nonce(string(plain))) {
		return "", fmt.Errorf("%w: nonce mismatch", util.ErrCryptoError)
	}
	return string(plain), nil
}

func (c *AESCipher) nonce(plaintext string) []byte {
	mac := hmac.New(sha256.New, c.macKey)
	mac.Write([]byte(plaintext))
	return mac.Sum(nil)[:nonceSize]
}
