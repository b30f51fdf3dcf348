// internal/cardnumber/codec.go
package cardnumber

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
	"unicode"
	"unicode/utf8"

	"bankcards/internal/util"
)

const (
	// Length is the number of digits in a card number.
	Length = 16
	// DefaultMaxAttempts bounds regeneration on ciphertext collisions.
	DefaultMaxAttempts = 10

	maskPrefix = "**** **** **** "
)

// ExistsFunc reports whether a card with the given ciphertext is already stored.
type ExistsFunc func(ctx context.Context, encrypted string) (bool, error)

// Codec generates, encrypts, decrypts and masks card numbers.
type Codec struct {
	cipher      Cipher
	random      io.Reader
	maxAttempts int
}

// NewCodec creates a Codec reading randomness from crypto/rand.
func NewCodec(c Cipher) *Codec {
	return &Codec{cipher: c, random: rand.Reader, maxAttempts: DefaultMaxAttempts}
}

// WithRandom replaces the random source. Intended for tests.
func (c *Codec) WithRandom(r io.Reader) *Codec {
	c.random = r
	return c
}

// Generated is a freshly issued card number. Plain must not leave the issuing call.
type Generated struct {
	Plain     string
	Encrypted string
	Masked    string
}

// Generate draws random numbers until one whose ciphertext is not yet stored is found.
func (c *Codec) Generate(ctx context.Context, exists ExistsFunc) (Generated, error) {
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		plain, err := c.randomDigits()
		if err != nil {
			return Generated{}, err
		}
		encrypted, err := c.Encrypt(plain)
		if err != nil {
			return Generated{}, err
		}
		taken, err := exists(ctx, encrypted)
		if err != nil {
			return Generated{}, fmt.Errorf("check card number uniqueness: %w", err)
		}
		if !taken {
			return Generated{Plain: plain, Encrypted: encrypted, Masked: MaskString(plain)}, nil
		}
	}
	return Generated{}, fmt.Errorf("%w: no unique card number after %d attempts", util.ErrConflict, c.maxAttempts)
}

func (c *Codec) Encrypt(plaintext string) (string, error) {
	if c.cipher == nil {
		return "", fmt.Errorf("%w: cipher not configured", util.ErrCryptoError)
	}
	return c.cipher.Encrypt(plaintext)
}

func (c *Codec) Decrypt(ciphertext string) (string, error) {
	if c.cipher == nil {
		return "", fmt.Errorf("%w: cipher not configured", util.ErrCryptoError)
	}
	return c.cipher.Decrypt(ciphertext)
}

func (c *Codec) randomDigits() (string, error) {
	var b strings.Builder
	b.Grow(Length)
	ten := big.NewInt(10)
	for i := 0; i < Length; i++ {
		n, err := rand.Int(c.random, ten)
		if err != nil {
			return "", fmt.Errorf("%w: read random digits: %v", util.ErrCryptoError, err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// Mask returns the display form of s, or s itself when it is nil or not 16 characters
// once whitespace is removed.
func Mask(s *string) *string {
	if s == nil {
		return nil
	}
	masked := MaskString(*s)
	return &masked
}

// MaskString is Mask for a non-optional value.
func MaskString(s string) string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if utf8.RuneCountInString(clean) != Length {
		return s
	}
	runes := []rune(clean)
	return maskPrefix + string(runes[Length-4:])
}
