// Package password hashes and verifies user credentials with bcrypt.
// The work factor is deliberately expensive; verification is constant
// time with respect to the stored hash.
package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	minCost      = bcrypt.MinCost
	maxCost      = bcrypt.MaxCost
	minPassBytes = 8
)

// Config defines the bcrypt work factor.
type Config struct {
	Cost int
}

// Bcrypt wraps the bcrypt work factor behind Hash/Verify.
type Bcrypt struct {
	config Config
}

// NewBcrypt validates the cost and returns a hasher.
func NewBcrypt(cfg Config) (*Bcrypt, error) {
	if cfg.Cost < minCost || cfg.Cost > maxCost {
		return nil, errors.New("invalid bcrypt cost")
	}

	return &Bcrypt{config: cfg}, nil
}

// Hash derives a salted bcrypt hash of the password.
func (b *Bcrypt) Hash(password string) (string, error) {
	// Raw string bytes, no normalization; bcrypt ignores input past 72 bytes.
	if len(password) < minPassBytes {
		return "", errors.New("password must be at least 8 bytes")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), b.config.Cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether password matches the stored hash. An empty hash
// (federated-only account) never matches and is not an error.
func (b *Bcrypt) Verify(password, encodedHash string) (bool, error) {
	if encodedHash == "" {
		return false, nil
	}

	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}
