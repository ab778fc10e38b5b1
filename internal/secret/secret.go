// Package secret generates and hashes the random material used by
// single-use tokens. Plaintext secrets travel to the user exactly once;
// only SHA-256 digests are stored.
package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

const verificationTokenBytes = 32

// NewVerificationToken returns a high-entropy opaque token in base64url
// form together with the hex digest to persist.
func NewVerificationToken() (token, digest string, err error) {
	raw := make([]byte, verificationTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}

	token = base64.RawURLEncoding.EncodeToString(raw)
	return token, Hash(token), nil
}

// Hash returns the hex-encoded SHA-256 digest of a token.
func Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
