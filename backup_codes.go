package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strings"
)

// backupCodeAlphabet keeps codes uppercase hex so they survive being read
// aloud or retyped from a printout.
const backupCodeAlphabet = "0123456789ABCDEF"

func newBackupCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(backupCodeAlphabet))))
		if err != nil {
			return "", err
		}
		b.WriteByte(backupCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func canonicalizeBackupCode(code string) string {
	s := strings.ToUpper(strings.TrimSpace(code))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}

// backupCodeHash binds the digest to the owning identity so identical codes
// issued to different users never share a stored hash.
func backupCodeHash(identityID, canonicalCode string) string {
	data := make([]byte, 0, len(identityID)+1+len(canonicalCode))
	data = append(data, identityID...)
	data = append(data, 0)
	data = append(data, canonicalCode...)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func newBackupCodeSet(identityID string, count, length int) (codes []string, hashes []string, err error) {
	codes = make([]string, 0, count)
	hashes = make([]string, 0, count)
	for i := 0; i < count; i++ {
		code, err := newBackupCode(length)
		if err != nil {
			return nil, nil, err
		}
		codes = append(codes, code)
		hashes = append(hashes, backupCodeHash(identityID, code))
	}
	return codes, hashes, nil
}
