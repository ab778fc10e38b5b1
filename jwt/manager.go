// Package jwt issues and validates the signed bearer tokens of the
// identity core. Tokens carry the subject id and email plus the standard
// issued-at/expiry claims, and deliberately nothing else: role and
// verification state are re-read from the credential store on every
// privileged request, so a stale token can never smuggle an old role.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrExpired is returned when a structurally valid token is past expiry.
	ErrExpired = errors.New("token expired")
	// ErrMalformed is returned when the signature or structure is invalid.
	ErrMalformed = errors.New("token malformed")
)

// Config defines the signing parameters for a [Manager].
type Config struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
	Leeway time.Duration
}

// Manager signs and parses bearer tokens with HMAC-SHA256. It holds no
// state beyond its configuration and is safe for concurrent use.
type Manager struct {
	config Config
}

// Claims is the payload carried by a bearer token.
type Claims struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Subject is the validated result of [Manager.Parse].
type Subject struct {
	ID    string
	Email string
}

// NewManager validates cfg and returns a ready Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("signing secret is required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	return &Manager{config: cfg}, nil
}

// Issue signs a token for the subject with the configured TTL.
func (m *Manager) Issue(id, email string) (string, error) {
	now := time.Now()
	claims := Claims{
		UID:   id,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.config.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse validates signature, structure, and expiry, and returns the
// embedded subject. Expired tokens report [ErrExpired]; every other
// validation failure reports [ErrMalformed].
func (m *Manager) Parse(tokenStr string) (*Subject, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformed
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UID == "" {
		return nil, ErrMalformed
	}

	return &Subject{ID: claims.UID, Email: claims.Email}, nil
}
