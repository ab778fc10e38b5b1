package identity

import (
	"context"
	"errors"

	"github.com/jdmarc/identity/internal/rate"
	"github.com/jdmarc/identity/jwt"
	"github.com/jdmarc/identity/password"
)

// Engine composes the identity components behind the request-facing
// operations. Engines are configured once at startup and treated as
// immutable afterwards; every method is safe for concurrent use when the
// injected stores are.
type Engine struct {
	config        Config
	credentials   CredentialStore
	verifications VerificationTokenStore
	staffCodes    StaffCodeStore
	mailer        Mailer
	limiter       *rate.Limiter
	hasher        *password.Bcrypt
	totp          *totpManager
	tokens        *jwt.Manager
}

// Deps bundles the collaborators injected into [New]. Mailer and Limiter
// are optional: without a mailer verification requests fail with
// [ErrMailUnavailable], without a limiter login throttling is disabled.
type Deps struct {
	Credentials   CredentialStore
	Verifications VerificationTokenStore
	StaffCodes    StaffCodeStore
	Mailer        Mailer
	Limiter       *rate.Limiter
}

// New validates the configuration and wires an Engine.
func New(cfg Config, deps Deps) (*Engine, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if deps.Credentials == nil || deps.Verifications == nil || deps.StaffCodes == nil {
		return nil, errors.New("credential, verification, and staff code stores are required")
	}

	tokens, err := jwt.NewManager(jwt.Config{
		Secret: cfg.JWT.Secret,
		TTL:    cfg.JWT.TTL,
		Issuer: cfg.JWT.Issuer,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewBcrypt(password.Config{Cost: cfg.Password.Cost})
	if err != nil {
		return nil, err
	}

	return &Engine{
		config:        cfg,
		credentials:   deps.Credentials,
		verifications: deps.Verifications,
		staffCodes:    deps.StaffCodes,
		mailer:        deps.Mailer,
		limiter:       deps.Limiter,
		hasher:        hasher,
		totp:          newTOTPManager(cfg.TOTP),
		tokens:        tokens,
	}, nil
}

// VerifyToken validates a bearer token and re-reads the live identity it
// refers to. The caller receives the stored record, never claims data, so
// role and verification checks always reflect current state.
func (e *Engine) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	subject, err := e.tokens.Parse(token)
	if err != nil {
		return nil, ErrUnauthorized
	}

	ident, err := e.credentials.FindByID(ctx, subject.ID)
	if err != nil {
		return nil, err
	}
	if ident == nil {
		return nil, ErrUserNotFound
	}

	return ident, nil
}
