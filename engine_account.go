package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jdmarc/identity/internal/rate"
)

// Register creates a local account. Field validation, role validation, and
// the uniqueness check all run before a staff code is consumed, so a
// registration that fails for any of those reasons never burns the
// one-time code.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if e == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}

	username := strings.TrimSpace(req.Username)
	email := normalizeEmail(req.Email)
	if username == "" || email == "" || req.Password == "" {
		return nil, ErrInvalidRequest
	}

	role := req.Role
	if role == "" {
		role = e.config.Account.DefaultRole
	}
	if !ValidRole(role) {
		return nil, ErrRoleInvalid
	}

	existing, err := e.credentials.FindByEmailOrUsername(ctx, email, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAccountExists
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, errors.Join(ErrInvalidRequest, err)
	}

	var staffCode string
	if role == RoleStaff {
		code := strings.TrimSpace(req.StaffCode)
		department := strings.TrimSpace(req.Department)
		if code == "" || department == "" {
			return nil, ErrInvalidRequest
		}

		// Last step before create: the code is spent here and stays spent
		// even if the insert below loses a race.
		consumed, err := e.staffCodes.Consume(ctx, code, department)
		if err != nil {
			return nil, err
		}
		if !consumed {
			return nil, ErrStaffCodeInvalid
		}
		staffCode = code
	}

	ident := &Identity{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		StaffCode:    staffCode,
	}
	if err := e.credentials.Create(ctx, ident); err != nil {
		return nil, err
	}

	return &RegisterResult{UserID: ident.ID, Role: ident.Role}, nil
}

// Login verifies the email/password pair and issues a bearer token.
// Unknown accounts, wrong passwords, and federated accounts without a
// password all fail with the same [ErrInvalidCredentials].
func (e *Engine) Login(ctx context.Context, email, pass string) (*LoginResult, error) {
	if e == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	ip := clientIPFromContext(ctx)
	if e.limiter != nil {
		if err := e.limiter.CheckLogin(ctx, email, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				return nil, ErrLoginRateLimited
			}
			return nil, err
		}
	}
	if email == "" || pass == "" {
		return nil, e.failLogin(ctx, email, ip)
	}

	ident, err := e.credentials.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if ident == nil {
		return nil, e.failLogin(ctx, email, ip)
	}

	ok, err := e.hasher.Verify(pass, ident.PasswordHash)
	if err != nil || !ok {
		return nil, e.failLogin(ctx, email, ip)
	}

	token, err := e.tokens.Issue(ident.ID, ident.Email)
	if err != nil {
		return nil, err
	}

	if e.limiter != nil {
		// Best effort; a reset failure must not block a correct login.
		_ = e.limiter.ResetLogin(ctx, email, ip)
	}

	return &LoginResult{Token: token, Identity: ident}, nil
}

func (e *Engine) failLogin(ctx context.Context, email, ip string) error {
	if e.limiter != nil {
		if err := e.limiter.IncrementLogin(ctx, email, ip); errors.Is(err, rate.ErrRateLimited) {
			return ErrLoginRateLimited
		}
	}
	return ErrInvalidCredentials
}

// SetRole changes an identity's role. Administrative operation; the HTTP
// layer guards it with a live role check.
func (e *Engine) SetRole(ctx context.Context, id string, role Role) (*Identity, error) {
	if !ValidRole(role) {
		return nil, ErrRoleInvalid
	}

	ident, err := e.credentials.SetRole(ctx, id, role)
	if err != nil {
		return nil, err
	}
	if ident == nil {
		return nil, ErrUserNotFound
	}

	return ident, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
