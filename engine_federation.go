package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// FederatedLogin resolves a social-provider profile to a local identity
// and issues a bearer token for it. Absent accounts are created with the
// email pre-verified and no password hash; for existing accounts the
// provider stamp is first-write-wins, so a second provider sharing the
// email cannot silently take the account over.
//
// The profile is trusted as supplied by the caller. Verifying the
// provider's token server-side is outside this core.
func (e *Engine) FederatedLogin(ctx context.Context, provider Provider, profile FederatedProfile) (*FederatedResult, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	if !ValidProvider(provider) {
		return nil, ErrProviderInvalid
	}

	email := normalizeEmail(profile.Email)
	if email == "" {
		return nil, ErrInvalidRequest
	}

	ident, err := e.credentials.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	isNew := false
	if ident == nil {
		ident = &Identity{
			ID:            uuid.NewString(),
			Username:      federatedUsername(profile.DisplayName, email),
			Email:         email,
			Role:          e.config.Account.DefaultRole,
			EmailVerified: true,
			Provider:      provider,
		}
		if err := e.credentials.Create(ctx, ident); err != nil {
			if !errors.Is(err, ErrAccountExists) {
				return nil, err
			}
			// Lost a creation race; the winner's record is authoritative.
			ident, err = e.credentials.FindByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			if ident == nil {
				return nil, ErrAccountExists
			}
		} else {
			isNew = true
		}
	}

	if !isNew && ident.Provider == "" {
		if err := e.credentials.SetProvider(ctx, ident.ID, provider); err != nil {
			return nil, err
		}
		ident.Provider = provider
	}

	token, err := e.tokens.Issue(ident.ID, ident.Email)
	if err != nil {
		return nil, err
	}

	return &FederatedResult{Token: token, Identity: ident, IsNewUser: isNew}, nil
}

func federatedUsername(displayName, email string) string {
	name := strings.TrimSpace(displayName)
	if name != "" {
		return name
	}
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}
