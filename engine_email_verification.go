package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jdmarc/identity/internal/rate"
	"github.com/jdmarc/identity/internal/secret"
)

// RequestEmailVerification mints a single-use verification token for the
// account owning email, supersedes any prior unused token, and hands the
// plaintext token to the mailer. The token is stored hashed with a bounded
// lifetime; expiry needs no cleanup pass.
func (e *Engine) RequestEmailVerification(ctx context.Context, email string) error {
	if e == nil || e.verifications == nil {
		return ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if email == "" {
		return ErrInvalidRequest
	}

	// Throttled before the lookup so repeated probes for foreign addresses
	// spend the same budget as legitimate requests.
	if e.limiter != nil {
		if err := e.limiter.CheckVerification(ctx, email, clientIPFromContext(ctx)); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				return ErrVerificationRateLimited
			}
			return err
		}
	}

	ident, err := e.credentials.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if ident == nil {
		return ErrUserNotFound
	}
	if ident.EmailVerified {
		return ErrAlreadyVerified
	}

	token, digest, err := secret.NewVerificationToken()
	if err != nil {
		return err
	}

	expiresAt := time.Now().Add(e.config.EmailVerification.TokenTTL)
	if err := e.verifications.Upsert(ctx, ident.ID, digest, expiresAt); err != nil {
		return err
	}

	if e.mailer == nil {
		return ErrMailUnavailable
	}
	if err := e.mailer.SendVerification(ctx, ident.Email, token); err != nil {
		return fmt.Errorf("%w: %v", ErrMailUnavailable, err)
	}

	return nil
}

// ConfirmEmailVerification consumes the token and marks the email
// verified; the two transitions commit atomically in the store. A token
// redeems exactly once, so replaying a confirmation fails with
// [ErrVerificationInvalid] even inside the expiry window.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, email, token string) (*Identity, error) {
	if e == nil || e.verifications == nil {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if email == "" || token == "" {
		return nil, ErrInvalidRequest
	}

	ident, err := e.credentials.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if ident == nil {
		return nil, ErrUserNotFound
	}

	redeemed, err := e.verifications.Redeem(ctx, ident.ID, secret.Hash(token), time.Now())
	if err != nil {
		return nil, err
	}
	if !redeemed {
		return nil, ErrVerificationInvalid
	}

	ident.EmailVerified = true
	return ident, nil
}
