package identity

import (
	"context"
	"time"
)

// GenerateTOTPSecret starts (or restarts) 2FA enrollment: a fresh secret,
// the otpauth provisioning URI, and a new set of single-use backup codes.
// Any prior unconfirmed secret is overwritten; two_factor stays disabled
// until the owner proves possession via [Engine.EnableTOTP].
func (e *Engine) GenerateTOTPSecret(ctx context.Context, identityID string) (*TOTPEnrollment, error) {
	if e == nil || e.totp == nil {
		return nil, ErrEngineNotReady
	}

	ident, err := e.credentials.FindByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if ident == nil {
		return nil, ErrUserNotFound
	}

	secret, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}

	codes, hashes, err := newBackupCodeSet(ident.ID, e.config.TOTP.BackupCodeCount, e.config.TOTP.BackupCodeLength)
	if err != nil {
		return nil, err
	}

	if err := e.credentials.SaveTOTPEnrollment(ctx, ident.ID, secret, hashes); err != nil {
		return nil, err
	}

	return &TOTPEnrollment{
		Secret:          secret,
		ProvisioningURI: e.totp.ProvisionURI(secret, ident.Email),
		BackupCodes:     codes,
	}, nil
}

// EnableTOTP activates 2FA once the submitted code proves the enrolled
// secret landed in an authenticator.
func (e *Engine) EnableTOTP(ctx context.Context, identityID, code string) error {
	if e == nil || e.totp == nil {
		return ErrEngineNotReady
	}

	ident, err := e.credentials.FindByID(ctx, identityID)
	if err != nil {
		return err
	}
	if ident == nil {
		return ErrUserNotFound
	}
	if ident.TOTPSecret == "" {
		return ErrTOTPNotConfigured
	}

	ok, err := e.totp.VerifyCode(ident.TOTPSecret, code, time.Now())
	if err != nil || !ok {
		return ErrTOTPInvalid
	}

	return e.credentials.SetTOTPEnabled(ctx, ident.ID, true)
}

// VerifyTwoFactor checks a second-factor code for an enabled identity.
// Backup codes are tried first and consumed on match; otherwise the code
// is verified as a TOTP value within the fixed skew window.
func (e *Engine) VerifyTwoFactor(ctx context.Context, identityID, code string) (TwoFactorMethod, error) {
	if e == nil || e.totp == nil {
		return "", ErrEngineNotReady
	}

	ident, err := e.credentials.FindByID(ctx, identityID)
	if err != nil {
		return "", err
	}
	if ident == nil {
		return "", ErrUserNotFound
	}
	if !ident.TOTPEnabled || ident.TOTPSecret == "" {
		return "", ErrTOTPNotEnabled
	}

	canonical := canonicalizeBackupCode(code)
	if canonical != "" {
		consumed, err := e.credentials.ConsumeBackupCode(ctx, ident.ID, backupCodeHash(ident.ID, canonical))
		if err != nil {
			return "", err
		}
		if consumed {
			return MethodBackupCode, nil
		}
	}

	ok, err := e.totp.VerifyCode(ident.TOTPSecret, code, time.Now())
	if err != nil || !ok {
		return "", ErrTOTPInvalid
	}

	return MethodTOTP, nil
}

// DisableTOTP turns 2FA off and clears the secret and remaining backup
// codes so re-enrollment starts fresh. Only a live TOTP value is accepted:
// a stolen backup code must not be able to strip the account's protection.
func (e *Engine) DisableTOTP(ctx context.Context, identityID, code string) error {
	if e == nil || e.totp == nil {
		return ErrEngineNotReady
	}

	ident, err := e.credentials.FindByID(ctx, identityID)
	if err != nil {
		return err
	}
	if ident == nil {
		return ErrUserNotFound
	}
	if !ident.TOTPEnabled || ident.TOTPSecret == "" {
		return ErrTOTPNotEnabled
	}

	ok, err := e.totp.VerifyCode(ident.TOTPSecret, code, time.Now())
	if err != nil || !ok {
		return ErrTOTPInvalid
	}

	return e.credentials.ClearTOTP(ctx, ident.ID)
}
