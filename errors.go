package identity

import "errors"

var (
	// ErrInvalidCredentials is returned by Login for any credential mismatch,
	// including unknown accounts and federated accounts without a password.
	// The shape is deliberately uniform to avoid account enumeration.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnauthorized is returned when a bearer token fails validation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUserNotFound is returned when the referenced identity does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountExists is returned when the email or username is already taken.
	ErrAccountExists = errors.New("account already exists")
	// ErrStaffCodeInUse is returned when the supplied staff code is already
	// recorded on another identity.
	ErrStaffCodeInUse = errors.New("staff code already in use")
	// ErrRoleInvalid is returned for a role outside {admin, staff, employer}.
	ErrRoleInvalid = errors.New("invalid account role")
	// ErrInvalidRequest is returned when required fields are missing or malformed.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrAlreadyVerified is returned when requesting verification for an
	// email that is already confirmed.
	ErrAlreadyVerified = errors.New("email already verified")
	// ErrVerificationInvalid is returned when a verification token does not
	// match, was already consumed, or has expired.
	ErrVerificationInvalid = errors.New("verification token invalid or expired")
	// ErrTOTPNotConfigured is returned when enabling 2FA before a secret has
	// been issued.
	ErrTOTPNotConfigured = errors.New("totp not configured")
	// ErrTOTPNotEnabled is returned when verifying a second factor on an
	// identity that has not completed enrollment.
	ErrTOTPNotEnabled = errors.New("totp not enabled")
	// ErrTOTPInvalid is returned when a submitted code matches neither a
	// current TOTP value nor an unused backup code.
	ErrTOTPInvalid = errors.New("invalid totp code")
	// ErrStaffCodeInvalid is returned when registration presents a staff code
	// that does not exist, mismatches the department, or was already used.
	ErrStaffCodeInvalid = errors.New("invalid staff code or code already used")
	// ErrProviderInvalid is returned for an unsupported federation provider.
	ErrProviderInvalid = errors.New("unsupported identity provider")
	// ErrMailUnavailable is returned when the outbound mail dependency fails.
	ErrMailUnavailable = errors.New("mail delivery unavailable")
	// ErrLoginRateLimited is returned when the login attempt budget is spent.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrVerificationRateLimited is returned when the verification-mail
	// request budget is spent for the window.
	ErrVerificationRateLimited = errors.New("verification requests rate limited")
	// ErrEngineNotReady is returned when the engine is missing a dependency.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrStaffCodeExists signals a staff-code insert collision; the generator
	// retries with a fresh code rather than surfacing the conflict.
	ErrStaffCodeExists = errors.New("staff code already exists")
)
