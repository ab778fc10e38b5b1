package identity

import (
	"context"
	"time"
)

// Role is the authorization tier of an identity. The set is closed; every
// privileged check re-reads the role from the credential store rather than
// trusting token claims.
type Role string

const (
	// RoleAdmin may manage users and mint staff codes.
	RoleAdmin Role = "admin"
	// RoleStaff is granted through the staff-code registration gate.
	RoleStaff Role = "staff"
	// RoleEmployer is the default self-registration role.
	RoleEmployer Role = "employer"
)

// ValidRole reports whether r belongs to the closed role set.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleEmployer:
		return true
	}
	return false
}

// Provider identifies a federated identity provider.
type Provider string

const (
	// ProviderGoogle is an exported federation provider identifier.
	ProviderGoogle Provider = "google"
	// ProviderGitHub is an exported federation provider identifier.
	ProviderGitHub Provider = "github"
	// ProviderMicrosoft is an exported federation provider identifier.
	ProviderMicrosoft Provider = "microsoft"
)

// ValidProvider reports whether p is a supported federation provider.
func ValidProvider(p Provider) bool {
	switch p {
	case ProviderGoogle, ProviderGitHub, ProviderMicrosoft:
		return true
	}
	return false
}

// Identity is the full account record persisted by [CredentialStore].
//
// PasswordHash is empty for accounts created through federation only.
// TOTPSecret is set once enrollment starts and cleared on disable;
// TOTPEnabled is true only after the owner confirmed a live code.
// BackupCodeHashes holds SHA-256 hex digests; plaintext backup codes are
// shown once at enrollment and never persisted.
type Identity struct {
	ID               string
	Username         string
	Email            string
	PasswordHash     string
	Role             Role
	EmailVerified    bool
	Provider         Provider
	StaffCode        string
	TOTPEnabled      bool
	TOTPSecret       string
	BackupCodeHashes []string
	CreatedAt        time.Time
}

// CredentialStore persists identity records. Implementations must map
// uniqueness violations on email/username to [ErrAccountExists] and on
// staff_code to [ErrStaffCodeInUse]. Lookup methods return (nil, nil) when
// no record matches.
type CredentialStore interface {
	FindByEmailOrUsername(ctx context.Context, email, username string) (*Identity, error)
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	FindByID(ctx context.Context, id string) (*Identity, error)
	Create(ctx context.Context, ident *Identity) error
	SetRole(ctx context.Context, id string, role Role) (*Identity, error)
	MarkEmailVerified(ctx context.Context, id string) error
	SetProvider(ctx context.Context, id string, provider Provider) error
	SaveTOTPEnrollment(ctx context.Context, id, secret string, backupCodeHashes []string) error
	SetTOTPEnabled(ctx context.Context, id string, enabled bool) error
	ClearTOTP(ctx context.Context, id string) error

	// ConsumeBackupCode atomically removes one backup-code hash from the
	// identity's stored set. It reports true only for the single caller that
	// removed the hash; concurrent attempts with the same code see false.
	ConsumeBackupCode(ctx context.Context, id, codeHash string) (bool, error)
}

// VerificationTokenStore persists at most one active email-verification
// token per identity.
type VerificationTokenStore interface {
	// Upsert replaces any prior unused token for the identity.
	Upsert(ctx context.Context, identityID, tokenHash string, expiresAt time.Time) error

	// Redeem atomically marks the matching unused, unexpired token as used
	// and flips the identity's email_verified flag; both transitions commit
	// together or not at all. It reports false when no token matches.
	Redeem(ctx context.Context, identityID, tokenHash string, now time.Time) (bool, error)
}

// StaffCodeStore persists one-time staff registration codes.
type StaffCodeStore interface {
	// Insert records a freshly minted code. Duplicate codes return
	// [ErrStaffCodeExists] so the caller can regenerate.
	Insert(ctx context.Context, code, department string) error

	// Consume atomically marks an unused code for the given department as
	// used. Exactly one concurrent caller observes true.
	Consume(ctx context.Context, code, department string) (bool, error)

	// Departments lists distinct departments holding at least one unused code.
	Departments(ctx context.Context) ([]string, error)
}

// Mailer delivers the out-of-band verification message. Implementations
// live outside the core; see package mail.
type Mailer interface {
	SendVerification(ctx context.Context, email, token string) error
}

// RegisterRequest is the input for [Engine.Register]. Role defaults to
// the configured default when empty; Department and StaffCode are required
// together when registering with [RoleStaff].
type RegisterRequest struct {
	Username   string
	Email      string
	Password   string
	Role       Role
	Department string
	StaffCode  string
}

// RegisterResult is returned by [Engine.Register].
type RegisterResult struct {
	UserID string
	Role   Role
}

// LoginResult carries the signed bearer token and the authenticated identity.
type LoginResult struct {
	Token    string
	Identity *Identity
}

// FederatedProfile is the normalized provider profile accepted by
// [Engine.FederatedLogin]. The profile is caller-supplied and not verified
// against the provider inside this core.
type FederatedProfile struct {
	Email       string
	DisplayName string
}

// FederatedResult is returned by [Engine.FederatedLogin].
type FederatedResult struct {
	Token     string
	Identity  *Identity
	IsNewUser bool
}

// TOTPEnrollment holds the material returned by [Engine.GenerateTOTPSecret].
// BackupCodes are plaintext and are not retrievable afterwards.
type TOTPEnrollment struct {
	Secret          string
	ProvisioningURI string
	BackupCodes     []string
}

// TwoFactorMethod names the mechanism that satisfied a 2FA check.
type TwoFactorMethod string

const (
	// MethodTOTP indicates a time-based code matched.
	MethodTOTP TwoFactorMethod = "totp"
	// MethodBackupCode indicates a single-use backup code was consumed.
	MethodBackupCode TwoFactorMethod = "backupCode"
)

// StaffCodeValidation is the soft-failure result of [Engine.ValidateStaffCode].
type StaffCodeValidation struct {
	Valid  bool
	Reason string
}
