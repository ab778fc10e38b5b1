package identity

import (
	"errors"
	"time"
)

// Config carries every tunable of the identity core. It is constructed
// explicitly at startup and passed to [New]; nothing in this package reads
// process-wide environment state.
type Config struct {
	JWT               JWTConfig
	Password          PasswordConfig
	TOTP              TOTPConfig
	EmailVerification EmailVerificationConfig
	StaffCode         StaffCodeConfig
	RateLimit         RateLimitConfig
	Account           AccountConfig
}

// JWTConfig configures the bearer-token service.
type JWTConfig struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
}

// PasswordConfig configures credential hashing.
type PasswordConfig struct {
	Cost int
}

// TOTPConfig configures the two-factor subsystem. Skew is the symmetric
// step tolerance applied on every verification; it is not adjustable per
// call.
type TOTPConfig struct {
	Issuer           string
	Digits           int
	Period           int
	Skew             int
	Algorithm        string
	BackupCodeCount  int
	BackupCodeLength int
}

// EmailVerificationConfig configures the email-ownership flow.
type EmailVerificationConfig struct {
	TokenTTL time.Duration
}

// StaffCodeConfig bounds administrative staff-code generation.
type StaffCodeConfig struct {
	MaxBatchSize     int
	InsertMaxRetries int
	DepartmentPrefix int
}

// RateLimitConfig configures the Redis-backed login throttle. When the
// engine is built without a limiter the section is ignored.
type RateLimitConfig struct {
	MaxLoginAttempts int
	LoginCooldown    time.Duration
	EnableIPThrottle bool

	MaxVerificationRequests int
	VerificationCooldown    time.Duration
}

// AccountConfig configures registration defaults.
type AccountConfig struct {
	DefaultRole Role
}

// DefaultConfig returns the production baseline: 24h tokens, bcrypt cost 12,
// RFC 6238 TOTP (SHA1, 6 digits, 30s period, ±2 step tolerance), ten
// 10-character backup codes, and a 24h verification-token window.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			TTL:    24 * time.Hour,
			Issuer: "identity",
		},
		Password: PasswordConfig{
			Cost: 12,
		},
		TOTP: TOTPConfig{
			Issuer:           "identity",
			Digits:           6,
			Period:           30,
			Skew:             2,
			Algorithm:        "SHA1",
			BackupCodeCount:  10,
			BackupCodeLength: 10,
		},
		EmailVerification: EmailVerificationConfig{
			TokenTTL: 24 * time.Hour,
		},
		StaffCode: StaffCodeConfig{
			MaxBatchSize:     100,
			InsertMaxRetries: 5,
			DepartmentPrefix: 3,
		},
		RateLimit: RateLimitConfig{
			MaxLoginAttempts: 10,
			LoginCooldown:    15 * time.Minute,
			EnableIPThrottle: true,

			MaxVerificationRequests: 5,
			VerificationCooldown:    time.Hour,
		},
		Account: AccountConfig{
			DefaultRole: RoleEmployer,
		},
	}
}

func validateConfig(cfg Config) error {
	if len(cfg.JWT.Secret) == 0 {
		return errors.New("jwt secret is required")
	}
	if cfg.JWT.TTL <= 0 {
		return errors.New("jwt ttl must be positive")
	}
	if cfg.TOTP.Digits < 6 || cfg.TOTP.Digits > 8 {
		return errors.New("totp digits must be between 6 and 8")
	}
	if cfg.TOTP.Period <= 0 {
		return errors.New("totp period must be positive")
	}
	if cfg.TOTP.Skew < 0 {
		return errors.New("totp skew must not be negative")
	}
	if cfg.TOTP.BackupCodeCount <= 0 || cfg.TOTP.BackupCodeLength < 8 {
		return errors.New("invalid backup code configuration")
	}
	if cfg.EmailVerification.TokenTTL <= 0 {
		return errors.New("verification token ttl must be positive")
	}
	if !ValidRole(cfg.Account.DefaultRole) {
		return errors.New("invalid default role")
	}
	return nil
}
