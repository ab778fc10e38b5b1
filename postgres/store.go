package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/jdmarc/identity"
)

// Store implements the identity persistence interfaces on a shared
// *sql.DB. One Store serves as CredentialStore, VerificationTokenStore,
// and StaffCodeStore.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

var (
	_ identity.CredentialStore        = (*Store)(nil)
	_ identity.VerificationTokenStore = (*Store)(nil)
	_ identity.StaffCodeStore         = (*Store)(nil)
)

const identityColumns = `id, username, email, password_hash, role, email_verified,
	provider, COALESCE(staff_code, ''), totp_enabled, totp_secret, backup_code_hashes, created_at`

func scanIdentity(row interface{ Scan(...any) error }) (*identity.Identity, error) {
	var (
		ident  identity.Identity
		hashes []byte
	)
	err := row.Scan(
		&ident.ID, &ident.Username, &ident.Email, &ident.PasswordHash,
		&ident.Role, &ident.EmailVerified, &ident.Provider, &ident.StaffCode,
		&ident.TOTPEnabled, &ident.TOTPSecret, &hashes, &ident.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan identity: %w", err)
	}
	if err := json.Unmarshal(hashes, &ident.BackupCodeHashes); err != nil {
		return nil, fmt.Errorf("decode backup code hashes: %w", err)
	}
	return &ident, nil
}

// FindByEmailOrUsername returns the identity matching either value, or
// (nil, nil) when none does.
func (s *Store) FindByEmailOrUsername(ctx context.Context, email, username string) (*identity.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE email = $1 OR username = $2 LIMIT 1`,
		email, username)
	return scanIdentity(row)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE email = $1`, email)
	return scanIdentity(row)
}

func (s *Store) FindByID(ctx context.Context, id string) (*identity.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = $1`, id)
	return scanIdentity(row)
}

// Create inserts a new identity. Unique violations map to
// [identity.ErrAccountExists] for email/username and
// [identity.ErrStaffCodeInUse] for the staff code column.
func (s *Store) Create(ctx context.Context, ident *identity.Identity) error {
	hashes, err := json.Marshal(hashesOrEmpty(ident.BackupCodeHashes))
	if err != nil {
		return fmt.Errorf("encode backup code hashes: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO identities
			(id, username, email, password_hash, role, email_verified,
			 provider, staff_code, totp_enabled, totp_secret, backup_code_hashes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		ident.ID, ident.Username, ident.Email, ident.PasswordHash,
		ident.Role, ident.EmailVerified, ident.Provider,
		nullIfEmpty(ident.StaffCode), ident.TOTPEnabled, ident.TOTPSecret, hashes,
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	return nil
}

// SetRole updates the role and returns the fresh record, or (nil, nil)
// when the identity does not exist.
func (s *Store) SetRole(ctx context.Context, id string, role identity.Role) (*identity.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE identities SET role = $2 WHERE id = $1 RETURNING `+identityColumns,
		id, role)
	return scanIdentity(row)
}

func (s *Store) MarkEmailVerified(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE identities SET email_verified = TRUE WHERE id = $1`, id)
	return err
}

func (s *Store) SetProvider(ctx context.Context, id string, provider identity.Provider) error {
	// First write wins: an already stamped provider is left alone.
	_, err := s.db.ExecContext(ctx,
		`UPDATE identities SET provider = $2 WHERE id = $1 AND provider = ''`, id, provider)
	return err
}

// SaveTOTPEnrollment stores a fresh secret and backup-code set with the
// enabled flag off.
func (s *Store) SaveTOTPEnrollment(ctx context.Context, id, secret string, backupCodeHashes []string) error {
	hashes, err := json.Marshal(hashesOrEmpty(backupCodeHashes))
	if err != nil {
		return fmt.Errorf("encode backup code hashes: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE identities
		 SET totp_secret = $2, totp_enabled = FALSE, backup_code_hashes = $3
		 WHERE id = $1`,
		id, secret, hashes)
	return err
}

func (s *Store) SetTOTPEnabled(ctx context.Context, id string, enabled bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE identities SET totp_enabled = $2 WHERE id = $1`, id, enabled)
	return err
}

func (s *Store) ClearTOTP(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE identities
		 SET totp_enabled = FALSE, totp_secret = '', backup_code_hashes = '[]'::jsonb
		 WHERE id = $1`, id)
	return err
}

// ConsumeBackupCode removes codeHash from the stored set in a single
// conditional update; the jsonb containment test and the removal commit
// together, so one of two racing redemptions loses.
func (s *Store) ConsumeBackupCode(ctx context.Context, id, codeHash string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE identities
		 SET backup_code_hashes = backup_code_hashes - $2
		 WHERE id = $1 AND backup_code_hashes ? $2`,
		id, codeHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Upsert replaces any prior token for the identity; at most one
// verification token is live per account.
func (s *Store) Upsert(ctx context.Context, identityID, tokenHash string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO verification_tokens (identity_id, token_hash, expires_at, used)
		 VALUES ($1, $2, $3, FALSE)
		 ON CONFLICT (identity_id)
		 DO UPDATE SET token_hash = EXCLUDED.token_hash,
		               expires_at = EXCLUDED.expires_at,
		               used       = FALSE`,
		identityID, tokenHash, expiresAt)
	return err
}

// Redeem marks the matching unused, unexpired token used and flips the
// identity's verified flag inside one transaction.
func (s *Store) Redeem(ctx context.Context, identityID, tokenHash string, now time.Time) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE verification_tokens
		 SET used = TRUE
		 WHERE identity_id = $1 AND token_hash = $2 AND used = FALSE AND expires_at > $3`,
		identityID, tokenHash, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE identities SET email_verified = TRUE WHERE id = $1`, identityID); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// Insert records a freshly minted staff code.
func (s *Store) Insert(ctx context.Context, code, department string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO staff_codes (code, department) VALUES ($1, $2)`, code, department)
	if isUniqueViolation(err) {
		return identity.ErrStaffCodeExists
	}
	return err
}

// Consume spends an unused code issued for department. The conditional
// update guarantees a single winner under concurrent registration.
func (s *Store) Consume(ctx context.Context, code, department string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE staff_codes SET used = TRUE
		 WHERE code = $1 AND department = $2 AND used = FALSE`,
		code, department)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Departments lists departments that still hold unused codes.
func (s *Store) Departments(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT department FROM staff_codes WHERE used = FALSE ORDER BY department`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return err
	}
	if pqErr.Constraint == "identities_staff_code_key" {
		return identity.ErrStaffCodeInUse
	}
	return identity.ErrAccountExists
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func hashesOrEmpty(hashes []string) []string {
	if hashes == nil {
		return []string{}
	}
	return hashes
}
