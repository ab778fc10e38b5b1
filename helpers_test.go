package identity

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"
)

// memStore is an in-memory implementation of the three store interfaces
// used across the engine tests.
type memStore struct {
	mu         sync.Mutex
	identities map[string]*Identity

	tokens map[string]memToken

	staffCodes map[string]*memStaffCode
}

type memToken struct {
	hash      string
	expiresAt time.Time
	used      bool
}

type memStaffCode struct {
	department string
	used       bool
}

func newMemStore() *memStore {
	return &memStore{
		identities: make(map[string]*Identity),
		tokens:     make(map[string]memToken),
		staffCodes: make(map[string]*memStaffCode),
	}
}

func (s *memStore) FindByEmailOrUsername(_ context.Context, email, username string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ident := range s.identities {
		if ident.Email == email || ident.Username == username {
			return cloneIdentity(ident), nil
		}
	}
	return nil, nil
}

func (s *memStore) FindByEmail(_ context.Context, email string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ident := range s.identities {
		if ident.Email == email {
			return cloneIdentity(ident), nil
		}
	}
	return nil, nil
}

func (s *memStore) FindByID(_ context.Context, id string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ident, ok := s.identities[id]; ok {
		return cloneIdentity(ident), nil
	}
	return nil, nil
}

func (s *memStore) Create(_ context.Context, ident *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.identities {
		if existing.Email == ident.Email || existing.Username == ident.Username {
			return ErrAccountExists
		}
		if ident.StaffCode != "" && existing.StaffCode == ident.StaffCode {
			return ErrStaffCodeInUse
		}
	}
	copied := cloneIdentity(ident)
	copied.CreatedAt = time.Now()
	s.identities[ident.ID] = copied
	return nil
}

func (s *memStore) SetRole(_ context.Context, id string, role Role) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.identities[id]
	if !ok {
		return nil, nil
	}
	ident.Role = role
	return cloneIdentity(ident), nil
}

func (s *memStore) MarkEmailVerified(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ident, ok := s.identities[id]; ok {
		ident.EmailVerified = true
	}
	return nil
}

func (s *memStore) SetProvider(_ context.Context, id string, provider Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ident, ok := s.identities[id]; ok && ident.Provider == "" {
		ident.Provider = provider
	}
	return nil
}

func (s *memStore) SaveTOTPEnrollment(_ context.Context, id, secret string, backupCodeHashes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ident, ok := s.identities[id]; ok {
		ident.TOTPSecret = secret
		ident.TOTPEnabled = false
		ident.BackupCodeHashes = slices.Clone(backupCodeHashes)
	}
	return nil
}

func (s *memStore) SetTOTPEnabled(_ context.Context, id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ident, ok := s.identities[id]; ok {
		ident.TOTPEnabled = enabled
	}
	return nil
}

func (s *memStore) ClearTOTP(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ident, ok := s.identities[id]; ok {
		ident.TOTPEnabled = false
		ident.TOTPSecret = ""
		ident.BackupCodeHashes = nil
	}
	return nil
}

func (s *memStore) ConsumeBackupCode(_ context.Context, id, codeHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.identities[id]
	if !ok {
		return false, nil
	}
	for i, h := range ident.BackupCodeHashes {
		if h == codeHash {
			ident.BackupCodeHashes = slices.Delete(ident.BackupCodeHashes, i, i+1)
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) Upsert(_ context.Context, identityID, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[identityID] = memToken{hash: tokenHash, expiresAt: expiresAt}
	return nil
}

func (s *memStore) Redeem(_ context.Context, identityID, tokenHash string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[identityID]
	if !ok || tok.used || tok.hash != tokenHash || !tok.expiresAt.After(now) {
		return false, nil
	}
	tok.used = true
	s.tokens[identityID] = tok
	if ident, ok := s.identities[identityID]; ok {
		ident.EmailVerified = true
	}
	return true, nil
}

func (s *memStore) Insert(_ context.Context, code, department string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.staffCodes[code]; ok {
		return ErrStaffCodeExists
	}
	s.staffCodes[code] = &memStaffCode{department: department}
	return nil
}

func (s *memStore) Consume(_ context.Context, code, department string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.staffCodes[code]
	if !ok || rec.used || rec.department != department {
		return false, nil
	}
	rec.used = true
	return true, nil
}

func (s *memStore) Departments(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, rec := range s.staffCodes {
		if !rec.used && !seen[rec.department] {
			seen[rec.department] = true
			out = append(out, rec.department)
		}
	}
	slices.Sort(out)
	return out, nil
}

// staffCodeUsed peeks at a code's state without going through Consume.
func (s *memStore) staffCodeUsed(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.staffCodes[code]
	return ok && rec.used
}

func cloneIdentity(ident *Identity) *Identity {
	copied := *ident
	copied.BackupCodeHashes = slices.Clone(ident.BackupCodeHashes)
	return &copied
}

// memMailer records outbound verification tokens.
type memMailer struct {
	mu     sync.Mutex
	tokens map[string]string
	fail   bool
}

func newMemMailer() *memMailer {
	return &memMailer{tokens: make(map[string]string)}
}

func (m *memMailer) SendVerification(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return context.DeadlineExceeded
	}
	m.tokens[email] = token
	return nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = []byte("test-signing-secret-0123456789ab")
	cfg.Password.Cost = 4
	return cfg
}

func newTestEngine(t *testing.T) (*Engine, *memStore, *memMailer) {
	t.Helper()
	store := newMemStore()
	mailer := newMemMailer()
	engine, err := New(testConfig(), Deps{
		Credentials:   store,
		Verifications: store,
		StaffCodes:    store,
		Mailer:        mailer,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return engine, store, mailer
}
