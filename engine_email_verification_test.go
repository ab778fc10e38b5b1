package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/jdmarc/identity/internal/rate"
)

func registerAlice(t *testing.T, engine *Engine) string {
	t.Helper()
	res, err := engine.Register(context.Background(), RegisterRequest{
		Username: "alice", Email: "a@x.com", Password: "pw123456",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return res.UserID
}

func TestEmailVerificationRoundTrip(t *testing.T) {
	engine, _, mailer := newTestEngine(t)
	ctx := context.Background()
	registerAlice(t, engine)

	if err := engine.RequestEmailVerification(ctx, "a@x.com"); err != nil {
		t.Fatalf("RequestEmailVerification failed: %v", err)
	}
	token := mailer.tokens["a@x.com"]
	if token == "" {
		t.Fatal("expected a token delivered to the mailer")
	}

	ident, err := engine.ConfirmEmailVerification(ctx, "a@x.com", token)
	if err != nil {
		t.Fatalf("ConfirmEmailVerification failed: %v", err)
	}
	if !ident.EmailVerified {
		t.Fatal("expected identity verified after confirmation")
	}
}

func TestEmailVerificationTokenSingleUse(t *testing.T) {
	engine, _, mailer := newTestEngine(t)
	ctx := context.Background()
	registerAlice(t, engine)

	if err := engine.RequestEmailVerification(ctx, "a@x.com"); err != nil {
		t.Fatalf("RequestEmailVerification failed: %v", err)
	}
	token := mailer.tokens["a@x.com"]

	if _, err := engine.ConfirmEmailVerification(ctx, "a@x.com", token); err != nil {
		t.Fatalf("first confirmation failed: %v", err)
	}
	if _, err := engine.ConfirmEmailVerification(ctx, "a@x.com", token); !errors.Is(err, ErrVerificationInvalid) {
		t.Fatalf("expected ErrVerificationInvalid on replay, got %v", err)
	}
}

func TestEmailVerificationWrongTokenRejected(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()
	registerAlice(t, engine)

	if err := engine.RequestEmailVerification(ctx, "a@x.com"); err != nil {
		t.Fatalf("RequestEmailVerification failed: %v", err)
	}
	if _, err := engine.ConfirmEmailVerification(ctx, "a@x.com", "not-the-token"); !errors.Is(err, ErrVerificationInvalid) {
		t.Fatalf("expected ErrVerificationInvalid, got %v", err)
	}
}

func TestEmailVerificationNewTokenSupersedesOld(t *testing.T) {
	engine, _, mailer := newTestEngine(t)
	ctx := context.Background()
	registerAlice(t, engine)

	if err := engine.RequestEmailVerification(ctx, "a@x.com"); err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	old := mailer.tokens["a@x.com"]

	if err := engine.RequestEmailVerification(ctx, "a@x.com"); err != nil {
		t.Fatalf("second request failed: %v", err)
	}
	fresh := mailer.tokens["a@x.com"]
	if fresh == old {
		t.Fatal("expected a fresh token on re-request")
	}

	if _, err := engine.ConfirmEmailVerification(ctx, "a@x.com", old); !errors.Is(err, ErrVerificationInvalid) {
		t.Fatalf("expected superseded token rejected, got %v", err)
	}
	if _, err := engine.ConfirmEmailVerification(ctx, "a@x.com", fresh); err != nil {
		t.Fatalf("expected fresh token accepted, got %v", err)
	}
}

func TestEmailVerificationAlreadyVerified(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()
	id := registerAlice(t, engine)

	if err := store.MarkEmailVerified(ctx, id); err != nil {
		t.Fatalf("MarkEmailVerified failed: %v", err)
	}
	if err := engine.RequestEmailVerification(ctx, "a@x.com"); !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}
}

func TestEmailVerificationUnknownAccount(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	if err := engine.RequestEmailVerification(context.Background(), "nobody@x.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestEmailVerificationRequestsThrottled(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := newMemStore()
	mailer := newMemMailer()
	cfg := testConfig()
	cfg.RateLimit.MaxVerificationRequests = 2
	engine, err := New(cfg, Deps{
		Credentials:   store,
		Verifications: store,
		StaffCodes:    store,
		Mailer:        mailer,
		Limiter: rate.New(client, rate.Config{
			MaxVerificationRequests: cfg.RateLimit.MaxVerificationRequests,
			VerificationCooldown:    time.Hour,
			MaxLoginAttempts:        cfg.RateLimit.MaxLoginAttempts,
			LoginCooldown:           cfg.RateLimit.LoginCooldown,
		}),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := context.Background()
	registerAlice(t, engine)

	for i := 0; i < 2; i++ {
		if err := engine.RequestEmailVerification(ctx, "a@x.com"); err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}
	if err := engine.RequestEmailVerification(ctx, "a@x.com"); !errors.Is(err, ErrVerificationRateLimited) {
		t.Fatalf("expected ErrVerificationRateLimited, got %v", err)
	}

	// Unknown addresses spend the budget the same way.
	if err := engine.RequestEmailVerification(ctx, "probe@x.com"); err != nil && !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected fresh address to reach the lookup, got %v", err)
	}
	for i := 0; i < 2; i++ {
		_ = engine.RequestEmailVerification(ctx, "probe@x.com")
	}
	if err := engine.RequestEmailVerification(ctx, "probe@x.com"); !errors.Is(err, ErrVerificationRateLimited) {
		t.Fatalf("expected unknown address throttled, got %v", err)
	}
}

func TestEmailVerificationMailerFailureIsDependencyError(t *testing.T) {
	engine, _, mailer := newTestEngine(t)
	ctx := context.Background()
	registerAlice(t, engine)

	mailer.fail = true
	if err := engine.RequestEmailVerification(ctx, "a@x.com"); !errors.Is(err, ErrMailUnavailable) {
		t.Fatalf("expected ErrMailUnavailable, got %v", err)
	}
}
