package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testLimiter(t *testing.T, maxAttempts int) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return New(client, Config{
		EnableIPThrottle: true,
		MaxLoginAttempts: maxAttempts,
		LoginCooldown:    15 * time.Minute,

		MaxVerificationRequests: maxAttempts,
		VerificationCooldown:    time.Hour,
	}), mr
}

func TestCheckLoginUnderBudget(t *testing.T) {
	l, _ := testLimiter(t, 3)
	ctx := context.Background()

	if err := l.CheckLogin(ctx, "a@x.com", "10.0.0.1"); err != nil {
		t.Fatalf("expected fresh identifier allowed, got %v", err)
	}
	if err := l.IncrementLogin(ctx, "a@x.com", "10.0.0.1"); err != nil {
		t.Fatalf("IncrementLogin failed: %v", err)
	}
	if err := l.CheckLogin(ctx, "a@x.com", "10.0.0.1"); err != nil {
		t.Fatalf("expected identifier still within budget, got %v", err)
	}
}

func TestLoginBudgetExhaustion(t *testing.T) {
	l, _ := testLimiter(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.IncrementLogin(ctx, "a@x.com", "10.0.0.1"); err != nil {
			t.Fatalf("increment %d failed: %v", i, err)
		}
	}

	if err := l.CheckLogin(ctx, "a@x.com", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited after budget spent, got %v", err)
	}
	if err := l.IncrementLogin(ctx, "a@x.com", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on further attempts, got %v", err)
	}
}

func TestIPThrottleIndependentOfIdentifier(t *testing.T) {
	l, _ := testLimiter(t, 2)
	ctx := context.Background()

	// Same IP cycling identifiers still exhausts the IP budget.
	for i, id := range []string{"a@x.com", "b@x.com"} {
		if err := l.IncrementLogin(ctx, id, "10.0.0.1"); err != nil {
			t.Fatalf("increment %d failed: %v", i, err)
		}
	}
	if err := l.CheckLogin(ctx, "c@x.com", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP budget exhausted, got %v", err)
	}
	if err := l.CheckLogin(ctx, "c@x.com", "10.0.0.2"); err != nil {
		t.Fatalf("expected a different IP allowed, got %v", err)
	}
}

func TestResetLoginClearsCounters(t *testing.T) {
	l, _ := testLimiter(t, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.IncrementLogin(ctx, "a@x.com", "10.0.0.1"); err != nil {
			t.Fatalf("increment %d failed: %v", i, err)
		}
	}
	if err := l.ResetLogin(ctx, "a@x.com", "10.0.0.1"); err != nil {
		t.Fatalf("ResetLogin failed: %v", err)
	}
	if err := l.CheckLogin(ctx, "a@x.com", "10.0.0.1"); err != nil {
		t.Fatalf("expected counters cleared, got %v", err)
	}
}

func TestVerificationBudget(t *testing.T) {
	l, mr := testLimiter(t, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.CheckVerification(ctx, "a@x.com", "10.0.0.1"); err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}
	if err := l.CheckVerification(ctx, "a@x.com", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited after budget spent, got %v", err)
	}

	// A different address keeps its own budget.
	if err := l.CheckVerification(ctx, "b@x.com", "10.0.0.2"); err != nil {
		t.Fatalf("expected a fresh address allowed, got %v", err)
	}

	mr.FastForward(2 * time.Hour)
	if err := l.CheckVerification(ctx, "a@x.com", "10.0.0.1"); err != nil {
		t.Fatalf("expected budget restored after the window, got %v", err)
	}
}

func TestCountersExpireAfterCooldown(t *testing.T) {
	l, mr := testLimiter(t, 1)
	ctx := context.Background()

	if err := l.IncrementLogin(ctx, "a@x.com", "10.0.0.1"); err != nil {
		t.Fatalf("IncrementLogin failed: %v", err)
	}
	if err := l.CheckLogin(ctx, "a@x.com", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	mr.FastForward(16 * time.Minute)
	if err := l.CheckLogin(ctx, "a@x.com", "10.0.0.1"); err != nil {
		t.Fatalf("expected budget restored after cooldown, got %v", err)
	}
}
