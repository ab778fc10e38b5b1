// Command identityd runs the identity HTTP service: it applies schema
// migrations, seeds the bootstrap admin account, and serves the API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/jdmarc/identity"
	"github.com/jdmarc/identity/httpapi"
	"github.com/jdmarc/identity/internal/rate"
	"github.com/jdmarc/identity/mail"
	"github.com/jdmarc/identity/postgres"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("identityd exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	if err := postgres.RunMigrations(databaseURL); err != nil {
		return err
	}

	db, err := postgres.Open(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	store := postgres.NewStore(db)

	cfg := identity.DefaultConfig()
	cfg.JWT.Secret = []byte(jwtSecret)

	deps := identity.Deps{
		Credentials:   store,
		Verifications: store,
		StaffCodes:    store,
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")})
		defer rdb.Close()
		deps.Limiter = rate.New(rdb, rate.Config{
			EnableIPThrottle: true,
			MaxLoginAttempts: cfg.RateLimit.MaxLoginAttempts,
			LoginCooldown:    cfg.RateLimit.LoginCooldown,

			MaxVerificationRequests: cfg.RateLimit.MaxVerificationRequests,
			VerificationCooldown:    cfg.RateLimit.VerificationCooldown,
		})
	} else {
		logger.Warn("REDIS_ADDR not set; login rate limiting disabled")
	}

	if smtpAddr := os.Getenv("SMTP_ADDR"); smtpAddr != "" {
		mailer, err := mail.NewSMTP(mail.Config{
			Addr:      smtpAddr,
			Username:  os.Getenv("SMTP_USERNAME"),
			Password:  os.Getenv("SMTP_PASSWORD"),
			From:      os.Getenv("MAIL_FROM"),
			VerifyURL: os.Getenv("VERIFY_URL"),
		})
		if err != nil {
			return err
		}
		deps.Mailer = mailer
	} else {
		logger.Warn("SMTP_ADDR not set; verification mail disabled")
	}

	engine, err := identity.New(cfg, deps)
	if err != nil {
		return err
	}

	if err := seedDefaultAdmin(ctx, engine, store, logger); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	server := httpapi.NewServer(engine, logger, httpapi.NewCollector(registry))

	addr := os.Getenv("IDENTITY_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpapi.NewRouter(server, registry),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// seedDefaultAdmin creates the bootstrap administrator when the configured
// admin email has no account yet. The account is created pre-verified so
// staff codes can be minted immediately after first boot.
func seedDefaultAdmin(ctx context.Context, engine *identity.Engine, store *postgres.Store, logger *slog.Logger) error {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		logger.Warn("ADMIN_EMAIL/ADMIN_PASSWORD not set; skipping admin bootstrap")
		return nil
	}
	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = "admin"
	}

	existing, err := store.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	res, err := engine.Register(ctx, identity.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
		Role:     identity.RoleAdmin,
	})
	if err != nil {
		if errors.Is(err, identity.ErrAccountExists) {
			return nil
		}
		return err
	}
	if err := store.MarkEmailVerified(ctx, res.UserID); err != nil {
		return err
	}

	logger.Info("seeded default admin", "userId", res.UserID)
	return nil
}
