package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jdmarc/identity"
)

// NewRouter wires all API routes. gatherer serves /metrics; pass nil to
// leave scraping unmounted.
func NewRouter(s *Server, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(withClientIP)

	r.Get("/healthz", s.handleHealthz)
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", MetricsHandler(gatherer))
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/send-verification", s.handleSendVerification)
		r.Post("/verify-email", s.handleVerifyEmail)

		r.Post("/google", s.handleFederated(identity.ProviderGoogle))
		r.Post("/github", s.handleFederated(identity.ProviderGitHub))
		r.Post("/microsoft", s.handleFederated(identity.ProviderMicrosoft))

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/verify", s.handleVerify)

			r.Route("/2fa", func(r chi.Router) {
				r.Post("/generate", s.handleTOTPGenerate)
				r.Post("/enable", s.handleTOTPEnable)
				r.Post("/verify", s.handleTOTPVerify)
				r.Post("/disable", s.handleTOTPDisable)
			})
		})
	})

	r.Route("/api/kyc", func(r chi.Router) {
		r.Post("/validate", s.handleStaffCodeValidate)
		r.Get("/departments", s.handleDepartments)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth, s.requireRole(identity.RoleAdmin))
			r.Post("/generate", s.handleStaffCodeGenerate)
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(s.requireAuth, s.requireRole(identity.RoleAdmin))
		r.Put("/users/{id}/role", s.handleSetRole)
	})

	return r
}
