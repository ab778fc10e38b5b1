package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/jdmarc/identity"
)

type ctxKey int

const identityKey ctxKey = iota

// identityFromContext returns the authenticated identity placed by
// requireAuth, or nil outside the authenticated chain.
func identityFromContext(ctx context.Context) *identity.Identity {
	ident, _ := ctx.Value(identityKey).(*identity.Identity)
	return ident
}

// requireAuth parses the bearer token and re-reads the identity from the
// store. Role and account state come from the store on every request, so
// a token outlives neither a deleted account nor a demotion.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.writeError(w, "auth", identity.ErrUnauthorized)
			return
		}

		ident, err := s.engine.VerifyToken(r.Context(), token)
		if err != nil {
			s.writeError(w, "auth", err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, ident)))
	})
}

// requireRole gates a route on the caller's live role.
func (s *Server) requireRole(role identity.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident := identityFromContext(r.Context())
			if ident == nil || ident.Role != role {
				s.writeError(w, "auth", identity.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// withClientIP stamps the remote address into the request context for the
// login rate limiter.
func withClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(identity.WithClientIP(r.Context(), clientIP(r))))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, prefix) || len(h) == len(prefix) {
		return "", false
	}
	return h[len(prefix):], true
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
