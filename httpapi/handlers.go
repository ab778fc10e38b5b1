// Package httpapi exposes the identity engine over a JSON HTTP surface.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jdmarc/identity"
)

// Server holds the handler dependencies.
type Server struct {
	engine  *identity.Engine
	logger  *slog.Logger
	metrics *Collector
}

// NewServer builds the handler set. metrics may be nil when scraping is
// not wired.
func NewServer(engine *identity.Engine, logger *slog.Logger, metrics *Collector) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: engine, logger: logger, metrics: metrics}
}

type registerRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role,omitempty"`
	Department string `json:"department,omitempty"`
	StaffCode  string `json:"staffCode,omitempty"`
}

// POST /api/auth/register
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, "register", err)
		return
	}

	res, err := s.engine.Register(r.Context(), identity.RegisterRequest{
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		Role:       identity.Role(req.Role),
		Department: req.Department,
		StaffCode:  req.StaffCode,
	})
	if err != nil {
		s.writeError(w, "register", err)
		return
	}

	s.writeJSON(w, "register", http.StatusCreated, map[string]any{
		"userId": res.UserID,
		"role":   res.Role,
	})
}

// POST /api/auth/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, "login", err)
		return
	}

	res, err := s.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, "login", err)
		return
	}

	s.writeJSON(w, "login", http.StatusOK, map[string]any{
		"token": res.Token,
		"user":  newUserBody(res.Identity),
	})
}

// GET /api/auth/verify
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())
	s.writeJSON(w, "verify", http.StatusOK, map[string]any{"user": newUserBody(ident)})
}

// POST /api/auth/send-verification
func (s *Server) handleSendVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, "send_verification", err)
		return
	}

	if err := s.engine.RequestEmailVerification(r.Context(), req.Email); err != nil {
		s.writeError(w, "send_verification", err)
		return
	}

	s.writeJSON(w, "send_verification", http.StatusOK, map[string]any{
		"message": "verification email sent",
	})
}

// POST /api/auth/verify-email
func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, "verify_email", err)
		return
	}

	ident, err := s.engine.ConfirmEmailVerification(r.Context(), req.Email, req.Token)
	if err != nil {
		s.writeError(w, "verify_email", err)
		return
	}

	s.writeJSON(w, "verify_email", http.StatusOK, map[string]any{"user": newUserBody(ident)})
}

// POST /api/auth/2fa/generate
func (s *Server) handleTOTPGenerate(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())

	enrollment, err := s.engine.GenerateTOTPSecret(r.Context(), ident.ID)
	if err != nil {
		s.writeError(w, "2fa", err)
		return
	}

	s.writeJSON(w, "2fa", http.StatusOK, map[string]any{
		"secret":      enrollment.Secret,
		"qrCode":      enrollment.ProvisioningURI,
		"backupCodes": enrollment.BackupCodes,
	})
}

func (s *Server) decodeCode(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Code == "" {
		s.writeError(w, "2fa", identity.ErrInvalidRequest)
		return "", false
	}
	return req.Code, true
}

// POST /api/auth/2fa/enable
func (s *Server) handleTOTPEnable(w http.ResponseWriter, r *http.Request) {
	code, ok := s.decodeCode(w, r)
	if !ok {
		return
	}
	ident := identityFromContext(r.Context())

	if err := s.engine.EnableTOTP(r.Context(), ident.ID, code); err != nil {
		s.writeError(w, "2fa", err)
		return
	}
	s.writeJSON(w, "2fa", http.StatusOK, map[string]any{"message": "two-factor enabled"})
}

// POST /api/auth/2fa/verify
func (s *Server) handleTOTPVerify(w http.ResponseWriter, r *http.Request) {
	code, ok := s.decodeCode(w, r)
	if !ok {
		return
	}
	ident := identityFromContext(r.Context())

	method, err := s.engine.VerifyTwoFactor(r.Context(), ident.ID, code)
	if err != nil {
		s.writeError(w, "2fa", err)
		return
	}
	s.writeJSON(w, "2fa", http.StatusOK, map[string]any{"method": method})
}

// POST /api/auth/2fa/disable
func (s *Server) handleTOTPDisable(w http.ResponseWriter, r *http.Request) {
	code, ok := s.decodeCode(w, r)
	if !ok {
		return
	}
	ident := identityFromContext(r.Context())

	if err := s.engine.DisableTOTP(r.Context(), ident.ID, code); err != nil {
		s.writeError(w, "2fa", err)
		return
	}
	s.writeJSON(w, "2fa", http.StatusOK, map[string]any{"message": "two-factor disabled"})
}

// POST /api/auth/{google|github|microsoft}
func (s *Server) handleFederated(provider identity.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserData struct {
				Email string `json:"email"`
				Name  string `json:"name"`
			} `json:"userData"`
		}
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, "federation", err)
			return
		}

		res, err := s.engine.FederatedLogin(r.Context(), provider, identity.FederatedProfile{
			Email:       req.UserData.Email,
			DisplayName: req.UserData.Name,
		})
		if err != nil {
			s.writeError(w, "federation", err)
			return
		}

		s.writeJSON(w, "federation", http.StatusOK, map[string]any{
			"token":     res.Token,
			"user":      newUserBody(res.Identity),
			"isNewUser": res.IsNewUser,
		})
	}
}

// POST /api/kyc/validate
func (s *Server) handleStaffCodeValidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code       string `json:"code"`
		Department string `json:"department"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, "kyc", err)
		return
	}

	res, err := s.engine.ValidateStaffCode(r.Context(), req.Code, req.Department)
	if err != nil {
		s.writeError(w, "kyc", err)
		return
	}

	body := map[string]any{"valid": res.Valid}
	if res.Reason != "" {
		body["message"] = res.Reason
	}
	s.writeJSON(w, "kyc", http.StatusOK, body)
}

// POST /api/kyc/generate (admin)
func (s *Server) handleStaffCodeGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Department string `json:"department"`
		Count      int    `json:"count"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, "kyc", err)
		return
	}

	codes, err := s.engine.GenerateStaffCodes(r.Context(), req.Department, req.Count)
	if err != nil {
		s.writeError(w, "kyc", err)
		return
	}

	s.writeJSON(w, "kyc", http.StatusOK, map[string]any{"codes": codes})
}

// GET /api/kyc/departments
func (s *Server) handleDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := s.engine.ListDepartments(r.Context())
	if err != nil {
		s.writeError(w, "kyc", err)
		return
	}
	if departments == nil {
		departments = []string{}
	}
	s.writeJSON(w, "kyc", http.StatusOK, map[string]any{"departments": departments})
}

// PUT /api/admin/users/{id}/role (admin)
func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, "admin", err)
		return
	}

	ident, err := s.engine.SetRole(r.Context(), chi.URLParam(r, "id"), identity.Role(req.Role))
	if err != nil {
		s.writeError(w, "admin", err)
		return
	}

	s.writeJSON(w, "admin", http.StatusOK, map[string]any{"user": newUserBody(ident)})
}

// GET /healthz
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, "healthz", http.StatusOK, map[string]any{"status": "ok"})
}
