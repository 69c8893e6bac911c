package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/usage-dashboard/internal/apperror"
	"github.com/sakif/usage-dashboard/internal/auth"
)

// AuthHandler exchanges the operator password for a session cookie.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin  → check the password against the configured bcrypt hash, issue a JWT cookie
//   - HandleLogout → clear the JWT cookie
//   - HandleMe     → report who the cookie belongs to
//
// There is a single operator, so there is no user table: the subject of
// every token is auth.OperatorSubject.
type AuthHandler struct {
	passwords    *auth.PasswordService
	tokens       *auth.TokenService
	passwordHash string
	secureCookie bool
	logger       *slog.Logger
}

// NewAuthHandler creates an AuthHandler. secureCookie should be true when
// the dashboard is served over HTTPS.
func NewAuthHandler(
	passwords *auth.PasswordService,
	tokens *auth.TokenService,
	passwordHash string,
	secureCookie bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		passwords:    passwords,
		tokens:       tokens,
		passwordHash: passwordHash,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// HandleLogin checks the operator password.
//
// HTTP: POST /auth/login
// REQUEST BODY: {"password": "..."}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Password == "" {
		writeError(w, apperror.ValidationFailed("password", "password is required"))
		return
	}

	if err := h.passwords.Verify(h.passwordHash, req.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			h.logger.Warn("operator login failed", slog.String("remote", r.RemoteAddr))
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error:   "unauthorized",
				Message: "invalid password",
			})
			return
		}
		h.logger.Error("operator login: verifying password", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	token, err := h.tokens.Generate(auth.OperatorSubject)
	if err != nil {
		h.logger.Error("operator login: token generation failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	auth.SetCookie(w, token, h.secureCookie)

	h.logger.Info("operator logged in", slog.String("remote", r.RemoteAddr))
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged in"})
}

// HandleLogout clears the JWT cookie.
//
// HTTP: POST /auth/logout
//
// POST rather than GET so that link prefetching cannot log the operator out.
// The token itself stays valid until it expires; without the cookie the
// browser simply stops sending it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the authenticated subject.
//
// HTTP: GET /api/me
// Auth: Required (RequireAuth sets the subject in context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	subject, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "valid authentication required",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"subject": subject})
}
