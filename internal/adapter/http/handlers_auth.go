package adapthttp

import (
	"errors"
	"net/http"
	"strings"

	"insightdeck/internal/adapter/google"
	"insightdeck/internal/adapter/memory"
	"insightdeck/internal/domain"

	"go.uber.org/zap"
)

const minPasswordLength = 8

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *domain.User `json:"user"`
}

type ackResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

func (s *Server) writeToken(w http.ResponseWriter, a *memory.Account) {
	token, err := s.tokens.issue(a.ID, a.Email)
	if err != nil {
		s.logger.Error("issuing access token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer", User: a.User()})
}

func (s *Server) sendCode(email, purpose string) error {
	code, err := s.backend.IssueCode(email, purpose)
	if err != nil {
		return err
	}
	s.codes(email, purpose, code)
	return nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	email := strings.TrimSpace(r.PostForm.Get("username"))
	password := r.PostForm.Get("password")
	if email == "" || password == "" {
		writeValidation(w, "username", "field required")
		return
	}

	a, err := s.backend.Authenticate(email, password)
	switch {
	case errors.Is(err, memory.ErrNotVerified):
		writeError(w, http.StatusBadRequest, "Please verify your email first")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, "Incorrect email or password")
		return
	}
	s.writeToken(w, a)
}

func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if s.google == nil {
		writeError(w, http.StatusBadRequest, "Google login is not configured")
		return
	}
	var req struct {
		Token string `json:"token"`
	}
	if err := parseJSON(r, &req); err != nil || req.Token == "" {
		writeValidation(w, "token", "field required")
		return
	}
	claims, err := google.VerifyIDToken(r.Context(), s.google, req.Token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid Google token: "+err.Error())
		return
	}
	a, err := s.backend.GoogleAccount(claims.Email, claims.Name)
	if err != nil {
		s.logger.Error("creating google account", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeToken(w, a)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !strings.Contains(req.Email, "@") {
		writeValidation(w, "email", "value is not a valid email address")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeValidation(w, "password", "password must be at least 8 characters")
		return
	}

	if _, err := s.backend.CreateAccount(req.Email, req.FullName, req.Password); err != nil {
		if errors.Is(err, memory.ErrAccountExists) {
			writeError(w, http.StatusBadRequest, "Email already registered")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := s.sendCode(req.Email, memory.PurposeVerify); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, ackResponse{
		Message: "Registration successful. Check your email for a verification code.",
		Success: true,
	})
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.backend.CheckCode(req.Email, memory.PurposeVerify, req.Code, true); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or expired verification code")
		return
	}
	a, err := s.backend.MarkVerified(req.Email)
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	s.writeToken(w, a)
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a, err := s.backend.Account(req.Email)
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if a.Verified {
		writeError(w, http.StatusBadRequest, "Email already verified")
		return
	}
	if err := s.sendCode(a.Email, memory.PurposeVerify); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Message: "Verification code sent", Success: true})
}

func (s *Server) handleResetSendCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// Unknown addresses get the same answer as known ones.
	if _, err := s.backend.Account(req.Email); err == nil {
		if err := s.sendCode(req.Email, memory.PurposeReset); err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}
	writeJSON(w, http.StatusOK, ackResponse{
		Message: "If the email is registered, a reset code has been sent",
		Success: true,
	})
}

func (s *Server) handleResetVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.backend.CheckCode(req.Email, memory.PurposeReset, req.Code, false); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or expired reset code")
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Message: "Code verified", Success: true})
}

func (s *Server) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		Code        string `json:"code"`
		NewPassword string `json:"new_password"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		writeValidation(w, "new_password", "password must be at least 8 characters")
		return
	}
	if err := s.backend.CheckCode(req.Email, memory.PurposeReset, req.Code, true); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or expired reset code")
		return
	}
	if err := s.backend.SetPassword(req.Email, req.NewPassword); err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Message: "Password has been reset", Success: true})
}
