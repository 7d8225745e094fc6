// Package app holds the client-side state services: session, active dataset
// and notifications.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"insightdeck/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// MinPasswordLength is the shortest password accepted locally.
const MinPasswordLength = 8

// verificationCodeLength is the length of email and reset codes.
const verificationCodeLength = 6

// SessionService owns the authenticated session. It persists the token and
// user record in the session store and is the only writer of the token.
type SessionService struct {
	auth    domain.AuthAPI
	credits domain.CreditsAPI
	store   domain.Storage
	logger  *zap.Logger
	now     func() time.Time

	googleEnabled bool

	mu        sync.Mutex
	session   domain.Session
	loading   bool
	listeners []func(context.Context)
	onLogin   []func(context.Context)

	creditsGroup singleflight.Group
}

// SessionOption configures a SessionService.
type SessionOption func(*SessionService)

// WithGoogleLogin enables GoogleLogin. It is enabled only when an OAuth client
// id is configured.
func WithGoogleLogin(clientID string) SessionOption {
	return func(s *SessionService) { s.googleEnabled = clientID != "" }
}

// WithClock overrides the time source used for token expiry checks.
func WithClock(now func() time.Time) SessionOption {
	return func(s *SessionService) { s.now = now }
}

// NewSessionService creates a SessionService. The service starts in the
// loading state until Restore completes.
func NewSessionService(auth domain.AuthAPI, credits domain.CreditsAPI, store domain.Storage, logger *zap.Logger, opts ...SessionOption) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SessionService{
		auth:    auth,
		credits: credits,
		store:   store,
		logger:  logger,
		now:     time.Now,
		loading: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore reloads a persisted session. A persisted token that has already
// expired is discarded along with the user record.
func (s *SessionService) Restore(ctx context.Context) error {
	defer s.setLoading(false)

	token, ok, err := s.store.Get(ctx, domain.KeyToken)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if !ok || token == "" {
		return nil
	}

	if exp, ok := tokenExpiry(token); ok && !exp.After(s.now()) {
		s.logger.Info("discarding expired session token", zap.Time("expired_at", exp))
		if err := s.store.Delete(ctx, domain.KeyToken, domain.KeyUser); err != nil {
			return fmt.Errorf("restore session: %w", err)
		}
		return nil
	}

	var user *domain.User
	raw, ok, err := s.store.Get(ctx, domain.KeyUser)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if ok {
		var u domain.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			s.logger.Warn("discarding unreadable cached user", zap.Error(err))
		} else {
			user = &u
		}
	}

	s.mu.Lock()
	s.session = domain.Session{Token: token, User: user}
	s.mu.Unlock()
	return nil
}

// Login exchanges credentials for a session.
func (s *SessionService) Login(ctx context.Context, email, password string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	if password == "" {
		return &domain.ValidationError{Field: "password", Message: "password is required"}
	}

	grant, err := s.auth.Login(ctx, normalizeEmail(email), password)
	if err != nil {
		return authError("login", err)
	}
	return s.establish(ctx, "login", grant)
}

// GoogleLogin exchanges a Google ID token for a session.
func (s *SessionService) GoogleLogin(ctx context.Context, idToken string) error {
	if !s.googleEnabled {
		return domain.ErrGoogleDisabled
	}
	if idToken == "" {
		return &domain.ValidationError{Field: "token", Message: "google token is required"}
	}

	grant, err := s.auth.GoogleLogin(ctx, idToken)
	if err != nil {
		return authError("google login", err)
	}
	return s.establish(ctx, "google login", grant)
}

// GoogleEnabled reports whether Google sign-in is configured.
func (s *SessionService) GoogleEnabled() bool {
	return s.googleEnabled
}

// Register creates an unverified account. It does not establish a session;
// the caller verifies the email with VerifyEmail.
func (s *SessionService) Register(ctx context.Context, email, password, fullName string) (string, error) {
	if err := validateEmail(email); err != nil {
		return "", err
	}
	if err := validatePassword(password, password); err != nil {
		return "", err
	}
	if strings.TrimSpace(fullName) == "" {
		return "", &domain.ValidationError{Field: "full_name", Message: "name is required"}
	}

	ack, err := s.auth.Register(ctx, normalizeEmail(email), password, strings.TrimSpace(fullName))
	if err != nil {
		return "", authError("register", err)
	}
	return ack.Message, nil
}

// VerifyEmail confirms an account with its 6-digit code and signs the user in.
func (s *SessionService) VerifyEmail(ctx context.Context, email, code string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	if err := validateCode(code); err != nil {
		return err
	}

	grant, err := s.auth.VerifyEmail(ctx, normalizeEmail(email), code)
	if err != nil {
		return authError("verify email", err)
	}
	return s.establish(ctx, "verify email", grant)
}

// ResendVerification asks the API to send a new verification code.
func (s *SessionService) ResendVerification(ctx context.Context, email string) (string, error) {
	if err := validateEmail(email); err != nil {
		return "", err
	}
	ack, err := s.auth.ResendVerification(ctx, normalizeEmail(email))
	if err != nil {
		return "", authError("resend verification", err)
	}
	return ack.Message, nil
}

// RequestPasswordReset sends a password reset code to email.
func (s *SessionService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if err := validateEmail(email); err != nil {
		return "", err
	}
	ack, err := s.auth.RequestPasswordReset(ctx, normalizeEmail(email))
	if err != nil {
		return "", authError("password reset", err)
	}
	return ack.Message, nil
}

// VerifyResetCode checks a reset code before the new password is chosen.
func (s *SessionService) VerifyResetCode(ctx context.Context, email, code string) (string, error) {
	if err := validateEmail(email); err != nil {
		return "", err
	}
	if err := validateCode(code); err != nil {
		return "", err
	}
	ack, err := s.auth.VerifyResetCode(ctx, normalizeEmail(email), code)
	if err != nil {
		return "", authError("verify reset code", err)
	}
	return ack.Message, nil
}

// ConfirmPasswordReset sets a new password. The new password and its
// confirmation are validated before any request is made.
func (s *SessionService) ConfirmPasswordReset(ctx context.Context, email, code, newPassword, confirmPassword string) (string, error) {
	if err := validatePassword(newPassword, confirmPassword); err != nil {
		return "", err
	}
	if err := validateEmail(email); err != nil {
		return "", err
	}
	if err := validateCode(code); err != nil {
		return "", err
	}
	ack, err := s.auth.ConfirmPasswordReset(ctx, normalizeEmail(email), code, newPassword)
	if err != nil {
		return "", authError("confirm password reset", err)
	}
	return ack.Message, nil
}

// RefreshCredits fetches the current balance. On failure the last known
// balance is returned. Concurrent refreshes share one request.
func (s *SessionService) RefreshCredits(ctx context.Context) domain.Balance {
	s.mu.Lock()
	token := s.session.Token
	last := s.session.Balance
	s.mu.Unlock()

	if token == "" {
		return last
	}

	v, err, _ := s.creditsGroup.Do("credits", func() (any, error) {
		return s.credits.Credits(ctx)
	})
	if err != nil {
		s.logger.Warn("credit refresh failed, keeping last balance",
			zap.Int64("balance", int64(last)), zap.Error(err))
		return last
	}
	info := v.(*domain.CreditsInfo)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session.Token != token {
		return s.session.Balance
	}
	s.session.Balance = info.Balance()
	return s.session.Balance
}

// Logout clears the session and its persisted copies. No request is made.
// In-memory state is cleared even if the store fails.
func (s *SessionService) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.session = domain.Session{}
	listeners := append([]func(context.Context){}, s.listeners...)
	s.mu.Unlock()

	err := s.store.Delete(ctx, domain.KeyToken, domain.KeyUser)
	for _, fn := range listeners {
		fn(ctx)
	}
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.logger.Info("signed out")
	return nil
}

// OnLogout registers fn to run after every Logout.
func (s *SessionService) OnLogout(fn func(context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// OnLogin registers fn to run after every successful sign-in.
func (s *SessionService) OnLogin(fn func(context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLogin = append(s.onLogin, fn)
}

// Snapshot returns a copy of the current session.
func (s *SessionService) Snapshot() domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.session
	if out.User != nil {
		u := *out.User
		out.User = &u
	}
	return out
}

// IsAuthenticated reports whether a session is established.
func (s *SessionService) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Authenticated()
}

// Token returns the current bearer token, or "".
func (s *SessionService) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Token
}

// Loading reports whether the startup restore is still running.
func (s *SessionService) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// TokenSource exposes the session token to the shared request interceptor.
// Tokens carrying a JWT exp claim report that expiry.
func (s *SessionService) TokenSource() oauth2.TokenSource {
	return sessionTokenSource{s}
}

type sessionTokenSource struct {
	s *SessionService
}

func (ts sessionTokenSource) Token() (*oauth2.Token, error) {
	tok := ts.s.Token()
	if tok == "" {
		return nil, domain.ErrNotAuthenticated
	}
	out := &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}
	if exp, ok := tokenExpiry(tok); ok {
		out.Expiry = exp
	}
	return out, nil
}

func (s *SessionService) establish(ctx context.Context, op string, grant *domain.TokenGrant) error {
	if grant == nil || grant.AccessToken == "" {
		return &domain.AuthError{Op: op, Message: "server returned no access token"}
	}

	if err := s.store.Set(ctx, domain.KeyToken, grant.AccessToken); err != nil {
		return fmt.Errorf("%s: persist token: %w", op, err)
	}
	if grant.User != nil {
		raw, err := json.Marshal(grant.User)
		if err != nil {
			_ = s.store.Delete(ctx, domain.KeyToken)
			return fmt.Errorf("%s: encode user: %w", op, err)
		}
		if err := s.store.Set(ctx, domain.KeyUser, string(raw)); err != nil {
			_ = s.store.Delete(ctx, domain.KeyToken)
			return fmt.Errorf("%s: persist user: %w", op, err)
		}
	} else if err := s.store.Delete(ctx, domain.KeyUser); err != nil {
		_ = s.store.Delete(ctx, domain.KeyToken)
		return fmt.Errorf("%s: clear user: %w", op, err)
	}

	var user *domain.User
	if grant.User != nil {
		u := *grant.User
		user = &u
	}

	s.mu.Lock()
	s.session = domain.Session{Token: grant.AccessToken, User: user}
	onLogin := append([]func(context.Context){}, s.onLogin...)
	s.mu.Unlock()

	for _, fn := range onLogin {
		fn(ctx)
	}

	email := ""
	if user != nil {
		email = user.Email
	}
	s.logger.Info("signed in", zap.String("op", op), zap.String("email", email))
	return nil
}

func (s *SessionService) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func authError(op string, err error) error {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return err
	}
	return &domain.AuthError{Op: op, Message: domain.MessageOf(err), Err: err}
}

// tokenExpiry reads the exp claim of a JWT without verifying it. Opaque
// tokens report ok=false.
func tokenExpiry(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return &domain.ValidationError{Field: "email", Message: "email is required"}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return &domain.ValidationError{Field: "email", Message: "email is not valid"}
	}
	return nil
}

func validatePassword(password, confirm string) error {
	if len(password) < MinPasswordLength {
		return &domain.ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("password must be at least %d characters", MinPasswordLength),
		}
	}
	if password != confirm {
		return &domain.ValidationError{Field: "confirm_password", Message: "passwords do not match"}
	}
	return nil
}

func validateCode(code string) error {
	if len(code) != verificationCodeLength {
		return &domain.ValidationError{Field: "code", Message: "code must be 6 digits"}
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return &domain.ValidationError{Field: "code", Message: "code must be 6 digits"}
		}
	}
	return nil
}
