// Package adapthttp implements the sandbox API server: a local, in-memory
// stand-in for the remote analytics API used in development and tests.
package adapthttp

import (
	"net/http"
	"time"

	"insightdeck/internal/adapter/memory"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
)

// BasePath is the prefix every API route is served under.
const BasePath = "/api/v1"

// CodeSink receives verification and reset codes. The sandbox sends no email.
type CodeSink func(email, purpose, code string)

// Server routes sandbox API requests to the in-memory backend.
type Server struct {
	backend     *memory.Backend
	tokens      *tokenIssuer
	logger      *zap.Logger
	codes       CodeSink
	insightCost int64
	google      *oidc.IDTokenVerifier
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and code logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithCodeSink replaces the default sink, which logs codes.
func WithCodeSink(sink CodeSink) Option {
	return func(s *Server) { s.codes = sink }
}

// WithTokenTTL sets the lifetime of issued access tokens.
func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) { s.tokens.ttl = d }
}

// WithGoogleVerifier enables POST /auth/google, verifying ID tokens with v.
func WithGoogleVerifier(v *oidc.IDTokenVerifier) Option {
	return func(s *Server) { s.google = v }
}

// New creates a Server signing access tokens with secret.
func New(backend *memory.Backend, secret []byte, opts ...Option) *Server {
	s := &Server{
		backend:     backend,
		tokens:      newTokenIssuer(secret),
		logger:      zap.NewNop(),
		insightCost: defaultInsightCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.codes == nil {
		s.codes = func(email, purpose, code string) {
			s.logger.Info("sandbox code issued",
				zap.String("email", email),
				zap.String("purpose", purpose),
				zap.String("code", code))
		}
	}
	return s
}

// Handler returns the root http.Handler for the sandbox.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	api.HandleFunc("POST /auth/login", s.handleLogin)
	api.HandleFunc("POST /auth/google", s.handleGoogleLogin)
	api.HandleFunc("POST /auth/register", s.handleRegister)
	api.HandleFunc("POST /auth/verify-email", s.handleVerifyEmail)
	api.HandleFunc("POST /auth/resend-verification", s.handleResendVerification)
	api.HandleFunc("POST /auth/password-reset/send-code", s.handleResetSendCode)
	api.HandleFunc("POST /auth/password-reset/verify-code", s.handleResetVerifyCode)
	api.HandleFunc("POST /auth/password-reset/confirm", s.handleResetConfirm)

	api.Handle("POST /upload/upload", s.requireAuth(s.handleUpload))
	api.Handle("GET /upload/list", s.requireAuth(s.handleListFiles))
	api.Handle("GET /upload/status/{id}", s.requireAuth(s.handleFileStatus))
	api.Handle("DELETE /upload/delete/{id}", s.requireAuth(s.handleDeleteFile))

	api.Handle("POST /processing", s.requireAuth(s.handleProcess))
	api.Handle("GET /processing/status/{id}", s.requireAuth(s.handleProcessingStatus))
	api.Handle("GET /processing/result/{id}", s.requireAuth(s.handleProcessingResult))

	api.Handle("GET /data/columns/{id}", s.requireAuth(s.handleColumns))
	api.Handle("POST /ai/insights", s.requireAuth(s.handleInsights))
	api.Handle("POST /ai/query", s.requireAuth(s.handleQuery))
	api.Handle("POST /charts/recommend", s.requireAuth(s.handleRecommendCharts))
	api.HandleFunc("GET /charts/types", s.handleChartTypes)

	api.Handle("GET /credits/", s.requireAuth(s.handleCredits))
	api.Handle("POST /payments/create-checkout-session", s.requireAuth(s.handleCheckout))

	root := http.NewServeMux()
	root.Handle(BasePath+"/", http.StripPrefix(BasePath, api))

	return s.loggingMiddleware(withNoCache(root))
}
