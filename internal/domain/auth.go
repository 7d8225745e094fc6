// Package domain contains the core client-side entities and the ports they
// depend on.
package domain

import "context"

// User is the identity record returned by the API alongside an access token.
type User struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// Session is the authenticated identity/token/balance triple held for the
// lifetime of a login. The zero value is the unauthenticated session.
type Session struct {
	User    *User
	Token   string
	Balance Balance
}

// Authenticated reports whether the session carries a bearer token.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// TokenGrant is the body returned by every endpoint that establishes a session.
type TokenGrant struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        *User  `json:"user"`
}

// Ack is the fire-and-confirm response used by registration, resend and
// password reset endpoints.
type Ack struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

// AuthAPI is the port for the remote /auth endpoints.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*TokenGrant, error)
	GoogleLogin(ctx context.Context, idToken string) (*TokenGrant, error)
	Register(ctx context.Context, email, password, fullName string) (*Ack, error)
	VerifyEmail(ctx context.Context, email, code string) (*TokenGrant, error)
	ResendVerification(ctx context.Context, email string) (*Ack, error)
	RequestPasswordReset(ctx context.Context, email string) (*Ack, error)
	VerifyResetCode(ctx context.Context, email, code string) (*Ack, error)
	ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) (*Ack, error)
}

// CreditsAPI is the port for the remote /credits endpoints.
type CreditsAPI interface {
	Credits(ctx context.Context) (*CreditsInfo, error)
}
