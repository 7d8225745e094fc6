package api

import (
	"context"
	"net/url"

	"insightdeck/internal/domain"
)

var _ domain.AuthAPI = (*Client)(nil)

// Login exchanges credentials for a token. The endpoint is OAuth2
// password-form compatible, so the email travels as "username".
func (c *Client) Login(ctx context.Context, email, password string) (*domain.TokenGrant, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var out domain.TokenGrant
	if err := c.postForm(ctx, "/auth/login", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GoogleLogin exchanges a Google ID token for a session token.
func (c *Client) GoogleLogin(ctx context.Context, idToken string) (*domain.TokenGrant, error) {
	var out domain.TokenGrant
	if err := c.postJSON(ctx, "/auth/google", map[string]string{"token": idToken}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an unverified account.
func (c *Client) Register(ctx context.Context, email, password, fullName string) (*domain.Ack, error) {
	in := map[string]string{"email": email, "password": password, "full_name": fullName}
	var out domain.Ack
	if err := c.postJSON(ctx, "/auth/register", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyEmail confirms an account and returns a session token.
func (c *Client) VerifyEmail(ctx context.Context, email, code string) (*domain.TokenGrant, error) {
	var out domain.TokenGrant
	if err := c.postJSON(ctx, "/auth/verify-email", map[string]string{"email": email, "code": code}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResendVerification asks for a new verification code.
func (c *Client) ResendVerification(ctx context.Context, email string) (*domain.Ack, error) {
	return c.ack(ctx, "/auth/resend-verification", map[string]string{"email": email})
}

// RequestPasswordReset sends a password reset code.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) (*domain.Ack, error) {
	return c.ack(ctx, "/auth/password-reset/send-code", map[string]string{"email": email})
}

// VerifyResetCode checks a reset code without consuming it.
func (c *Client) VerifyResetCode(ctx context.Context, email, code string) (*domain.Ack, error) {
	return c.ack(ctx, "/auth/password-reset/verify-code", map[string]string{"email": email, "code": code})
}

// ConfirmPasswordReset sets a new password using a reset code.
func (c *Client) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) (*domain.Ack, error) {
	return c.ack(ctx, "/auth/password-reset/confirm", map[string]string{
		"email":        email,
		"code":         code,
		"new_password": newPassword,
	})
}

func (c *Client) ack(ctx context.Context, path string, in any) (*domain.Ack, error) {
	var out domain.Ack
	if err := c.postJSON(ctx, path, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
