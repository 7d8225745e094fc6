// Package google obtains a verified Google ID token through the OAuth 2.0
// device authorization flow, which suits terminals without a browser redirect.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const (
	// Issuer is Google's OpenID Connect issuer.
	Issuer = "https://accounts.google.com"
	// DeviceAuthURL is Google's device authorization endpoint.
	DeviceAuthURL = "https://oauth2.googleapis.com/device/code"
)

// ErrEmailNotVerified is returned for ID tokens whose email_verified claim
// is false.
var ErrEmailNotVerified = errors.New("google account email is not verified")

// Prompt shows the user where to enter the device code.
type Prompt func(verificationURI, userCode string)

// DeviceFlow runs the device flow and verifies the returned ID token.
type DeviceFlow struct {
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// New discovers Google's provider metadata and prepares a device flow for
// clientID.
func New(ctx context.Context, clientID, clientSecret string) (*DeviceFlow, error) {
	if clientID == "" {
		return nil, errors.New("google client id is required")
	}
	provider, err := oidc.NewProvider(ctx, Issuer)
	if err != nil {
		return nil, fmt.Errorf("discover google provider: %w", err)
	}
	endpoint := provider.Endpoint()
	endpoint.DeviceAuthURL = DeviceAuthURL

	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     endpoint,
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
	}
	return NewWithVerifier(cfg, provider.Verifier(&oidc.Config{ClientID: clientID})), nil
}

// NewVerifier discovers Google's provider metadata and returns a verifier for
// ID tokens issued to clientID.
func NewVerifier(ctx context.Context, clientID string) (*oidc.IDTokenVerifier, error) {
	if clientID == "" {
		return nil, errors.New("google client id is required")
	}
	provider, err := oidc.NewProvider(ctx, Issuer)
	if err != nil {
		return nil, fmt.Errorf("discover google provider: %w", err)
	}
	return provider.Verifier(&oidc.Config{ClientID: clientID}), nil
}

// NewWithVerifier builds a flow from explicit endpoints and verifier.
func NewWithVerifier(cfg *oauth2.Config, verifier *oidc.IDTokenVerifier) *DeviceFlow {
	return &DeviceFlow{config: cfg, verifier: verifier}
}

// IDToken asks for a device code, calls prompt with it, and polls until the
// user approves. It returns the raw ID token after verifying its signature,
// audience and email claim.
func (d *DeviceFlow) IDToken(ctx context.Context, prompt Prompt) (string, error) {
	da, err := d.config.DeviceAuth(ctx)
	if err != nil {
		return "", fmt.Errorf("device authorization: %w", err)
	}
	uri := da.VerificationURIComplete
	if uri == "" {
		uri = da.VerificationURI
	}
	if prompt != nil {
		prompt(uri, da.UserCode)
	}

	token, err := d.config.DeviceAccessToken(ctx, da)
	if err != nil {
		return "", fmt.Errorf("device access token: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return "", errors.New("no id_token in token response")
	}

	if _, err := VerifyIDToken(ctx, d.verifier, rawIDToken); err != nil {
		return "", err
	}
	return rawIDToken, nil
}

// Claims are the identity claims read from a verified ID token.
type Claims struct {
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
	Name          string `json:"name"`
}

// VerifyIDToken checks signature, issuer, audience and expiry of raw and
// returns its identity claims. Tokens without an email, or whose email is
// marked unverified, are rejected.
func VerifyIDToken(ctx context.Context, verifier *oidc.IDTokenVerifier, raw string) (*Claims, error) {
	idToken, err := verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}
	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("parse id token claims: %w", err)
	}
	if claims.Email == "" {
		return nil, errors.New("id token carries no email")
	}
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return nil, ErrEmailNotVerified
	}
	return &claims, nil
}
