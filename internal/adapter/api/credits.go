package api

import (
	"context"

	"insightdeck/internal/domain"
)

var _ domain.CreditsAPI = (*Client)(nil)

// Credits returns the current credit balance of the signed-in user.
func (c *Client) Credits(ctx context.Context) (*domain.CreditsInfo, error) {
	var out domain.CreditsInfo
	if err := c.getJSON(ctx, "/credits/", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckoutSession is the body of POST /payments/create-checkout-session.
type CheckoutSession struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// CreateCheckout starts a hosted checkout for a credit package.
func (c *Client) CreateCheckout(ctx context.Context, packageID string) (*CheckoutSession, error) {
	var out CheckoutSession
	if err := c.postJSON(ctx, "/payments/create-checkout-session", map[string]string{"package_id": packageID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
