package domain

import "math"

// UnitsPerCredit is the number of raw balance units shown as one credit.
const UnitsPerCredit = 70000

// Balance is a credit balance in raw token units.
type Balance int64

// Display converts the raw balance to displayed credits, rounded to two
// decimal places. Negative balances display as zero.
func (b Balance) Display() float64 {
	if b <= 0 {
		return 0
	}
	return math.Round(float64(b)/UnitsPerCredit*100) / 100
}

// CreditsInfo is the body of GET /credits/.
type CreditsInfo struct {
	UserID         string  `json:"user_id"`
	ActiveTokens   int64   `json:"active_tokens"`
	DisplayCredits float64 `json:"display_credits"`
}

// Balance returns the raw balance carried by the response.
func (c CreditsInfo) Balance() Balance {
	if c.ActiveTokens < 0 {
		return 0
	}
	return Balance(c.ActiveTokens)
}
