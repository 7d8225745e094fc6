package domain_test

import (
	"math"
	"testing"

	"insightdeck/internal/domain"
)

func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestBalanceDisplay(t *testing.T) {
	tests := []struct {
		name  string
		value domain.Balance
		want  float64
	}{
		{"one credit", 70000, 1},
		{"ten credits", 700000, 10},
		{"fraction rounds", 35000, 0.5},
		{"two decimals", 12345, 0.18},
		{"zero", 0, 0},
		{"negative clamps", -70000, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.value.Display()
			if !almostEqual(got, tc.want, 0.001) {
				t.Errorf("Balance(%d).Display() = %v; want %v", tc.value, got, tc.want)
			}
		})
	}
}

func TestCreditsInfoBalance(t *testing.T) {
	if got := (domain.CreditsInfo{ActiveTokens: 140000}).Balance(); got != 140000 {
		t.Errorf("Balance() = %d; want 140000", got)
	}
	if got := (domain.CreditsInfo{ActiveTokens: -5}).Balance(); got != 0 {
		t.Errorf("negative tokens: Balance() = %d; want 0", got)
	}
}
