package api

import (
	"errors"
	"net/http"
	"testing"

	"insightdeck/internal/domain"
)

func TestMessageFrom(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		want   string
	}{
		{"detail string", `{"detail":"Incorrect email or password"}`, 401, "Incorrect email or password"},
		{"detail list", `{"detail":[{"loc":["body","email"],"msg":"bad email"},{"msg":"too short"}]}`, 422, "bad email; too short"},
		{"message", `{"message":"quota exceeded"}`, 429, "quota exceeded"},
		{"error key", `{"error":"boom"}`, 500, "boom"},
		{"empty detail falls through", `{"detail":"","message":"fallback"}`, 400, "fallback"},
		{"plain text", "upstream timeout", 504, "upstream timeout"},
		{"empty body", "", 404, "not found"},
		{"json without message", `{"ok":false}`, 503, "service unavailable"},
		{"unknown status", "", 599, "unexpected status 599"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := messageFrom([]byte(tt.body), tt.status); got != tt.want {
				t.Errorf("messageFrom() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorIs(t *testing.T) {
	var err error = newError(http.MethodGet, "/upload/status/x", http.StatusNotFound, []byte(`{"detail":"File not found"}`))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Error("404 should match ErrNotFound")
	}
	if errors.Is(err, domain.ErrUnauthorized) {
		t.Error("404 should not match ErrUnauthorized")
	}
	if got := domain.MessageOf(err); got != "File not found" {
		t.Errorf("MessageOf = %q", got)
	}

	err = newError(http.MethodGet, "/credits/", http.StatusUnauthorized, nil)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Error("401 should match ErrUnauthorized")
	}
}
