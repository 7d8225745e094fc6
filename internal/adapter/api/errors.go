package api

import (
	"fmt"
	"net/http"
	"strings"

	"insightdeck/internal/domain"

	"github.com/tidwall/gjson"
)

// Error is a non-2xx API response.
type Error struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

// Is maps HTTP statuses onto the domain sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case domain.ErrNotFound:
		return e.Status == http.StatusNotFound
	case domain.ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	}
	return false
}

func newError(method, path string, status int, body []byte) *Error {
	return &Error{
		Method:  method,
		Path:    path,
		Status:  status,
		Message: messageFrom(body, status),
	}
}

// messageFrom extracts a human-readable message from an error body. It
// understands {"detail": "..."}, the validation form
// {"detail": [{"msg": "..."}]}, {"message": "..."} and {"error": "..."}.
func messageFrom(body []byte, status int) string {
	if gjson.ValidBytes(body) {
		detail := gjson.GetBytes(body, "detail")
		switch {
		case detail.Type == gjson.String && detail.String() != "":
			return detail.String()
		case detail.IsArray():
			var msgs []string
			for _, m := range detail.Get("#.msg").Array() {
				if s := m.String(); s != "" {
					msgs = append(msgs, s)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
		for _, key := range []string{"message", "error"} {
			if s := gjson.GetBytes(body, key).String(); s != "" {
				return s
			}
		}
	} else if s := strings.TrimSpace(string(body)); s != "" && len(s) < 200 {
		return s
	}
	if text := http.StatusText(status); text != "" {
		return strings.ToLower(text)
	}
	return fmt.Sprintf("unexpected status %d", status)
}

// UserMessage returns the message extracted from the response body.
func (e *Error) UserMessage() string {
	return e.Message
}
