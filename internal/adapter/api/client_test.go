package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"insightdeck/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/api/v1", opts...)
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadScheme(t *testing.T) {
	_, err := New("ftp://example.com")
	require.Error(t, err)
	_, err = New("://")
	require.Error(t, err)
}

func TestBearerHeader(t *testing.T) {
	var got string
	h := func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_, _ = io.WriteString(w, `{"chart_types":["bar"]}`)
	}

	token := ""
	ts := TokenSourceFunc(func() (*oauth2.Token, error) {
		if token == "" {
			return nil, domain.ErrNotAuthenticated
		}
		return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
	})
	c := newTestClient(t, h, WithTokenSource(ts))
	ctx := context.Background()

	_, err := c.ChartTypes(ctx)
	require.NoError(t, err)
	assert.Empty(t, got, "no header without a token")

	token = "tok-1"
	_, err = c.ChartTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-1", got)
}

func TestBearerHeader_ExpiredTokenOmitted(t *testing.T) {
	var got string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_, _ = io.WriteString(w, `{"chart_types":[]}`)
	}, WithTokenSource(TokenSourceFunc(func() (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: "old", Expiry: time.Now().Add(-time.Hour)}, nil
	})))

	_, err := c.ChartTypes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLogin_FormEncoded(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/auth/login", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())
		if r.PostForm.Get("username") != "user@x.com" || r.PostForm.Get("password") != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"detail":"Incorrect email or password"}`)
			return
		}
		tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1"}).SignedString([]byte("k"))
		_, _ = io.WriteString(w, `{"access_token":"`+tok+`","token_type":"bearer","user":{"email":"user@x.com","full_name":"U","role":"user"}}`)
	})
	ctx := context.Background()

	grant, err := c.Login(ctx, "user@x.com", "pw")
	require.NoError(t, err)
	assert.NotEmpty(t, grant.AccessToken)
	assert.Equal(t, "user@x.com", grant.User.Email)

	_, err = c.Login(ctx, "user@x.com", "nope")
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Incorrect email or password", apiErr.Message)
}

func TestUpload_Multipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/upload/upload", r.URL.Path)
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, "data.csv", hdr.Filename)
		assert.Equal(t, "a,b\n1,2\n", string(body))
		_, _ = io.WriteString(w, `{"file_id":"f1","original_filename":"data.csv","status":"uploaded"}`)
	})

	info, err := c.Upload(context.Background(), "/tmp/in/data.csv", strings.NewReader("a,b\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, "f1", info.FileID)
	assert.Equal(t, "data.csv", info.DisplayName())
}

func TestFileStatus_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/upload/status/a%2Fb", r.URL.EscapedPath())
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail":"File not found"}`)
	})

	_, err := c.FileStatus(context.Background(), "a/b")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProcessingResult_MismatchedFile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"file_id":"other","text_content":"x"}`)
	})

	_, err := c.ProcessingResult(context.Background(), "f1")
	require.Error(t, err)
}

func TestCredits(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/credits/", r.URL.Path)
		_, _ = io.WriteString(w, `{"user_id":"u1","active_tokens":140000,"display_credits":2}`)
	})

	info, err := c.Credits(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Balance(140000), info.Balance())
	assert.InDelta(t, 2.0, info.Balance().Display(), 0.001)
}
