package adapthttp_test

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"insightdeck/internal/adapter/api"
	"insightdeck/internal/adapter/google"
	adapthttp "insightdeck/internal/adapter/http"
	"insightdeck/internal/adapter/memory"
	"insightdeck/internal/app"
	"insightdeck/internal/domain"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// codeBox collects codes the sandbox would have emailed.
type codeBox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (b *codeBox) sink(email, purpose, code string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.codes[purpose+":"+email] = code
}

func (b *codeBox) get(email, purpose string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.codes[purpose+":"+email]
}

type sandbox struct {
	url   string
	codes *codeBox
}

func newSandbox(t *testing.T, opts ...adapthttp.Option) *sandbox {
	t.Helper()
	box := &codeBox{codes: map[string]string{}}
	opts = append([]adapthttp.Option{adapthttp.WithCodeSink(box.sink)}, opts...)
	srv := adapthttp.New(memory.NewBackend(), []byte("test-secret"), opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &sandbox{url: ts.URL + adapthttp.BasePath, codes: box}
}

// newWorkspace wires a workspace to the sandbox the way the CLI does.
func newWorkspace(t *testing.T, sb *sandbox) (*app.Workspace, *api.Client, *memory.Store, *memory.Store) {
	t.Helper()
	var session *app.SessionService
	client, err := api.New(sb.url, api.WithTokenSource(api.TokenSourceFunc(func() (*oauth2.Token, error) {
		return session.TokenSource().Token()
	})))
	require.NoError(t, err)

	sessionStore, durable := memory.NewStore(), memory.NewStore()
	ws := app.NewWorkspace(app.WorkspaceDeps{
		Auth:         client,
		Credits:      client,
		Files:        client,
		SessionStore: sessionStore,
		DurableStore: durable,
	})
	session = ws.Session
	t.Cleanup(ws.Close)
	require.NoError(t, ws.Start(context.Background()))
	return ws, client, sessionStore, durable
}

func signUp(t *testing.T, sb *sandbox, ws *app.Workspace, email string) {
	t.Helper()
	ctx := context.Background()
	_, err := ws.Session.Register(ctx, email, "password1", "Test User")
	require.NoError(t, err)
	code := sb.codes.get(email, memory.PurposeVerify)
	require.Len(t, code, 6)
	require.NoError(t, ws.Session.VerifyEmail(ctx, email, code))
}

func TestSandbox_RegisterVerifyLogin(t *testing.T) {
	ctx := context.Background()
	sb := newSandbox(t)
	ws, _, sessionStore, _ := newWorkspace(t, sb)

	signUp(t, sb, ws, "ana@example.com")
	require.True(t, ws.Session.IsAuthenticated())
	assert.Equal(t, "ana@example.com", ws.Session.Snapshot().User.Email)

	bal := ws.Session.RefreshCredits(ctx)
	assert.Equal(t, domain.Balance(memory.InitialCredits), bal)
	assert.InDelta(t, 10.0, bal.Display(), 0.001)

	require.NoError(t, ws.Session.Logout(ctx))
	assert.Empty(t, sessionStore.Keys())

	err := ws.Session.Login(ctx, "ana@example.com", "wrong-password")
	require.Error(t, err)
	assert.Equal(t, "Incorrect email or password", domain.MessageOf(err))
	assert.False(t, ws.Session.IsAuthenticated())

	require.NoError(t, ws.Session.Login(ctx, "ana@example.com", "password1"))
	tok, ok, _ := sessionStore.Get(ctx, domain.KeyToken)
	assert.True(t, ok)
	assert.NotEmpty(t, tok)
}

func TestSandbox_LoginBeforeVerification(t *testing.T) {
	ctx := context.Background()
	sb := newSandbox(t)
	ws, _, _, _ := newWorkspace(t, sb)

	_, err := ws.Session.Register(ctx, "bo@example.com", "password1", "Bo")
	require.NoError(t, err)
	err = ws.Session.Login(ctx, "bo@example.com", "password1")
	require.Error(t, err)
	assert.Equal(t, "Please verify your email first", domain.MessageOf(err))

	_, err = ws.Session.Register(ctx, "bo@example.com", "password1", "Bo")
	require.Error(t, err)
	assert.Equal(t, "Email already registered", domain.MessageOf(err))
}

func TestSandbox_PasswordReset(t *testing.T) {
	ctx := context.Background()
	sb := newSandbox(t)
	ws, _, _, _ := newWorkspace(t, sb)
	signUp(t, sb, ws, "cy@example.com")
	require.NoError(t, ws.Session.Logout(ctx))

	_, err := ws.Session.RequestPasswordReset(ctx, "cy@example.com")
	require.NoError(t, err)
	code := sb.codes.get("cy@example.com", memory.PurposeReset)
	require.Len(t, code, 6)

	_, err = ws.Session.VerifyResetCode(ctx, "cy@example.com", code)
	require.NoError(t, err)
	_, err = ws.Session.ConfirmPasswordReset(ctx, "cy@example.com", code, "newpassword", "newpassword")
	require.NoError(t, err)

	require.Error(t, ws.Session.Login(ctx, "cy@example.com", "password1"))
	require.NoError(t, ws.Session.Login(ctx, "cy@example.com", "newpassword"))
}

func TestSandbox_DatasetLifecycle(t *testing.T) {
	ctx := context.Background()
	sb := newSandbox(t)
	ws, client, _, durable := newWorkspace(t, sb)
	signUp(t, sb, ws, "di@example.com")

	info, err := ws.Upload(ctx, "sales.csv", strings.NewReader("region,amount\nnorth,10\nsouth,20\n"))
	require.NoError(t, err)
	ws.Dataset.Wait()
	snap := ws.Dataset.Snapshot()
	assert.Equal(t, info.FileID, snap.FileID)
	assert.Equal(t, "sales.csv", snap.FileName)
	assert.Equal(t, domain.KindUnknown, snap.Kind, "not processed yet")

	st, err := client.ProcessFile(ctx, info.FileID)
	require.NoError(t, err)
	assert.Equal(t, "completed", st.Status)

	ws.Dataset.Refresh(ctx)
	assert.Equal(t, domain.KindTabular, ws.Dataset.Snapshot().Kind)

	cols, err := client.Columns(ctx, info.FileID)
	require.NoError(t, err)
	require.Len(t, cols.Columns, 2)
	assert.Equal(t, "object", cols.Columns[0].Dtype)
	assert.Equal(t, "float64", cols.Columns[1].Dtype)

	ins, err := client.Insights(ctx, api.DatasetRequest{FileID: info.FileID})
	require.NoError(t, err)
	assert.NotEmpty(t, ins.Insights)
	bal := ws.Session.RefreshCredits(ctx)
	assert.Less(t, int64(bal), int64(memory.InitialCredits))

	recs, err := client.RecommendCharts(ctx, api.DatasetRequest{FileID: info.FileID})
	require.NoError(t, err)
	require.NotEmpty(t, recs.Recommendations)
	assert.Equal(t, "bar", recs.Recommendations[0].ChartType)

	list, err := client.ListFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, list.TotalFiles)

	require.NoError(t, ws.DeleteFile(ctx, info.FileID))
	assert.False(t, ws.Dataset.Snapshot().Active())
	assert.Empty(t, durable.Keys())

	_, err = client.FileStatus(ctx, info.FileID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSandbox_TextDocument(t *testing.T) {
	ctx := context.Background()
	sb := newSandbox(t)
	ws, client, _, _ := newWorkspace(t, sb)
	signUp(t, sb, ws, "ed@example.com")

	info, err := ws.Upload(ctx, "notes.txt", strings.NewReader("quarterly notes"))
	require.NoError(t, err)
	_, err = client.ProcessFile(ctx, info.FileID)
	require.NoError(t, err)

	ws.Dataset.Refresh(ctx)
	snap := ws.Dataset.Snapshot()
	assert.True(t, snap.IsTextOnly())
	assert.Equal(t, "quarterly notes", snap.TextContent)
}

func TestSandbox_StaleActiveFileResets(t *testing.T) {
	ctx := context.Background()
	sb := newSandbox(t)
	ws, _, _, durable := newWorkspace(t, sb)
	signUp(t, sb, ws, "fa@example.com")

	require.NoError(t, ws.Dataset.SetActiveFileID(ctx, "does-not-exist"))
	ws.Dataset.Wait()

	assert.False(t, ws.Dataset.Snapshot().Active())
	assert.Empty(t, durable.Keys())
}

func TestSandbox_Unauthenticated(t *testing.T) {
	ctx := context.Background()
	sb := newSandbox(t)
	client, err := api.New(sb.url)
	require.NoError(t, err)

	_, err = client.ListFiles(ctx)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Not authenticated", apiErr.Message)

	types, err := client.ChartTypes(ctx)
	require.NoError(t, err)
	assert.Contains(t, types, "bar")
}

func TestSandbox_GoogleNotConfigured(t *testing.T) {
	sb := newSandbox(t)
	client, err := api.New(sb.url)
	require.NoError(t, err)

	_, err = client.GoogleLogin(context.Background(), "id-token")
	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Google login is not configured", apiErr.Message)
}

func TestSandbox_LoginFailuresAreBadRequest(t *testing.T) {
	ctx := context.Background()
	sb := newSandbox(t)
	client, err := api.New(sb.url)
	require.NoError(t, err)

	_, err = client.Register(ctx, "cy@example.com", "password1", "Cy")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		want     string
	}{
		{"unverified", "cy@example.com", "password1", "Please verify your email first"},
		{"wrong password", "cy@example.com", "password2", "Incorrect email or password"},
		{"unknown user", "nobody@example.com", "password1", "Incorrect email or password"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := client.Login(ctx, tc.email, tc.password)
			var apiErr *api.Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, http.StatusBadRequest, apiErr.Status)
			assert.Equal(t, tc.want, apiErr.Message)
		})
	}
}

func TestSandbox_GoogleLogin(t *testing.T) {
	ctx := context.Background()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	verifier := oidc.NewVerifier(google.Issuer, &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{key.Public()}},
		&oidc.Config{ClientID: "sandbox-client"})
	sb := newSandbox(t, adapthttp.WithGoogleVerifier(verifier))

	sign := func(claims jwt.MapClaims) string {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
		require.NoError(t, err)
		return tok
	}
	claims := jwt.MapClaims{
		"iss":            google.Issuer,
		"aud":            "sandbox-client",
		"sub":            "g-1",
		"email":          "gia@example.com",
		"email_verified": true,
		"name":           "Gia",
		"exp":            time.Now().Add(time.Hour).Unix(),
	}

	client, err := api.New(sb.url)
	require.NoError(t, err)
	grant, err := client.GoogleLogin(ctx, sign(claims))
	require.NoError(t, err)
	require.NotNil(t, grant.User)
	assert.Equal(t, "gia@example.com", grant.User.Email)
	assert.Equal(t, "Gia", grant.User.FullName)

	claims["aud"] = "someone-else"
	_, err = client.GoogleLogin(ctx, sign(claims))
	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Contains(t, apiErr.Message, "Invalid Google token")
}

func TestSandbox_ValidationDetailList(t *testing.T) {
	sb := newSandbox(t)
	client, err := api.New(sb.url)
	require.NoError(t, err)

	_, err = client.Register(context.Background(), "x@example.com", "short", "X")
	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "password must be at least 8 characters", apiErr.Message)
}
