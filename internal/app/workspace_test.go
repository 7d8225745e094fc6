package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"insightdeck/internal/adapter/memory"
	"insightdeck/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorkspace(t *testing.T, files *mockFilesAPI) (*Workspace, *memory.Store, *memory.Store) {
	t.Helper()
	sessionStore := memory.NewStore()
	durable := memory.NewStore()
	auth := &mockAuthAPI{
		loginFn: func(ctx context.Context, email, password string) (*domain.TokenGrant, error) {
			return validGrant(), nil
		},
	}
	ws := NewWorkspace(WorkspaceDeps{
		Auth:         auth,
		Credits:      &mockCreditsAPI{},
		Files:        files,
		SessionStore: sessionStore,
		DurableStore: durable,
	})
	t.Cleanup(ws.Close)
	require.NoError(t, ws.Start(context.Background()))
	return ws, sessionStore, durable
}

func TestWorkspace_LogoutClearsEverything(t *testing.T) {
	ctx := context.Background()
	ws, sessionStore, durable := newTestWorkspace(t, &mockFilesAPI{})

	require.NoError(t, ws.Session.Login(ctx, "user@x.com", "pw"))
	require.NoError(t, ws.Dataset.SetActiveFileID(ctx, "f1"))
	ws.Dataset.Wait()
	require.NotEmpty(t, durable.Keys())

	require.NoError(t, ws.Session.Logout(ctx))

	assert.Empty(t, sessionStore.Keys())
	assert.Empty(t, durable.Keys())
	assert.False(t, ws.Dataset.Snapshot().Active())
}

func TestWorkspace_UploadSelectsFile(t *testing.T) {
	ctx := context.Background()
	ws, _, _ := newTestWorkspace(t, &mockFilesAPI{})

	_, err := ws.Upload(ctx, "sales.csv", strings.NewReader("a,b\n1,2\n"))
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)

	require.NoError(t, ws.Session.Login(ctx, "user@x.com", "pw"))
	info, err := ws.Upload(ctx, "sales.csv", strings.NewReader("a,b\n1,2\n"))
	require.NoError(t, err)
	ws.Dataset.Wait()

	assert.Equal(t, info.FileID, ws.Dataset.Snapshot().FileID)
	assert.Equal(t, domain.NotifySuccess, ws.Notify.History()[0].Kind)
}

func TestWorkspace_DeleteActiveFileClears(t *testing.T) {
	ctx := context.Background()
	deleted := ""
	files := &mockFilesAPI{
		deleteFn: func(ctx context.Context, fileID string) error {
			if fileID == "gone" {
				return errors.New("boom")
			}
			deleted = fileID
			return nil
		},
	}
	ws, _, durable := newTestWorkspace(t, files)
	require.NoError(t, ws.Session.Login(ctx, "user@x.com", "pw"))
	require.NoError(t, ws.Dataset.SetActiveFileID(ctx, "f1"))
	ws.Dataset.Wait()

	require.Error(t, ws.DeleteFile(ctx, "gone"))
	assert.Equal(t, domain.NotifyError, ws.Notify.History()[0].Kind)
	assert.Equal(t, "f1", ws.Dataset.Snapshot().FileID)

	require.NoError(t, ws.DeleteFile(ctx, "f1"))
	assert.Equal(t, "f1", deleted)
	assert.False(t, ws.Dataset.Snapshot().Active())
	assert.Empty(t, durable.Keys())
}

func TestWorkspace_LoginRefreshesRestoredDataset(t *testing.T) {
	ctx := context.Background()
	durable := memory.NewStore()
	require.NoError(t, durable.Set(ctx, domain.KeyActiveFileID, "f1"))

	ws := NewWorkspace(WorkspaceDeps{
		Auth: &mockAuthAPI{
			loginFn: func(ctx context.Context, email, password string) (*domain.TokenGrant, error) {
				return validGrant(), nil
			},
		},
		Credits:      &mockCreditsAPI{},
		Files:        &mockFilesAPI{},
		SessionStore: memory.NewStore(),
		DurableStore: durable,
	})
	t.Cleanup(ws.Close)
	require.NoError(t, ws.Start(ctx))
	ws.Dataset.Wait()
	assert.Equal(t, domain.KindUnknown, ws.Dataset.Snapshot().Kind, "no fetch without a session")

	require.NoError(t, ws.Session.Login(ctx, "user@x.com", "pw"))
	ws.Dataset.Wait()

	snap := ws.Dataset.Snapshot()
	assert.Equal(t, "f1.csv", snap.FileName)
	assert.Equal(t, domain.KindTabular, snap.Kind)
}
