package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"insightdeck/internal/domain"

	"go.uber.org/zap"
)

// WorkspaceDeps are the collaborators of a Workspace.
type WorkspaceDeps struct {
	Auth    domain.AuthAPI
	Credits domain.CreditsAPI
	Files   domain.FilesAPI

	// SessionStore holds token and user; DurableStore holds the active file.
	SessionStore domain.Storage
	DurableStore domain.Storage

	Toaster        Toaster
	Logger         *zap.Logger
	GoogleClientID string
}

// Workspace is the root composition of the client state: one session, one
// active dataset and one notification history.
type Workspace struct {
	Session *SessionService
	Dataset *DatasetTracker
	Notify  *Notifier

	files  domain.FilesAPI
	logger *zap.Logger
}

// NewWorkspace wires the state services. Signing in refreshes the active
// dataset and logging out clears it.
func NewWorkspace(d WorkspaceDeps) *Workspace {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	session := NewSessionService(d.Auth, d.Credits, d.SessionStore, logger.Named("session"),
		WithGoogleLogin(d.GoogleClientID))
	dataset := NewDatasetTracker(d.Files, d.DurableStore, session, logger.Named("dataset"))
	session.OnLogin(dataset.handleLogin)
	session.OnLogout(dataset.handleLogout)

	return &Workspace{
		Session: session,
		Dataset: dataset,
		Notify:  NewNotifier(d.Toaster),
		files:   d.Files,
		logger:  logger,
	}
}

// Start restores the persisted session and active dataset.
func (w *Workspace) Start(ctx context.Context) error {
	if err := w.Session.Restore(ctx); err != nil {
		return err
	}
	return w.Dataset.Restore(ctx)
}

// Close stops background work.
func (w *Workspace) Close() {
	w.Dataset.Close()
}

// Upload uploads a file and makes it the active dataset.
func (w *Workspace) Upload(ctx context.Context, filename string, r io.Reader) (*domain.FileInfo, error) {
	if !w.Session.IsAuthenticated() {
		return nil, domain.ErrNotAuthenticated
	}
	info, err := w.files.Upload(ctx, filename, r)
	if err != nil {
		w.Notify.Error("Upload failed", WithDescription(domain.MessageOf(err)))
		return nil, fmt.Errorf("upload %s: %w", filename, err)
	}
	if info.FileID == "" {
		return nil, errors.New("upload returned no file id")
	}
	if err := w.Dataset.SetActiveFileID(ctx, info.FileID); err != nil {
		return nil, err
	}
	w.Notify.Success("File uploaded", WithDescription(info.DisplayName()))
	return info, nil
}

// DeleteFile deletes an uploaded file. Deleting the active file clears the
// active dataset.
func (w *Workspace) DeleteFile(ctx context.Context, fileID string) error {
	if !w.Session.IsAuthenticated() {
		return domain.ErrNotAuthenticated
	}
	if err := w.files.DeleteFile(ctx, fileID); err != nil {
		w.Notify.Error("Delete failed", WithDescription(domain.MessageOf(err)))
		return fmt.Errorf("delete file %s: %w", fileID, err)
	}
	if w.Dataset.Snapshot().FileID == fileID {
		if err := w.Dataset.Clear(ctx); err != nil {
			return err
		}
	}
	w.Notify.Success("File deleted")
	return nil
}
