package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"insightdeck/internal/domain"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AuthState reports whether requests can carry a session token.
type AuthState interface {
	IsAuthenticated() bool
}

// DatasetTracker owns the active dataset reference. Every change of the
// active file bumps a generation counter; background fetches apply their
// results only while the generation they started with is still current.
type DatasetTracker struct {
	files  domain.FilesAPI
	store  domain.Storage
	auth   AuthState
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu guards state, gen and closed, and is held across persistence so the
	// stored keys always match state.
	mu     sync.Mutex
	state  domain.ActiveDataset
	gen    uint64
	closed bool
}

// NewDatasetTracker creates a tracker. Background fetches run until Close.
func NewDatasetTracker(files domain.FilesAPI, store domain.Storage, auth AuthState, logger *zap.Logger) *DatasetTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &DatasetTracker{
		files:  files,
		store:  store,
		auth:   auth,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetActiveFileID selects the active file. An empty id clears the reference
// and its persisted copies. Selecting the current file again is a no-op. The
// in-memory reference changes only once the new id is persisted.
func (t *DatasetTracker) SetActiveFileID(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return t.Clear(ctx)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.FileID == id {
		return nil
	}
	if err := t.store.Set(ctx, domain.KeyActiveFileID, id); err != nil {
		return fmt.Errorf("set active file: %w", err)
	}
	if err := t.store.Delete(ctx, domain.KeyActiveFileName); err != nil {
		t.restoreStoredIDLocked(ctx)
		return fmt.Errorf("set active file: %w", err)
	}

	t.gen++
	t.state = domain.ActiveDataset{FileID: id}
	t.startRefreshLocked(t.gen, id)
	return nil
}

// restoreStoredIDLocked puts the persisted id back in line with state after a
// partial write.
func (t *DatasetTracker) restoreStoredIDLocked(ctx context.Context) {
	var err error
	if t.state.FileID == "" {
		err = t.store.Delete(ctx, domain.KeyActiveFileID)
	} else {
		err = t.store.Set(ctx, domain.KeyActiveFileID, t.state.FileID)
	}
	if err != nil {
		t.logger.Warn("restoring persisted active file", zap.Error(err))
	}
}

// Clear resets the tracker to the null reference and removes the persisted
// keys. In-flight fetches for the previous file are discarded.
func (t *DatasetTracker) Clear(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.clearLocked(ctx)
}

func (t *DatasetTracker) clearLocked(ctx context.Context) error {
	t.gen++
	t.state = domain.ActiveDataset{}
	if err := t.store.Delete(ctx, domain.KeyActiveFileID, domain.KeyActiveFileName); err != nil {
		return fmt.Errorf("clear active file: %w", err)
	}
	return nil
}

// SetSheetIndex selects the sheet of the active file.
func (t *DatasetTracker) SetSheetIndex(i int) error {
	if i < 0 {
		return &domain.ValidationError{Field: "sheet_index", Message: "sheet index must not be negative"}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.FileID == "" {
		return &domain.ValidationError{Field: "sheet_index", Message: "no active file"}
	}
	t.state.SheetIndex = i
	return nil
}

// Restore reloads the persisted reference and refreshes it in the background.
func (t *DatasetTracker) Restore(ctx context.Context) error {
	id, ok, err := t.store.Get(ctx, domain.KeyActiveFileID)
	if err != nil {
		return fmt.Errorf("restore active file: %w", err)
	}
	if !ok || id == "" {
		return nil
	}
	name, _, err := t.store.Get(ctx, domain.KeyActiveFileName)
	if err != nil {
		return fmt.Errorf("restore active file: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	t.state = domain.ActiveDataset{FileID: id, FileName: name}
	t.startRefreshLocked(t.gen, id)
	return nil
}

// Refresh re-fetches status and processing result of the active file and
// waits for them.
func (t *DatasetTracker) Refresh(ctx context.Context) {
	t.mu.Lock()
	id, gen := t.state.FileID, t.gen
	t.mu.Unlock()
	if id == "" {
		return
	}
	t.refresh(ctx, gen, id)
}

// Snapshot returns a copy of the active dataset.
func (t *DatasetTracker) Snapshot() domain.ActiveDataset {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Wait blocks until background refreshes have finished.
func (t *DatasetTracker) Wait() {
	t.wg.Wait()
}

// Close cancels background refreshes and waits for them to return.
func (t *DatasetTracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.cancel()
	t.wg.Wait()
}

// handleLogin refetches the active file, whose refresh was skipped while no
// session existed.
func (t *DatasetTracker) handleLogin(context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.FileID == "" {
		return
	}
	t.gen++
	t.startRefreshLocked(t.gen, t.state.FileID)
}

func (t *DatasetTracker) handleLogout(ctx context.Context) {
	if err := t.Clear(ctx); err != nil {
		t.logger.Warn("clearing active file on logout", zap.Error(err))
	}
}

func (t *DatasetTracker) startRefreshLocked(gen uint64, id string) {
	if t.closed {
		return
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.refresh(t.ctx, gen, id)
	}()
}

// refresh fetches status and processing result concurrently, then applies
// them if gen is still current.
func (t *DatasetTracker) refresh(ctx context.Context, gen uint64, id string) {
	if t.auth != nil && !t.auth.IsAuthenticated() {
		t.logger.Debug("skipping dataset refresh without session", zap.String("file_id", id))
		return
	}

	var (
		info      *domain.FileInfo
		statusErr error
		result    *domain.ProcessingResult
		resultErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		info, statusErr = t.files.FileStatus(ctx, id)
		return nil
	})
	g.Go(func() error {
		result, resultErr = t.files.ProcessingResult(ctx, id)
		return nil
	})
	_ = g.Wait()

	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen {
		t.logger.Debug("discarding stale dataset refresh", zap.String("file_id", id))
		return
	}

	switch {
	case errors.Is(statusErr, domain.ErrNotFound):
		t.logger.Info("active file no longer exists, clearing", zap.String("file_id", id))
		if err := t.clearLocked(ctx); err != nil {
			t.logger.Warn("clearing missing active file", zap.Error(err))
		}
		return
	case statusErr != nil:
		t.logger.Warn("file status fetch failed", zap.String("file_id", id), zap.Error(statusErr))
	default:
		if name := info.DisplayName(); name != "" && name != t.state.FileName {
			t.state.FileName = name
			if err := t.store.Set(ctx, domain.KeyActiveFileName, name); err != nil {
				t.logger.Warn("persisting active file name", zap.Error(err))
			}
		}
	}

	if resultErr != nil {
		t.logger.Debug("processing result unavailable", zap.String("file_id", id), zap.Error(resultErr))
		return
	}
	t.state.Kind = result.Kind()
	if t.state.Kind == domain.KindTextOnly {
		t.state.TextContent = result.TextContent
	} else {
		t.state.TextContent = ""
	}
}
