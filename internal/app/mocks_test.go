package app

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"insightdeck/internal/domain"
)

type mockAuthAPI struct {
	calls atomic.Int32

	loginFn        func(ctx context.Context, email, password string) (*domain.TokenGrant, error)
	googleFn       func(ctx context.Context, idToken string) (*domain.TokenGrant, error)
	registerFn     func(ctx context.Context, email, password, fullName string) (*domain.Ack, error)
	verifyEmailFn  func(ctx context.Context, email, code string) (*domain.TokenGrant, error)
	resendFn       func(ctx context.Context, email string) (*domain.Ack, error)
	resetRequestFn func(ctx context.Context, email string) (*domain.Ack, error)
	resetVerifyFn  func(ctx context.Context, email, code string) (*domain.Ack, error)
	resetConfirmFn func(ctx context.Context, email, code, newPassword string) (*domain.Ack, error)
}

func (m *mockAuthAPI) Login(ctx context.Context, email, password string) (*domain.TokenGrant, error) {
	m.calls.Add(1)
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthAPI) GoogleLogin(ctx context.Context, idToken string) (*domain.TokenGrant, error) {
	m.calls.Add(1)
	if m.googleFn != nil {
		return m.googleFn(ctx, idToken)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthAPI) Register(ctx context.Context, email, password, fullName string) (*domain.Ack, error) {
	m.calls.Add(1)
	if m.registerFn != nil {
		return m.registerFn(ctx, email, password, fullName)
	}
	return &domain.Ack{Message: "registered", Success: true}, nil
}

func (m *mockAuthAPI) VerifyEmail(ctx context.Context, email, code string) (*domain.TokenGrant, error) {
	m.calls.Add(1)
	if m.verifyEmailFn != nil {
		return m.verifyEmailFn(ctx, email, code)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthAPI) ResendVerification(ctx context.Context, email string) (*domain.Ack, error) {
	m.calls.Add(1)
	if m.resendFn != nil {
		return m.resendFn(ctx, email)
	}
	return &domain.Ack{Message: "sent", Success: true}, nil
}

func (m *mockAuthAPI) RequestPasswordReset(ctx context.Context, email string) (*domain.Ack, error) {
	m.calls.Add(1)
	if m.resetRequestFn != nil {
		return m.resetRequestFn(ctx, email)
	}
	return &domain.Ack{Message: "sent", Success: true}, nil
}

func (m *mockAuthAPI) VerifyResetCode(ctx context.Context, email, code string) (*domain.Ack, error) {
	m.calls.Add(1)
	if m.resetVerifyFn != nil {
		return m.resetVerifyFn(ctx, email, code)
	}
	return &domain.Ack{Message: "ok", Success: true}, nil
}

func (m *mockAuthAPI) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) (*domain.Ack, error) {
	m.calls.Add(1)
	if m.resetConfirmFn != nil {
		return m.resetConfirmFn(ctx, email, code, newPassword)
	}
	return &domain.Ack{Message: "reset", Success: true}, nil
}

type mockCreditsAPI struct {
	calls     atomic.Int32
	creditsFn func(ctx context.Context) (*domain.CreditsInfo, error)
}

func (m *mockCreditsAPI) Credits(ctx context.Context) (*domain.CreditsInfo, error) {
	m.calls.Add(1)
	if m.creditsFn != nil {
		return m.creditsFn(ctx)
	}
	return &domain.CreditsInfo{}, nil
}

type mockFilesAPI struct {
	uploadFn  func(ctx context.Context, filename string, r io.Reader) (*domain.FileInfo, error)
	listFn    func(ctx context.Context) (*domain.FileList, error)
	statusFn  func(ctx context.Context, fileID string) (*domain.FileInfo, error)
	deleteFn  func(ctx context.Context, fileID string) error
	processFn func(ctx context.Context, fileID string) (*domain.ProcessingStatus, error)
	jobFn     func(ctx context.Context, fileID string) (*domain.ProcessingStatus, error)
	resultFn  func(ctx context.Context, fileID string) (*domain.ProcessingResult, error)
}

func (m *mockFilesAPI) Upload(ctx context.Context, filename string, r io.Reader) (*domain.FileInfo, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, filename, r)
	}
	return &domain.FileInfo{FileID: "uploaded", OriginalFilename: filename}, nil
}

func (m *mockFilesAPI) ListFiles(ctx context.Context) (*domain.FileList, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return &domain.FileList{}, nil
}

func (m *mockFilesAPI) FileStatus(ctx context.Context, fileID string) (*domain.FileInfo, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx, fileID)
	}
	return &domain.FileInfo{FileID: fileID, OriginalFilename: fileID + ".csv"}, nil
}

func (m *mockFilesAPI) DeleteFile(ctx context.Context, fileID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, fileID)
	}
	return nil
}

func (m *mockFilesAPI) ProcessFile(ctx context.Context, fileID string) (*domain.ProcessingStatus, error) {
	if m.processFn != nil {
		return m.processFn(ctx, fileID)
	}
	return &domain.ProcessingStatus{FileID: fileID, Status: "completed", Progress: 100}, nil
}

func (m *mockFilesAPI) ProcessingStatus(ctx context.Context, fileID string) (*domain.ProcessingStatus, error) {
	if m.jobFn != nil {
		return m.jobFn(ctx, fileID)
	}
	return &domain.ProcessingStatus{FileID: fileID, Status: "completed", Progress: 100}, nil
}

func (m *mockFilesAPI) ProcessingResult(ctx context.Context, fileID string) (*domain.ProcessingResult, error) {
	if m.resultFn != nil {
		return m.resultFn(ctx, fileID)
	}
	return &domain.ProcessingResult{FileID: fileID, Dataframes: []domain.Dataframe{{Rows: 1}}}, nil
}

// notFound mimics an API error with a 404 status.
type notFound struct{}

func (notFound) Error() string { return "file not found" }
func (notFound) Is(target error) bool { return target == domain.ErrNotFound }
func (notFound) UserMessage() string { return "File not found" }

// badRequest mimics an API error carrying a server message.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return "400 " + e.msg }
func (e badRequest) UserMessage() string { return e.msg }

type staticAuth bool

func (a staticAuth) IsAuthenticated() bool { return bool(a) }
