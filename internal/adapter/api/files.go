package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"insightdeck/internal/domain"
)

var _ domain.FilesAPI = (*Client)(nil)

// Upload sends a file as multipart/form-data under the "file" field.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (*domain.FileInfo, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(filename))
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, r); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		_ = pw.CloseWithError(mw.Close())
	}()

	var out domain.FileInfo
	if err := c.do(ctx, http.MethodPost, "/upload/upload", pr, mw.FormDataContentType(), &out); err != nil {
		_ = pr.CloseWithError(err)
		return nil, err
	}
	return &out, nil
}

// ListFiles returns every uploaded file.
func (c *Client) ListFiles(ctx context.Context) (*domain.FileList, error) {
	var out domain.FileList
	if err := c.getJSON(ctx, "/upload/list", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FileStatus returns the upload record of a file. A missing file yields an
// error matching domain.ErrNotFound.
func (c *Client) FileStatus(ctx context.Context, fileID string) (*domain.FileInfo, error) {
	var out domain.FileInfo
	if err := c.getJSON(ctx, "/upload/status/"+escape(fileID), &out); err != nil {
		return nil, err
	}
	if out.FileID == "" {
		out.FileID = fileID
	}
	return &out, nil
}

// DeleteFile removes an uploaded file.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	return c.deleteJSON(ctx, "/upload/delete/"+escape(fileID), nil)
}

// ProcessFile starts processing of an uploaded file.
func (c *Client) ProcessFile(ctx context.Context, fileID string) (*domain.ProcessingStatus, error) {
	var out domain.ProcessingStatus
	if err := c.postJSON(ctx, "/processing", map[string]string{"file_id": fileID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProcessingStatus returns the processing job status of a file.
func (c *Client) ProcessingStatus(ctx context.Context, fileID string) (*domain.ProcessingStatus, error) {
	var out domain.ProcessingStatus
	if err := c.getJSON(ctx, "/processing/status/"+escape(fileID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProcessingResult returns the processed content of a file. A 404 means the
// file has not been processed yet.
func (c *Client) ProcessingResult(ctx context.Context, fileID string) (*domain.ProcessingResult, error) {
	var out domain.ProcessingResult
	if err := c.getJSON(ctx, "/processing/result/"+escape(fileID), &out); err != nil {
		return nil, err
	}
	if out.FileID != "" && out.FileID != fileID {
		return nil, fmt.Errorf("processing result: got file %q, want %q", out.FileID, fileID)
	}
	return &out, nil
}
