package domain

import (
	"context"
	"io"
	"time"
)

// DatasetKind classifies the processed content of a file.
type DatasetKind int

const (
	// KindUnknown means no processing result has been seen for the current file.
	KindUnknown DatasetKind = iota
	// KindTabular means the file produced at least one dataframe.
	KindTabular
	// KindTextOnly means the file produced extracted text but no tables.
	KindTextOnly
)

func (k DatasetKind) String() string {
	switch k {
	case KindTabular:
		return "tabular"
	case KindTextOnly:
		return "text"
	default:
		return "unknown"
	}
}

// ActiveDataset is the single file currently selected for analysis. Every
// field other than FileID is meaningful only while FileID is non-empty.
type ActiveDataset struct {
	FileID      string
	FileName    string
	SheetIndex  int
	Kind        DatasetKind
	TextContent string
}

// Active reports whether a file is selected.
func (d ActiveDataset) Active() bool {
	return d.FileID != ""
}

// IsTextOnly reports whether the processed result is known to be text only.
// An unknown kind is never reported as text only or as tabular.
func (d ActiveDataset) IsTextOnly() bool {
	return d.Kind == KindTextOnly
}

// FileInfo is an uploaded file record as returned by /upload/status and /upload/list.
type FileInfo struct {
	FileID           string     `json:"file_id"`
	Filename         string     `json:"filename"`
	OriginalFilename string     `json:"original_filename"`
	FileSize         int64      `json:"file_size"`
	FileType         string     `json:"file_type"`
	Status           string     `json:"status"`
	UploadedAt       time.Time  `json:"uploaded_at"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
}

// DisplayName prefers the name the user uploaded.
func (f FileInfo) DisplayName() string {
	if f.OriginalFilename != "" {
		return f.OriginalFilename
	}
	return f.Filename
}

// FileList is the body of GET /upload/list.
type FileList struct {
	TotalFiles int        `json:"total_files"`
	Files      []FileInfo `json:"files"`
}

// ProcessingStatus is the body of GET /processing/status/{id}.
type ProcessingStatus struct {
	FileID   string   `json:"file_id"`
	Status   string   `json:"status"`
	Progress int      `json:"progress"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Dataframe is one extracted table of a processing result.
type Dataframe struct {
	SheetName   string           `json:"sheet_name"`
	Rows        int              `json:"rows"`
	Columns     int              `json:"columns"`
	ColumnNames []string         `json:"column_names"`
	Data        []map[string]any `json:"data,omitempty"`
}

// ProcessingResult is the body of GET /processing/result/{id}.
type ProcessingResult struct {
	FileID       string      `json:"file_id"`
	Filename     string      `json:"filename"`
	FileType     string      `json:"file_type"`
	Success      bool        `json:"success"`
	Dataframes   []Dataframe `json:"dataframes"`
	TextContent  string      `json:"text_content"`
	TotalRows    int         `json:"total_rows"`
	TotalColumns int         `json:"total_columns"`
	Warnings     []string    `json:"warnings,omitempty"`
}

// Kind classifies the result as tabular or text only.
func (r ProcessingResult) Kind() DatasetKind {
	if len(r.Dataframes) > 0 {
		return KindTabular
	}
	if r.TextContent != "" {
		return KindTextOnly
	}
	return KindTabular
}

// FilesAPI is the port for the remote /upload and /processing endpoints.
type FilesAPI interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*FileInfo, error)
	ListFiles(ctx context.Context) (*FileList, error)
	FileStatus(ctx context.Context, fileID string) (*FileInfo, error)
	DeleteFile(ctx context.Context, fileID string) error
	ProcessFile(ctx context.Context, fileID string) (*ProcessingStatus, error)
	ProcessingStatus(ctx context.Context, fileID string) (*ProcessingStatus, error)
	ProcessingResult(ctx context.Context, fileID string) (*ProcessingResult, error)
}
