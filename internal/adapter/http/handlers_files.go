package adapthttp

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"insightdeck/internal/adapter/memory"
	"insightdeck/internal/domain"

	"go.uber.org/zap"
)

const maxUploadSize = 50 << 20

var allowedExtensions = map[string]bool{
	".csv": true, ".txt": true, ".md": true, ".json": true,
	".xlsx": true, ".xls": true, ".pdf": true, ".docx": true,
}

type processingStatus struct {
	FileID   string `json:"file_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
}

// writeFileError maps backend file errors onto HTTP statuses.
func writeFileError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, memory.ErrFileNotFound):
		writeError(w, http.StatusNotFound, "File not found")
	case errors.Is(err, memory.ErrNotProcessed):
		writeError(w, http.StatusNotFound, "Processed data not found. Please process the file first.")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	f, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		writeError(w, http.StatusBadRequest, "Unsupported file type: "+ext)
		return
	}

	info, err := s.backend.AddFile(accountFrom(r.Context()).ID, header.Filename, f)
	if err != nil {
		s.logger.Error("storing upload", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files := s.backend.Files(accountFrom(r.Context()).ID)
	writeJSON(w, http.StatusOK, domain.FileList{TotalFiles: len(files), Files: files})
}

func (s *Server) handleFileStatus(w http.ResponseWriter, r *http.Request) {
	info, err := s.backend.File(accountFrom(r.Context()).ID, r.PathValue("id"))
	if err != nil {
		writeFileError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.backend.DeleteFile(accountFrom(r.Context()).ID, id); err != nil {
		writeFileError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Message: "File deleted", Success: true})
}

// handleProcess processes synchronously, so the returned status is final.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FileID string `json:"file_id"`
	}
	if err := parseJSON(r, &req); err != nil || req.FileID == "" {
		writeValidation(w, "file_id", "field required")
		return
	}

	_, err := s.backend.Process(accountFrom(r.Context()).ID, req.FileID)
	switch {
	case errors.Is(err, memory.ErrFileNotFound):
		writeFileError(w, err)
	case err != nil:
		writeJSON(w, http.StatusOK, processingStatus{FileID: req.FileID, Status: "failed", Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, processingStatus{FileID: req.FileID, Status: "completed", Progress: 100})
	}
}

func (s *Server) handleProcessingStatus(w http.ResponseWriter, r *http.Request) {
	info, err := s.backend.File(accountFrom(r.Context()).ID, r.PathValue("id"))
	if err != nil {
		writeFileError(w, err)
		return
	}
	st := processingStatus{FileID: info.FileID, Status: info.Status}
	switch info.Status {
	case "completed":
		st.Progress = 100
	case "uploaded":
		st.Status = "pending"
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleProcessingResult(w http.ResponseWriter, r *http.Request) {
	res, err := s.backend.Result(accountFrom(r.Context()).ID, r.PathValue("id"))
	if err != nil {
		writeFileError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
