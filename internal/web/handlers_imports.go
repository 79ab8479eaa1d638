package web

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/crmtools/customer-import/internal/customer"
	"github.com/crmtools/customer-import/internal/importer"
	"github.com/crmtools/customer-import/internal/logging"
)

// handleCreateImport accepts a multipart CSV upload, creates a pending job
// and enqueues it for background processing. The response is immediate;
// callers poll the status endpoint for results.
func (s *Server) handleCreateImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "Please upload a CSV file", err)
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		respondError(w, r, http.StatusBadRequest, "Only CSV files are allowed", nil)
		return
	}

	path, err := s.saveUpload(file)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "Failed to initiate import", err)
		return
	}

	job, err := s.jobs.Create(r.Context())
	if err != nil {
		os.Remove(path)
		respondError(w, r, http.StatusInternalServerError, "Failed to initiate import", err)
		return
	}

	if err := s.queue.Enqueue(importer.Task{JobID: job.ID, Path: path}); err != nil {
		os.Remove(path)
		respondError(w, r, http.StatusServiceUnavailable, "Import queue is unavailable", err)
		return
	}

	logging.FromContext(r.Context()).Info("import accepted",
		"job_id", job.ID, "filename", header.Filename)

	respondJSON(w, http.StatusAccepted, map[string]string{
		"message": "File uploaded and processing started",
		"jobId":   job.ID.String(),
	})
}

// saveUpload streams the uploaded file to a temporary file under the
// configured upload directory. The pipeline removes it after processing.
func (s *Server) saveUpload(src io.Reader) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.uploadDir, "import-*.csv")
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// handleImportStatus returns the job report: status, counters and the
// rejection log. It always reflects the latest durably-saved state, so a
// long-running or fatally failed job still shows its partial progress.
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, http.StatusNotFound, "Job not found", nil)
		return
	}

	job, err := s.jobs.Find(r.Context(), id)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			respondError(w, r, http.StatusNotFound, "Job not found", nil)
			return
		}
		respondError(w, r, http.StatusInternalServerError, "Server error fetching job", err)
		return
	}

	respondJSON(w, http.StatusOK, job)
}
