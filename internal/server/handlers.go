package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/stmtgrid/internal/extract"
	"github.com/MeKo-Tech/stmtgrid/internal/output"
	"github.com/MeKo-Tech/stmtgrid/internal/progress"
	"github.com/MeKo-Tech/stmtgrid/internal/queue"
)

// uploadField is the multipart field carrying the document.
const uploadField = "document"

var errUploadTooLarge = errors.New("document too large")

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, r, "method not allowed", "", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: s.version,
		Time:    time.Now().UTC().Format(time.RFC3339),
		Queue:   s.jobs != nil,
	})
}

// extractHandler runs a synchronous extraction. The document is either a
// multipart field named "document" or the raw request body. The response
// format is chosen by the "format" query parameter and defaults to JSON.
func (s *Server) extractHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, r, "method not allowed", "", http.StatusMethodNotAllowed)
		return
	}

	format := output.FormatJSON
	if f := r.URL.Query().Get("format"); f != "" {
		parsed, err := output.ParseFormat(f)
		if err != nil {
			s.writeErrorResponse(w, r, err.Error(), "", http.StatusBadRequest)
			return
		}
		format = parsed
	}

	filename, data, err := s.readUpload(w, r)
	if err != nil {
		s.writeUploadError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.extractor.ProcessBytes(ctx, data, progress.NoOp{})
	elapsed := time.Since(start)
	if err != nil {
		s.logger.Warn("extraction failed",
			"request_id", requestID(r.Context()), "file", filename,
			"code", extract.Code(err), "error", err)
		s.writeJSON(w, s.errorStatus(err), ExtractResponse{
			Success:   false,
			RequestID: requestID(r.Context()),
			File:      filename,
			Error:     err.Error(),
			Code:      extract.Code(err),
			ElapsedMs: elapsed.Milliseconds(),
		})
		return
	}

	s.logger.Info("extraction completed",
		"request_id", requestID(r.Context()), "file", filename,
		"path", res.Path, "pages", res.Pages, "rows", len(res.StructuredRows), "duration", elapsed)

	if format != output.FormatJSON {
		w.Header().Set("Content-Type", format.ContentType())
		if err := output.Write(w, format, res); err != nil {
			s.logger.Error("failed to write response", "error", err)
		}
		return
	}
	s.writeJSON(w, http.StatusOK, ExtractResponse{
		Success:   true,
		RequestID: requestID(r.Context()),
		File:      filename,
		Result:    res,
		ElapsedMs: elapsed.Milliseconds(),
	})
}

// enqueueHandler queues a document for the background worker.
func (s *Server) enqueueHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, r, "method not allowed", "", http.StatusMethodNotAllowed)
		return
	}
	if s.jobs == nil {
		s.writeErrorResponse(w, r, "job queue not configured", "", http.StatusServiceUnavailable)
		return
	}

	filename, data, err := s.readUpload(w, r)
	if err != nil {
		s.writeUploadError(w, r, err)
		return
	}

	jobID, err := s.jobs.Enqueue(r.Context(), filename, data)
	if err != nil {
		s.logger.Error("failed to enqueue document", "request_id", requestID(r.Context()), "error", err)
		s.writeErrorResponse(w, r, "failed to enqueue document", extract.CodeInternal, http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Location", "/v1/jobs/"+jobID)
	s.writeJSON(w, http.StatusAccepted, JobResponse{JobID: jobID, StatusURL: "/v1/jobs/" + jobID})
}

// jobStatusHandler reports the state of a queued document.
func (s *Server) jobStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, r, "method not allowed", "", http.StatusMethodNotAllowed)
		return
	}
	if s.jobs == nil {
		s.writeErrorResponse(w, r, "job queue not configured", "", http.StatusServiceUnavailable)
		return
	}

	id := r.PathValue("id")
	status, err := s.jobs.Status(r.Context(), id)
	switch {
	case errors.Is(err, queue.ErrJobNotFound):
		s.writeErrorResponse(w, r, fmt.Sprintf("job %q not found", id), "", http.StatusNotFound)
		return
	case err != nil:
		s.logger.Error("failed to read job status", "job_id", id, "error", err)
		s.writeErrorResponse(w, r, "failed to read job status", extract.CodeInternal, http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

// readUpload returns the uploaded document, reading at most the configured
// upload size.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	limit := s.maxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		if err := r.ParseMultipartForm(limit); err != nil {
			return "", nil, uploadError(err, "failed to parse form data")
		}
		file, header, err := r.FormFile(uploadField)
		if err != nil {
			return "", nil, fmt.Errorf("no %q file provided", uploadField)
		}
		defer func() { _ = file.Close() }()

		data, err := io.ReadAll(file)
		if err != nil {
			return "", nil, uploadError(err, "failed to read upload")
		}
		uploadSizeBytes.Observe(float64(len(data)))
		return header.Filename, data, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, uploadError(err, "failed to read request body")
	}
	if len(data) == 0 {
		return "", nil, errors.New("empty request body")
	}
	uploadSizeBytes.Observe(float64(len(data)))
	return r.URL.Query().Get("filename"), data, nil
}

func uploadError(err error, msg string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errUploadTooLarge
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func (s *Server) writeUploadError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errUploadTooLarge) {
		s.writeErrorResponse(w, r, fmt.Sprintf("document exceeds %d MB", s.maxUploadMB), "", http.StatusRequestEntityTooLarge)
		return
	}
	s.writeErrorResponse(w, r, err.Error(), "", http.StatusBadRequest)
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, r *http.Request, message, code string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestID(r.Context()),
	})
}

func errorsIsDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
