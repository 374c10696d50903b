package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/dvloznov/balance-indicators/internal/api/middleware"
	"github.com/dvloznov/balance-indicators/internal/domain"
	"github.com/dvloznov/balance-indicators/internal/jobs"
	"github.com/dvloznov/balance-indicators/internal/normalize"
	"github.com/dvloznov/balance-indicators/internal/pipeline"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// uploadParams are the query parameters of POST /api/uploads.
type uploadParams struct {
	Period   string `validate:"required_unless=Layout static"`
	Layout   string `validate:"omitempty,oneof=upload static"`
	Filename string `validate:"omitempty,max=255"`
}

// UploadsHandler accepts balance-sheet files and enqueues them.
type UploadsHandler struct {
	publisher     jobs.Publisher
	maxBytes      int64
	defaultLayout string
	log           zerolog.Logger
}

// NewUploadsHandler creates a new uploads handler.
func NewUploadsHandler(publisher jobs.Publisher, maxBytes int64, defaultLayout string, log zerolog.Logger) *UploadsHandler {
	return &UploadsHandler{
		publisher:     publisher,
		maxBytes:      maxBytes,
		defaultLayout: defaultLayout,
		log:           log,
	}
}

// Upload handles POST /api/uploads?period=JULY&layout=upload
// The body is the raw file, or a multipart form with a "file" field.
// The file is checked before it is queued; unreadable or empty files are
// rejected without creating a job.
func (h *UploadsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params := uploadParams{
		Period:   strings.TrimSpace(query.Get("period")),
		Layout:   strings.ToLower(strings.TrimSpace(query.Get("layout"))),
		Filename: query.Get("filename"),
	}
	if params.Layout == "" {
		params.Layout = h.defaultLayout
	}
	if err := validate.Struct(params); err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, "Invalid upload parameters: "+err.Error())
		return
	}

	var period domain.Period
	if params.Period != "" {
		p, err := domain.ParsePeriod(params.Period)
		if err != nil {
			middleware.WriteError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		period = p
	}

	raw, filename, err := h.readBody(w, r)
	if err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if params.Filename != "" {
		filename = filepath.Base(params.Filename)
	}

	req := pipeline.UploadRequest{Raw: raw, Filename: filename, Period: period, Layout: params.Layout}
	if _, err := pipeline.Check(req); err != nil {
		middleware.WriteError(w, r, StatusFor(err), uploadErrorMessage(err))
		return
	}

	job := &jobs.ActionJob{
		Type:     jobs.JobTypeUpload,
		Period:   string(period),
		Layout:   params.Layout,
		Filename: filename,
		Payload:  raw,
	}
	if err := h.publisher.Publish(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue upload job")
		middleware.WriteError(w, r, http.StatusInternalServerError, "Failed to enqueue upload")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("period", string(period)).
		Int("bytes", len(raw)).
		Msg("Upload job enqueued")

	middleware.WriteJSON(w, r, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(jobs.JobStatusPending),
	})
}

// ingestRequest is the body of POST /api/ingest.
type ingestRequest struct {
	GCSURI string `json:"gcs_uri" validate:"required,startswith=gs://"`
	Period string `json:"period" validate:"required"`
	Layout string `json:"layout" validate:"omitempty,oneof=upload static"`
}

// Ingest handles POST /api/ingest
// It queues a file already stored in GCS. The file is read by the worker.
func (h *UploadsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, 1<<16), &req); err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Layout = strings.ToLower(strings.TrimSpace(req.Layout))
	if req.Layout == "" {
		req.Layout = h.defaultLayout
	}
	if err := validate.Struct(req); err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, "Invalid ingest request: "+err.Error())
		return
	}

	period, err := domain.ParsePeriod(req.Period)
	if err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	job := &jobs.ActionJob{
		Type:   jobs.JobTypeIngest,
		Period: string(period),
		Layout: req.Layout,
		GCSURI: req.GCSURI,
	}
	if err := h.publisher.Publish(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue ingest job")
		middleware.WriteError(w, r, http.StatusInternalServerError, "Failed to enqueue ingest")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("gcs_uri", req.GCSURI).
		Msg("Ingest job enqueued")

	middleware.WriteJSON(w, r, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(jobs.JobStatusPending),
	})
}

func (h *UploadsHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	body := http.MaxBytesReader(w, r.Body, h.maxBytes)
	r.Body = body

	filename := "upload.csv"
	var src io.Reader = body

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(h.maxBytes); err != nil {
			return nil, "", fmt.Errorf("invalid multipart body: %w", err)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			return nil, "", fmt.Errorf("multipart field \"file\" is required")
		}
		defer f.Close()
		src = f
		filename = filepath.Base(hdr.Filename)
	}

	raw, err := io.ReadAll(src)
	if err != nil {
		return nil, "", fmt.Errorf("reading upload: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, "", fmt.Errorf("upload is empty")
	}
	return raw, filename, nil
}

func uploadErrorMessage(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrEmptyResult):
		return "No valid rows found in upload"
	case errors.Is(err, normalize.ErrStructural):
		return "Unexpected file structure: expected at least 3 ';'-separated columns"
	case errors.Is(err, normalize.ErrDecode):
		return "File encoding not supported"
	default:
		return err.Error()
	}
}
