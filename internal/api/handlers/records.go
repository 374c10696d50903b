package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/balance-indicators/internal/api/middleware"
	"github.com/dvloznov/balance-indicators/internal/domain"
	"github.com/dvloznov/balance-indicators/internal/jobs"
	"github.com/dvloznov/balance-indicators/internal/ratios"
	"github.com/dvloznov/balance-indicators/internal/report"
)

// ReadModel is the read side of pipeline.Service.
type ReadModel interface {
	Records(ctx context.Context, distinct bool) ([]domain.AccountRecord, error)
	Dashboard(ctx context.Context) (report.Dashboard, error)
	Composition(ctx context.Context, period domain.Period) ([]ratios.CompositionSlice, error)
}

// RecordsHandler serves stored records and their deletion.
type RecordsHandler struct {
	read      ReadModel
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(read ReadModel, publisher jobs.Publisher, log zerolog.Logger) *RecordsHandler {
	return &RecordsHandler{
		read:      read,
		publisher: publisher,
		log:       log,
	}
}

// ListRecords handles GET /api/records?distinct=true
func (h *RecordsHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	distinct := false
	if v := r.URL.Query().Get("distinct"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			middleware.WriteError(w, r, http.StatusBadRequest, "Invalid distinct flag")
			return
		}
		distinct = b
	}

	records, err := h.read.Records(r.Context(), distinct)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load records")
		middleware.WriteError(w, r, StatusFor(err), "Failed to load records")
		return
	}

	middleware.WriteJSON(w, r, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// DeleteAll handles DELETE /api/records
func (h *RecordsHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	job := &jobs.ActionJob{Type: jobs.JobTypeDeleteAll}
	if err := h.publisher.Publish(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue delete job")
		middleware.WriteError(w, r, http.StatusInternalServerError, "Failed to enqueue delete")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Msg("Delete-all job enqueued")

	middleware.WriteJSON(w, r, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(jobs.JobStatusPending),
	})
}
