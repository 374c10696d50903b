// Package worker turns queued action jobs into pipeline calls.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/balance-indicators/internal/domain"
	"github.com/dvloznov/balance-indicators/internal/jobs"
	"github.com/dvloznov/balance-indicators/internal/logger"
	"github.com/dvloznov/balance-indicators/internal/pipeline"
)

// EmptyResultWarning is recorded on upload jobs that stored nothing.
const EmptyResultWarning = "no valid rows found in upload; nothing was stored"

// Actions is the part of pipeline.Service a worker drives.
type Actions interface {
	ProcessUpload(ctx context.Context, req pipeline.UploadRequest) (*pipeline.UploadResult, error)
	IngestFromGCS(ctx context.Context, gcsURI string, period domain.Period, layout string) (*pipeline.UploadResult, error)
	DeleteAll(ctx context.Context) error
}

// NewHandler returns a job handler running each job against actions.
// A positive timeout bounds every job.
func NewHandler(actions Actions, timeout time.Duration) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.ActionJob) error {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		log := logger.FromContext(ctx)
		log.Info().
			Str("period", job.Period).
			Str("layout", job.Layout).
			Msg("Processing action job")

		switch job.Type {
		case jobs.JobTypeUpload:
			res, err := actions.ProcessUpload(ctx, pipeline.UploadRequest{
				Raw:      job.Payload,
				Filename: job.Filename,
				Period:   domain.Period(job.Period),
				Layout:   job.Layout,
			})
			return finishUpload(job, res, err)

		case jobs.JobTypeIngest:
			res, err := actions.IngestFromGCS(ctx, job.GCSURI, domain.Period(job.Period), job.Layout)
			return finishUpload(job, res, err)

		case jobs.JobTypeDeleteAll:
			return actions.DeleteAll(ctx)

		default:
			return fmt.Errorf("unexpected job type: %q", job.Type)
		}
	}
}

func finishUpload(job *jobs.ActionJob, res *pipeline.UploadResult, err error) error {
	if res != nil {
		job.RowsRead = res.RowsRead
		job.RowsDropped = res.RowsDropped
		job.RowsStored = res.Stored
		job.ArchiveURI = res.ArchiveURI
	}
	if errors.Is(err, pipeline.ErrEmptyResult) {
		job.Warning = EmptyResultWarning
		return nil
	}
	return err
}
