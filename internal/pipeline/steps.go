package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/balance-indicators/internal/gcsuploader"
	"github.com/dvloznov/balance-indicators/internal/logger"
	"github.com/dvloznov/balance-indicators/internal/metrics"
	"github.com/dvloznov/balance-indicators/internal/normalize"
)

// ArchiveStep copies the raw upload to GCS. It is a no-op without a storage
// service or bucket, and for files that were read from GCS in the first place.
// A failed copy is logged and does not stop the upload.
type ArchiveStep struct {
	Storage StorageService
	Bucket  string
	Prefix  string
	Now     func() time.Time
}

func (s *ArchiveStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.SourceURI != "" {
		state.ArchiveURI = state.SourceURI
		return nil
	}
	if s.Storage == nil || s.Bucket == "" {
		return nil
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	object := gcsuploader.ObjectName(s.Prefix, state.Period, state.Filename, now())
	if err := s.Storage.UploadBytes(ctx, s.Bucket, object, state.Raw); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).
			Str("bucket", s.Bucket).
			Str("object", object).
			Msg("Archiving upload failed")
		return nil
	}

	state.ArchiveURI = gcsuploader.URI(s.Bucket, object)
	return nil
}

// NormalizeStep decodes and cleans the raw bytes.
type NormalizeStep struct {
	Metrics *metrics.Metrics
}

func (s *NormalizeStep) Execute(ctx context.Context, state *PipelineState) error {
	res, err := normalize.New(state.Layout).Normalize(state.Raw, state.Period)
	if err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("layout", state.Layout.Name).
		Str("encoding", res.Encoding).
		Int("rows_read", res.RowsRead).
		Int("rows_dropped", res.RowsDropped).
		Msg("Normalized upload")

	if s.Metrics != nil {
		s.Metrics.Decodes.WithLabelValues(res.Encoding).Inc()
		s.Metrics.RowsRead.Add(float64(res.RowsRead))
		s.Metrics.RowsDropped.Add(float64(res.RowsDropped))
	}

	state.Result = res
	state.Records = res.Records
	return nil
}

// RequireRecordsStep stops the pipeline when cleaning left nothing to store.
type RequireRecordsStep struct{}

func (s *RequireRecordsStep) Execute(ctx context.Context, state *PipelineState) error {
	if len(state.Records) == 0 {
		return ErrEmptyResult
	}
	return nil
}

// PersistStep appends the cleaned records to the store.
type PersistStep struct {
	Repo    RecordRepository
	Metrics *metrics.Metrics
}

func (s *PersistStep) Execute(ctx context.Context, state *PipelineState) error {
	start := time.Now()
	err := s.Repo.AppendRecords(ctx, state.Records)
	if s.Metrics != nil {
		s.Metrics.ObserveStore("append", time.Since(start).Seconds(), err)
	}
	if err != nil {
		return fmt.Errorf("%w: appending records: %w", ErrBackend, err)
	}
	return nil
}
