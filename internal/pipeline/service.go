package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/balance-indicators/internal/domain"
	"github.com/dvloznov/balance-indicators/internal/logger"
	"github.com/dvloznov/balance-indicators/internal/metrics"
	"github.com/dvloznov/balance-indicators/internal/normalize"
	"github.com/dvloznov/balance-indicators/internal/ratios"
	"github.com/dvloznov/balance-indicators/internal/report"
)

// Options configures optional collaborators of a Service.
type Options struct {
	// Storage archives uploads and serves IngestFromGCS. May be nil.
	Storage StorageService
	// Bucket receives archived uploads. Empty disables archiving.
	Bucket string
	Prefix string
	// Metrics records pipeline counters. A private set is created when nil.
	Metrics *metrics.Metrics
}

// UploadRequest is one file to normalize and store.
type UploadRequest struct {
	Raw      []byte
	Filename string
	Period   domain.Period
	// Layout names a normalize layout; empty means "upload".
	Layout string
}

// UploadResult summarizes a processed upload.
type UploadResult struct {
	Stored      int    `json:"stored"`
	RowsRead    int    `json:"rows_read"`
	RowsDropped int    `json:"rows_dropped"`
	Encoding    string `json:"encoding,omitempty"`
	ArchiveURI  string `json:"archive_uri,omitempty"`
}

// Service runs uploads through the pipeline and serves the read side from a
// cache of all stored records. The cache is dropped after every append or
// delete that reached the store, failed appends included; a failed delete
// leaves it as it was.
type Service struct {
	repo    RecordRepository
	storage StorageService
	bucket  string
	prefix  string
	metrics *metrics.Metrics

	mu     sync.Mutex
	cached []domain.AccountRecord
	valid  bool
}

// NewService creates a Service persisting to repo.
func NewService(repo RecordRepository, opts Options) *Service {
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	return &Service{
		repo:    repo,
		storage: opts.Storage,
		bucket:  opts.Bucket,
		prefix:  opts.Prefix,
		metrics: m,
	}
}

// NewUploadPipeline builds the standard upload pipeline for s.
// Only stored uploads are archived.
func (s *Service) NewUploadPipeline() *Pipeline {
	return NewPipeline(
		&NormalizeStep{Metrics: s.metrics},
		&RequireRecordsStep{},
		&PersistStep{Repo: s.repo, Metrics: s.metrics},
		&ArchiveStep{Storage: s.storage, Bucket: s.bucket, Prefix: s.prefix},
	)
}

// ProcessUpload normalizes req and appends the surviving records.
// When no row survives it returns the partial result together with an error
// matching ErrEmptyResult, and the store is not called.
func (s *Service) ProcessUpload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	return s.process(ctx, req, "")
}

// IngestFromGCS reads a file from a gs:// URI and processes it like an upload.
func (s *Service) IngestFromGCS(ctx context.Context, gcsURI string, period domain.Period, layout string) (*UploadResult, error) {
	if s.storage == nil {
		return nil, fmt.Errorf("IngestFromGCS: %w: no storage service configured", ErrBackend)
	}

	raw, err := s.storage.FetchFromGCS(ctx, gcsURI)
	if err != nil {
		return nil, fmt.Errorf("IngestFromGCS: %w: %w", ErrBackend, err)
	}

	req := UploadRequest{
		Raw:      raw,
		Filename: s.storage.ExtractFilenameFromGCSURI(gcsURI),
		Period:   period,
		Layout:   layout,
	}
	return s.process(ctx, req, gcsURI)
}

func (s *Service) process(ctx context.Context, req UploadRequest, sourceURI string) (*UploadResult, error) {
	log := logger.FromContext(ctx)

	layout, err := normalize.LayoutByName(req.Layout)
	if err != nil {
		return nil, fmt.Errorf("ProcessUpload: %w", err)
	}

	state := &PipelineState{
		Raw:       req.Raw,
		Filename:  req.Filename,
		Period:    req.Period,
		Layout:    layout,
		SourceURI: sourceURI,
	}

	err = s.NewUploadPipeline().Execute(ctx, state)
	res := resultOf(state)
	s.metrics.Uploads.WithLabelValues(layout.Name, outcomeOf(err)).Inc()

	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyResult):
			log.Warn().
				Str("period", string(req.Period)).
				Int("rows_read", res.RowsRead).
				Msg("Upload contained no valid rows")
		case errors.Is(err, ErrBackend):
			// The store may hold part of the upload; reload on the next read.
			s.invalidate()
			log.Error().Err(err).Msg("Storing upload failed")
		}
		return res, fmt.Errorf("ProcessUpload: %w", err)
	}

	res.Stored = len(state.Records)
	s.invalidate()
	log.Info().
		Str("period", string(req.Period)).
		Str("layout", layout.Name).
		Int("stored", res.Stored).
		Int("rows_dropped", res.RowsDropped).
		Msg("Upload stored")
	return res, nil
}

// Check normalizes req without storing anything. It fails the way
// ProcessUpload would for unreadable or empty uploads.
func Check(req UploadRequest) (*UploadResult, error) {
	layout, err := normalize.LayoutByName(req.Layout)
	if err != nil {
		return nil, fmt.Errorf("Check: %w", err)
	}

	state := &PipelineState{Raw: req.Raw, Period: req.Period, Layout: layout}
	err = NewPipeline(&NormalizeStep{}, &RequireRecordsStep{}).Execute(context.Background(), state)
	res := resultOf(state)
	if err != nil {
		return res, fmt.Errorf("Check: %w", err)
	}
	return res, nil
}

func resultOf(state *PipelineState) *UploadResult {
	res := &UploadResult{ArchiveURI: state.ArchiveURI}
	if state.Result != nil {
		res.RowsRead = state.Result.RowsRead
		res.RowsDropped = state.Result.RowsDropped
		res.Encoding = state.Result.Encoding
	}
	return res
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeStored
	case errors.Is(err, ErrEmptyResult):
		return metrics.OutcomeEmpty
	case errors.Is(err, normalize.ErrStructural), errors.Is(err, normalize.ErrDecode):
		return metrics.OutcomeStructural
	default:
		return metrics.OutcomeFailed
	}
}

// Records returns every stored record. With distinct set, repeated
// (account, value, period) rows are shown once, in first-seen order.
func (s *Service) Records(ctx context.Context, distinct bool) ([]domain.AccountRecord, error) {
	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if distinct {
		return Distinct(records), nil
	}
	return records, nil
}

// Dashboard computes the ordered ratios and their long-form views.
func (s *Service) Dashboard(ctx context.Context) (report.Dashboard, error) {
	records, err := s.load(ctx)
	if err != nil {
		return report.Dashboard{}, err
	}
	return report.Build(records), nil
}

// Composition returns the current-asset composition of period.
func (s *Service) Composition(ctx context.Context, period domain.Period) ([]ratios.CompositionSlice, error) {
	if !period.Valid() {
		return nil, fmt.Errorf("Composition: %w: %q", domain.ErrUnknownPeriod, period)
	}
	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return ratios.Composition(records, period), nil
}

// DeleteAll removes every stored record.
func (s *Service) DeleteAll(ctx context.Context) error {
	log := logger.FromContext(ctx)

	start := time.Now()
	err := s.repo.DeleteAllRecords(ctx)
	s.metrics.ObserveStore("delete_all", time.Since(start).Seconds(), err)
	if err != nil {
		log.Error().Err(err).Msg("Deleting records failed")
		return fmt.Errorf("DeleteAll: %w: %w", ErrBackend, err)
	}

	s.invalidate()
	log.Info().Msg("All records deleted")
	return nil
}

// load returns a copy of the cached records, filling the cache on a miss.
// The lock is held across the fetch so an invalidation cannot be overwritten
// by an older read.
func (s *Service) load(ctx context.Context) ([]domain.AccountRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.valid {
		start := time.Now()
		records, err := s.repo.FetchAllRecords(ctx)
		s.metrics.ObserveStore("fetch_all", time.Since(start).Seconds(), err)
		if err != nil {
			return nil, fmt.Errorf("loading records: %w: %w", ErrBackend, err)
		}
		s.cached = records
		s.valid = true
	}

	out := make([]domain.AccountRecord, len(s.cached))
	copy(out, s.cached)
	return out, nil
}

func (s *Service) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cached = nil
	s.valid = false
}

// Distinct drops repeated (account, value, period) records, keeping the
// first occurrence.
func Distinct(records []domain.AccountRecord) []domain.AccountRecord {
	seen := make(map[string]struct{}, len(records))
	out := []domain.AccountRecord{}
	for _, rec := range records {
		key := rec.Account + "\x00" + rec.Value.String() + "\x00" + string(rec.Period)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}
	return out
}
