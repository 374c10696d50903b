// Package app assembles the record store, archive and pipeline service from
// a validated configuration. Both binaries start from here.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/balance-indicators/internal/config"
	"github.com/dvloznov/balance-indicators/internal/gcsuploader"
	infraBQ "github.com/dvloznov/balance-indicators/internal/infra/bigquery"
	"github.com/dvloznov/balance-indicators/internal/infra/inmemory"
	"github.com/dvloznov/balance-indicators/internal/metrics"
	"github.com/dvloznov/balance-indicators/internal/pipeline"
)

// App holds the long-lived collaborators of a process.
type App struct {
	Config  *config.Config
	Repo    pipeline.RecordRepository
	Storage pipeline.StorageService
	Metrics *metrics.Metrics
	Service *pipeline.Service

	closers []func() error
}

// Option adjusts how Open builds an App.
type Option func(*openOptions)

type openOptions struct {
	repo    pipeline.RecordRepository
	storage pipeline.StorageService
}

// WithRepository replaces the configured record store.
func WithRepository(repo pipeline.RecordRepository) Option {
	return func(o *openOptions) { o.repo = repo }
}

// WithStorage replaces the GCS archive.
func WithStorage(s pipeline.StorageService) Option {
	return func(o *openOptions) { o.storage = s }
}

// Open validates cfg and connects to the configured backends.
// It fails with config.ErrMissingCredentials before dialing anything when
// the BigQuery store lacks its project or dataset.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Metrics: metrics.New()}

	repo := o.repo
	if repo == nil {
		r, err := a.openRepository(ctx)
		if err != nil {
			return nil, err
		}
		repo = r
	}
	a.Repo = repo

	storage := o.storage
	if storage == nil && cfg.Storage.Bucket != "" {
		s, err := gcsuploader.NewGCSStorageService(ctx)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("app: opening storage: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		storage = s
	}
	a.Storage = storage

	a.Service = pipeline.NewService(repo, pipeline.Options{
		Storage: storage,
		Bucket:  cfg.Storage.Bucket,
		Prefix:  cfg.Storage.Prefix,
		Metrics: a.Metrics,
	})
	return a, nil
}

func (a *App) openRepository(ctx context.Context) (pipeline.RecordRepository, error) {
	switch a.Config.Store {
	case config.StoreMemory:
		return inmemory.NewRecordRepository(), nil
	case config.StoreBigQuery:
		r, err := infraBQ.NewBigQueryRecordRepository(ctx, TableRef(a.Config))
		if err != nil {
			return nil, fmt.Errorf("app: opening record store: %w", err)
		}
		a.closers = append(a.closers, r.Close)
		return r, nil
	default:
		return nil, fmt.Errorf("app: unknown store %q", a.Config.Store)
	}
}

// TableRef locates the records table named by cfg.
func TableRef(cfg *config.Config) infraBQ.TableRef {
	return infraBQ.TableRef{
		ProjectID: cfg.BigQuery.ProjectID,
		DatasetID: cfg.BigQuery.DatasetID,
		Table:     cfg.BigQuery.Table,
	}
}

// Close releases every backend client opened by Open.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
