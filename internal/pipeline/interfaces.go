package pipeline

import (
	bq "github.com/dvloznov/balance-indicators/internal/bigquery"
	"github.com/dvloznov/balance-indicators/internal/gcs"
)

// RecordRepository is the record store the pipeline persists to.
type RecordRepository = bq.RecordRepository

// StorageService archives raw uploads and reads files from GCS.
type StorageService = gcs.StorageService
