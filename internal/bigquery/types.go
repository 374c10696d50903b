package bigquery

import (
	"context"
	"math/big"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/balance-indicators/internal/domain"
)

// RecordRepository provides an interface for account record storage.
// Records are only ever appended, read in full or deleted in full.
type RecordRepository interface {
	// AppendRecords stores records in addition to those already present.
	AppendRecords(ctx context.Context, records []domain.AccountRecord) error

	// FetchAllRecords returns every stored record, duplicates included.
	FetchAllRecords(ctx context.Context) ([]domain.AccountRecord, error)

	// DeleteAllRecords removes every stored record.
	DeleteAllRecords(ctx context.Context) error
}

// RecordRow represents an account record row in BigQuery.
type RecordRow struct {
	RecordID string `bigquery:"record_id"` // REQUIRED

	Account string   `bigquery:"account"` // REQUIRED
	Value   *big.Rat `bigquery:"value"`   // REQUIRED NUMERIC
	Period  string   `bigquery:"period"`  // REQUIRED

	// Position keeps the source order of records written together.
	Position int64 `bigquery:"position"` // REQUIRED

	IngestedOn civil.Date `bigquery:"ingested_on"` // REQUIRED, partition column
	CreatedTS  time.Time  `bigquery:"created_ts"`  // REQUIRED
}
