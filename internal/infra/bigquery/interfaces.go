package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	bq "github.com/dvloznov/balance-indicators/internal/bigquery"
	"github.com/dvloznov/balance-indicators/internal/domain"
)

// Re-export interface from shared package
type RecordRepository = bq.RecordRepository

// BigQueryRecordRepository is the concrete implementation of RecordRepository
// that interacts with BigQuery. It holds a shared BigQuery client to avoid
// creating a new connection for each operation.
type BigQueryRecordRepository struct {
	client *bigquery.Client
	table  TableRef
}

// NewBigQueryRecordRepository creates a new instance of BigQueryRecordRepository
// with a shared BigQuery client for table's project.
func NewBigQueryRecordRepository(ctx context.Context, table TableRef) (*BigQueryRecordRepository, error) {
	client, err := bigquery.NewClient(ctx, table.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryRecordRepository: creating client: %w", err)
	}
	return &BigQueryRecordRepository{
		client: client,
		table:  table,
	}, nil
}

// Close closes the BigQuery client connection. This should be called when
// the repository is no longer needed to release resources.
func (r *BigQueryRecordRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// AppendRecords delegates to AppendRecordsWithClient with the shared client.
func (r *BigQueryRecordRepository) AppendRecords(ctx context.Context, records []domain.AccountRecord) error {
	return AppendRecordsWithClient(ctx, r.client, r.table, records)
}

// FetchAllRecords delegates to FetchAllRecordsWithClient with the shared client.
func (r *BigQueryRecordRepository) FetchAllRecords(ctx context.Context) ([]domain.AccountRecord, error) {
	return FetchAllRecordsWithClient(ctx, r.client, r.table)
}

// DeleteAllRecords delegates to DeleteAllRecordsWithClient with the shared client.
func (r *BigQueryRecordRepository) DeleteAllRecords(ctx context.Context) error {
	return DeleteAllRecordsWithClient(ctx, r.client, r.table)
}

var _ RecordRepository = (*BigQueryRecordRepository)(nil)
