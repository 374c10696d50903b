package inmemory

import (
	"context"
	"sync"

	bq "github.com/dvloznov/balance-indicators/internal/bigquery"
	"github.com/dvloznov/balance-indicators/internal/domain"
)

// RecordRepository is an in-memory implementation of RecordRepository.
// It is safe for concurrent use. Data is lost on restart - for persistence,
// use the BigQuery-backed repository.
type RecordRepository struct {
	mu      sync.RWMutex
	records []domain.AccountRecord
}

// NewRecordRepository creates an empty in-memory record repository.
func NewRecordRepository() *RecordRepository {
	return &RecordRepository{}
}

// AppendRecords implements the RecordRepository interface.
func (r *RecordRepository) AppendRecords(ctx context.Context, records []domain.AccountRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, records...)
	return nil
}

// FetchAllRecords implements the RecordRepository interface.
// It returns a copy so callers cannot modify stored records.
func (r *RecordRepository) FetchAllRecords(ctx context.Context) ([]domain.AccountRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.AccountRecord, len(r.records))
	copy(out, r.records)
	return out, nil
}

// DeleteAllRecords implements the RecordRepository interface.
func (r *RecordRepository) DeleteAllRecords(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = nil
	return nil
}

// Ensure RecordRepository implements the shared interface.
var _ bq.RecordRepository = (*RecordRepository)(nil)
