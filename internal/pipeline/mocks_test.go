package pipeline_test

import (
	"context"
	"sync"

	"github.com/dvloznov/balance-indicators/internal/domain"
	"github.com/dvloznov/balance-indicators/internal/pipeline"
)

// MockRecordRepository is a mock implementation of RecordRepository for testing.
// Without overrides it behaves like an in-memory store and counts calls.
type MockRecordRepository struct {
	AppendRecordsFunc    func(ctx context.Context, records []domain.AccountRecord) error
	FetchAllRecordsFunc  func(ctx context.Context) ([]domain.AccountRecord, error)
	DeleteAllRecordsFunc func(ctx context.Context) error

	mu          sync.Mutex
	records     []domain.AccountRecord
	AppendCalls int
	FetchCalls  int
	DeleteCalls int
}

func (m *MockRecordRepository) AppendRecords(ctx context.Context, records []domain.AccountRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendCalls++
	if m.AppendRecordsFunc != nil {
		return m.AppendRecordsFunc(ctx, records)
	}
	m.records = append(m.records, records...)
	return nil
}

func (m *MockRecordRepository) FetchAllRecords(ctx context.Context) ([]domain.AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FetchCalls++
	if m.FetchAllRecordsFunc != nil {
		return m.FetchAllRecordsFunc(ctx)
	}
	out := make([]domain.AccountRecord, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *MockRecordRepository) DeleteAllRecords(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	if m.DeleteAllRecordsFunc != nil {
		return m.DeleteAllRecordsFunc(ctx)
	}
	m.records = nil
	return nil
}

// MockStorageService is a mock implementation of StorageService for testing.
type MockStorageService struct {
	UploadBytesFunc  func(ctx context.Context, bucketName, objectName string, data []byte) error
	FetchFromGCSFunc func(ctx context.Context, gcsURI string) ([]byte, error)

	Uploaded map[string][]byte
}

func (m *MockStorageService) UploadBytes(ctx context.Context, bucketName, objectName string, data []byte) error {
	if m.UploadBytesFunc != nil {
		return m.UploadBytesFunc(ctx, bucketName, objectName, data)
	}
	if m.Uploaded == nil {
		m.Uploaded = map[string][]byte{}
	}
	m.Uploaded[bucketName+"/"+objectName] = data
	return nil
}

func (m *MockStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	if m.FetchFromGCSFunc != nil {
		return m.FetchFromGCSFunc(ctx, gcsURI)
	}
	return nil, nil
}

func (m *MockStorageService) ExtractFilenameFromGCSURI(uri string) string {
	return "balance.csv"
}

var (
	_ pipeline.RecordRepository = (*MockRecordRepository)(nil)
	_ pipeline.StorageService   = (*MockStorageService)(nil)
)
