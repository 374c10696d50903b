package gcs

import (
	"context"
)

// StorageService archives raw uploads and reads them back.
// This interface enables mocking and testing of storage functionality.
type StorageService interface {
	// UploadBytes writes data to a bucket under the given object name.
	UploadBytes(ctx context.Context, bucketName, objectName string, data []byte) error

	// FetchFromGCS downloads file bytes from the given storage URI.
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)

	// ExtractFilenameFromGCSURI extracts the filename from a storage URI.
	ExtractFilenameFromGCSURI(uri string) string
}
