package gcsuploader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/balance-indicators/internal/domain"
)

func TestParseGCSURI(t *testing.T) {
	bucket, object, err := ParseGCSURI("gs://raw-uploads/uploads/july/balance.csv")
	require.NoError(t, err)
	assert.Equal(t, "raw-uploads", bucket)
	assert.Equal(t, "uploads/july/balance.csv", object)

	for _, bad := range []string{"", "s3://bucket/key", "gs://bucket", "gs://bucket/", "gs:///key"} {
		_, _, err := ParseGCSURI(bad)
		assert.Error(t, err, bad)
	}
}

func TestExtractFilenameFromGCSURI(t *testing.T) {
	assert.Equal(t, "file.csv", ExtractFilenameFromGCSURI("gs://bucket/folder/file.csv"))
	assert.Equal(t, "file.csv", ExtractFilenameFromGCSURI("gs://bucket/file.csv"))
	assert.Equal(t, "bucket", ExtractFilenameFromGCSURI("gs://bucket"))
}

func TestObjectName(t *testing.T) {
	now := time.Unix(0, 42)

	assert.Equal(t, "uploads/july/42_balance.csv", ObjectName("uploads", domain.PeriodJuly, "balance.csv", now))
	assert.Equal(t, "uploads/august/42_b.csv", ObjectName("uploads", domain.PeriodAugust, "C:\\tmp\\b.csv", now))
	assert.Equal(t, "july/42_upload.csv", ObjectName("", domain.PeriodJuly, "", now))
}

func TestURI(t *testing.T) {
	assert.Equal(t, "gs://b/o/x.csv", URI("b", "o/x.csv"))
}
