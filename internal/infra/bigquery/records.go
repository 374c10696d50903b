package bigquery

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	bq "github.com/dvloznov/balance-indicators/internal/bigquery"
	"github.com/dvloznov/balance-indicators/internal/domain"
)

// RecordRow re-exports the row type from the shared package.
type RecordRow = bq.RecordRow

// DefaultRecordsTable is the table account records are written to.
const DefaultRecordsTable = "account_records"

// numericScale is the number of fractional digits a NUMERIC column keeps.
const numericScale = 9

// TableRef locates the records table.
type TableRef struct {
	ProjectID string
	DatasetID string
	Table     string
}

// FullName returns the backtick-quoted project.dataset.table identifier.
func (t TableRef) FullName() string {
	table := t.Table
	if table == "" {
		table = DefaultRecordsTable
	}
	return "`" + t.ProjectID + "." + t.DatasetID + "." + table + "`"
}

// ToRecordRows maps records to rows stamped with now, one fresh record_id
// each, keeping their order in Position.
func ToRecordRows(records []domain.AccountRecord, now time.Time) []*RecordRow {
	rows := make([]*RecordRow, 0, len(records))
	for i, rec := range records {
		rows = append(rows, &RecordRow{
			RecordID:   uuid.NewString(),
			Account:    rec.Account,
			Value:      rec.Value.Rat(),
			Period:     string(rec.Period),
			Position:   int64(i),
			IngestedOn: civil.DateOf(now),
			CreatedTS:  now,
		})
	}
	return rows
}

// FromRecordRow maps a stored row back to a record. Rows with a missing value
// or an unknown period are rejected.
func FromRecordRow(row *RecordRow) (domain.AccountRecord, error) {
	if row.Value == nil {
		return domain.AccountRecord{}, fmt.Errorf("FromRecordRow: record %s has no value", row.RecordID)
	}
	value, err := decimal.NewFromString(row.Value.FloatString(numericScale))
	if err != nil {
		return domain.AccountRecord{}, fmt.Errorf("FromRecordRow: record %s: %w", row.RecordID, err)
	}
	period, err := domain.ParsePeriod(row.Period)
	if err != nil {
		return domain.AccountRecord{}, fmt.Errorf("FromRecordRow: record %s: %w", row.RecordID, err)
	}
	return domain.AccountRecord{
		Account: row.Account,
		Value:   value,
		Period:  period,
	}, nil
}
