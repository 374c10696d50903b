package bigquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/balance-indicators/internal/domain"
	"github.com/dvloznov/balance-indicators/internal/logger"
)

// appendBatchSize bounds the array parameter of one INSERT statement.
const appendBatchSize = 500

// AppendRecordsWithClient inserts records into the records table using the
// provided BigQuery client.
//
// Rows go through DML rather than the streaming API: rows still in the
// streaming buffer cannot be removed by DeleteAllRecordsWithClient.
// All batches run in one transaction, so a failed append stores nothing.
func AppendRecordsWithClient(ctx context.Context, client *bigquery.Client, table TableRef, records []domain.AccountRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := ToRecordRows(records, time.Now().UTC())
	params := batchParams(rows)

	q := client.Query(appendScript(table, len(params)))
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("AppendRecordsWithClient: run query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("AppendRecordsWithClient: wait for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("AppendRecordsWithClient: job error: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Int("records", len(rows)).
		Int("batches", len(params)).
		Str("table", table.FullName()).
		Msg("Appended account records")

	return nil
}

// batchParams splits rows into appendBatchSize array parameters named
// rows_0, rows_1, ...
func batchParams(rows []*RecordRow) []bigquery.QueryParameter {
	var params []bigquery.QueryParameter
	for start := 0; start < len(rows); start += appendBatchSize {
		end := start + appendBatchSize
		if end > len(rows) {
			end = len(rows)
		}

		batch := make([]RecordRow, 0, end-start)
		for _, r := range rows[start:end] {
			batch = append(batch, *r)
		}
		params = append(params, bigquery.QueryParameter{
			Name:  fmt.Sprintf("rows_%d", len(params)),
			Value: batch,
		})
	}
	return params
}

// appendScript builds a multi-statement query inserting every rows_N
// parameter inside one transaction, rolled back on any error.
func appendScript(table TableRef, batches int) string {
	var b strings.Builder
	b.WriteString("BEGIN\n  BEGIN TRANSACTION;\n")
	for i := 0; i < batches; i++ {
		fmt.Fprintf(&b, `
  INSERT INTO %s (
    record_id,
    account,
    value,
    period,
    position,
    ingested_on,
    created_ts
  )
  SELECT
    r.record_id,
    r.account,
    r.value,
    r.period,
    r.position,
    r.ingested_on,
    r.created_ts
  FROM UNNEST(@rows_%d) AS r;
`, table.FullName(), i)
	}
	b.WriteString(`
  COMMIT TRANSACTION;
EXCEPTION WHEN ERROR THEN
  ROLLBACK TRANSACTION;
  RAISE USING MESSAGE = @@error.message;
END;
`)
	return b.String()
}

// FetchAllRecordsWithClient reads every stored record using the provided
// BigQuery client, oldest batch first. Rows that no longer map to a valid
// record are skipped.
func FetchAllRecordsWithClient(ctx context.Context, client *bigquery.Client, table TableRef) ([]domain.AccountRecord, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			record_id,
			account,
			value,
			period,
			position,
			ingested_on,
			created_ts
		FROM %s
		ORDER BY created_ts, position
	`, table.FullName()))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchAllRecordsWithClient: query read: %w", err)
	}

	log := logger.FromContext(ctx)
	records := []domain.AccountRecord{}
	for {
		var row RecordRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("FetchAllRecordsWithClient: iter next: %w", err)
		}

		rec, err := FromRecordRow(&row)
		if err != nil {
			log.Warn().Err(err).Msg("Skipping invalid stored record")
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

// DeleteAllRecordsWithClient removes every row of the records table using the
// provided BigQuery client.
func DeleteAllRecordsWithClient(ctx context.Context, client *bigquery.Client, table TableRef) error {
	q := client.Query(`DELETE FROM ` + table.FullName() + ` WHERE TRUE`)

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("DeleteAllRecordsWithClient: run query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("DeleteAllRecordsWithClient: wait for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("DeleteAllRecordsWithClient: job error: %w", err)
	}

	return nil
}
