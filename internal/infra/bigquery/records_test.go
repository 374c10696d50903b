package bigquery

import (
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/balance-indicators/internal/domain"
)

func TestTableRefFullName(t *testing.T) {
	ref := TableRef{ProjectID: "proj", DatasetID: "balance"}
	assert.Equal(t, "`proj.balance.account_records`", ref.FullName())

	ref.Table = "records_v2"
	assert.Equal(t, "`proj.balance.records_v2`", ref.FullName())
}

func TestToRecordRows(t *testing.T) {
	now := time.Date(2024, 8, 15, 10, 30, 0, 0, time.UTC)
	records := []domain.AccountRecord{
		{Account: "ativo circulante", Value: decimal.RequireFromString("10000.50"), Period: domain.PeriodJuly},
		{Account: "passivo circulante", Value: decimal.RequireFromString("-5000"), Period: domain.PeriodJuly},
	}

	rows := ToRecordRows(records, now)
	require.Len(t, rows, 2)

	assert.NotEmpty(t, rows[0].RecordID)
	assert.NotEqual(t, rows[0].RecordID, rows[1].RecordID)
	assert.Equal(t, "ativo circulante", rows[0].Account)
	assert.Equal(t, 0, rows[0].Value.Cmp(big.NewRat(20001, 2)))
	assert.Equal(t, "JULY", rows[0].Period)
	assert.Equal(t, int64(0), rows[0].Position)
	assert.Equal(t, int64(1), rows[1].Position)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.August, Day: 15}, rows[0].IngestedOn)
	assert.Equal(t, now, rows[1].CreatedTS)
}

func TestFromRecordRow(t *testing.T) {
	rec, err := FromRecordRow(&RecordRow{
		RecordID: "r1",
		Account:  "imobilizado",
		Value:    big.NewRat(1234567, 100),
		Period:   "AUGUST",
	})
	require.NoError(t, err)
	assert.Equal(t, "imobilizado", rec.Account)
	assert.Equal(t, domain.PeriodAugust, rec.Period)
	assert.True(t, decimal.RequireFromString("12345.67").Equal(rec.Value), rec.Value.String())
}

func TestFromRecordRow_Invalid(t *testing.T) {
	_, err := FromRecordRow(&RecordRow{RecordID: "r1", Account: "x", Period: "JULY"})
	assert.Error(t, err)

	_, err = FromRecordRow(&RecordRow{RecordID: "r2", Account: "x", Value: big.NewRat(1, 1), Period: "INVALID"})
	assert.ErrorIs(t, err, domain.ErrUnknownPeriod)
}

func TestRoundTripThroughRows(t *testing.T) {
	in := []domain.AccountRecord{
		{Account: "caixa", Value: decimal.RequireFromString("0.01"), Period: domain.PeriodDecember},
	}
	rows := ToRecordRows(in, time.Now())
	out, err := FromRecordRow(rows[0])
	require.NoError(t, err)
	assert.Equal(t, in[0].Account, out.Account)
	assert.Equal(t, in[0].Period, out.Period)
	assert.True(t, in[0].Value.Equal(out.Value))
}

func TestBatchParams(t *testing.T) {
	records := make([]domain.AccountRecord, 1200)
	for i := range records {
		records[i] = domain.AccountRecord{Account: "caixa", Value: decimal.NewFromInt(int64(i)), Period: domain.PeriodJuly}
	}

	params := batchParams(ToRecordRows(records, time.Now()))
	require.Len(t, params, 3)

	sizes := []int{500, 500, 200}
	for i, p := range params {
		assert.Equal(t, fmt.Sprintf("rows_%d", i), p.Name)
		batch, ok := p.Value.([]RecordRow)
		require.True(t, ok)
		assert.Len(t, batch, sizes[i])
	}
	assert.Equal(t, int64(500), params[1].Value.([]RecordRow)[0].Position)
}

func TestAppendScript_SingleTransaction(t *testing.T) {
	script := appendScript(TableRef{ProjectID: "proj", DatasetID: "balance"}, 3)

	assert.Equal(t, 1, strings.Count(script, "BEGIN TRANSACTION;"))
	assert.Equal(t, 1, strings.Count(script, "COMMIT TRANSACTION;"))
	assert.Equal(t, 3, strings.Count(script, "INSERT INTO `proj.balance.account_records`"))
	for i := 0; i < 3; i++ {
		assert.Contains(t, script, fmt.Sprintf("UNNEST(@rows_%d)", i))
	}

	rollback := strings.Index(script, "ROLLBACK TRANSACTION;")
	require.Positive(t, rollback)
	assert.Greater(t, rollback, strings.Index(script, "EXCEPTION WHEN ERROR THEN"))
	assert.Greater(t, strings.Index(script, "COMMIT TRANSACTION;"), strings.LastIndex(script, "INSERT INTO"))
}
