package normalize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/dvloznov/balance-indicators/internal/domain"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertRecord(t *testing.T, want domain.AccountRecord, got domain.AccountRecord) {
	t.Helper()
	assert.Equal(t, want.Account, got.Account)
	assert.Equal(t, want.Period, got.Period)
	assert.True(t, want.Value.Equal(got.Value), "%s: value %s, want %s", want.Account, got.Value, want.Value)
}

func TestNormalize_UploadLayout(t *testing.T) {
	n := New(UploadLayout())

	res, err := n.Normalize(readFixture(t, "upload_july.csv"), domain.PeriodJuly)
	require.NoError(t, err)

	assert.Equal(t, EncodingUTF8, res.Encoding)
	assert.Equal(t, 9, res.RowsRead)
	assert.Equal(t, 3, res.RowsDropped)

	want := []domain.AccountRecord{
		{Account: "ativo circulante", Value: dec("10000"), Period: domain.PeriodJuly},
		{Account: "passivo circulante", Value: dec("5000"), Period: domain.PeriodJuly},
		{Account: "passivo não circulante", Value: dec("2500"), Period: domain.PeriodJuly},
		{Account: "patrimonio liquido", Value: dec("20000"), Period: domain.PeriodJuly},
		{Account: "estoque para venda", Value: dec("1000"), Period: domain.PeriodJuly},
		{Account: "imobilizado", Value: dec("4000"), Period: domain.PeriodJuly},
	}
	require.Len(t, res.Records, len(want))
	for i := range want {
		assertRecord(t, want[i], res.Records[i])
	}
}

func TestNormalize_Latin1Fallback(t *testing.T) {
	utf8Text := "cabeçalho\nempresa\nperíodo\n1;Aplicação Financeira;1.500,25\n2;Passivo Não Circulante;300,00\n"
	latin1, err := charmap.ISO8859_1.NewEncoder().String(utf8Text)
	require.NoError(t, err)

	res, err := New(UploadLayout()).Normalize([]byte(latin1), domain.PeriodAugust)
	require.NoError(t, err)

	assert.Equal(t, EncodingLatin1, res.Encoding)
	require.Len(t, res.Records, 2)
	assertRecord(t, domain.AccountRecord{Account: "aplicação financeira", Value: dec("1500.25"), Period: domain.PeriodAugust}, res.Records[0])
	assertRecord(t, domain.AccountRecord{Account: "passivo não circulante", Value: dec("300"), Period: domain.PeriodAugust}, res.Records[1])
}

func TestNormalize_StructuralError(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"two columns", "a\nb\nc\n1;Ativo Circulante\n2;Passivo Circulante\n"},
		{"only preamble", "a\nb\nc\n"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New(UploadLayout()).Normalize([]byte(tt.input), domain.PeriodJuly)
			assert.ErrorIs(t, err, ErrStructural)
			assert.Nil(t, res)
		})
	}
}

func TestNormalize_AllRowsRejected(t *testing.T) {
	input := "a\nb\nc\n1;;1,00\n2;Caixa;n/a\n3;Bancos;\n"

	res, err := New(UploadLayout()).Normalize([]byte(input), domain.PeriodJuly)
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Equal(t, 3, res.RowsRead)
	assert.Equal(t, 3, res.RowsDropped)
}

func TestNormalize_RequiresDeclaredPeriod(t *testing.T) {
	_, err := New(UploadLayout()).Normalize(readFixture(t, "upload_july.csv"), domain.Period("JANUARY"))
	assert.ErrorIs(t, err, domain.ErrUnknownPeriod)
}

func TestNormalize_StaticLayout(t *testing.T) {
	res, err := New(StaticLayout()).Normalize(readFixture(t, "static.csv"), "")
	require.NoError(t, err)

	assert.Equal(t, 6, res.RowsRead)
	assert.Equal(t, 3, res.RowsDropped)

	want := []domain.AccountRecord{
		{Account: "ativo circulante", Value: dec("10000"), Period: domain.PeriodJuly},
		{Account: "passivo circulante", Value: dec("5000"), Period: domain.PeriodJuly},
		{Account: "ativo circulante", Value: dec("12000"), Period: domain.PeriodAugust},
	}
	require.Len(t, res.Records, len(want))
	for i := range want {
		assertRecord(t, want[i], res.Records[i])
	}
}

func TestNormalize_StaticLayoutHeaderOnly(t *testing.T) {
	_, err := New(StaticLayout()).Normalize([]byte("Conta;Valor;Mês\n"), "")
	assert.ErrorIs(t, err, ErrStructural)
}

func TestNormalize_Idempotent(t *testing.T) {
	n := New(UploadLayout())
	raw := readFixture(t, "upload_july.csv")

	first, err := n.Normalize(raw, domain.PeriodJuly)
	require.NoError(t, err)
	second, err := n.Normalize(raw, domain.PeriodJuly)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDecode(t *testing.T) {
	text, enc, err := Decode([]byte("\xef\xbb\xbfconta;valor"), []string{EncodingUTF8, EncodingLatin1})
	require.NoError(t, err)
	assert.Equal(t, EncodingUTF8, enc)
	assert.Equal(t, "conta;valor", text)

	text, enc, err = Decode([]byte("n\xe3o"), []string{EncodingUTF8, EncodingLatin1})
	require.NoError(t, err)
	assert.Equal(t, EncodingLatin1, enc)
	assert.Equal(t, "não", text)

	_, _, err = Decode([]byte("n\xe3o"), []string{EncodingUTF8})
	assert.ErrorIs(t, err, ErrDecode)

	_, _, err = Decode([]byte("x"), []string{"ebcdic"})
	assert.Error(t, err)
}

func TestLayoutByName(t *testing.T) {
	l, err := LayoutByName("")
	require.NoError(t, err)
	assert.Equal(t, LayoutUpload, l.Name)

	l, err = LayoutByName("Static")
	require.NoError(t, err)
	assert.Equal(t, LayoutStatic, l.Name)
	assert.Equal(t, 2, l.PeriodColumn)

	_, err = LayoutByName("pdf")
	assert.Error(t, err)
}
