// Package normalize turns raw balance-sheet exports into account records.
package normalize

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dvloznov/balance-indicators/internal/amount"
	"github.com/dvloznov/balance-indicators/internal/domain"
)

// ErrStructural is returned when the input does not have the columns the
// layout needs. Nothing from such an input is kept.
var ErrStructural = errors.New("normalize: unexpected file structure")

// Result is the cleaned output of one export.
type Result struct {
	Records []domain.AccountRecord
	// Encoding is the chain entry that decoded the input.
	Encoding string
	// RowsRead counts data rows, excluding skipped lines and the header.
	RowsRead int
	// RowsDropped counts data rows rejected during cleaning.
	RowsDropped int
}

// Normalizer cleans exports shaped like its layout.
type Normalizer struct {
	layout Layout
}

// New creates a Normalizer for layout.
func New(layout Layout) *Normalizer {
	if layout.Comma == 0 {
		layout.Comma = ';'
	}
	return &Normalizer{layout: layout}
}

// Normalize decodes raw, extracts the account and value columns and returns
// the rows that survive cleaning. declared is attached to every row when the
// layout has no period column and is ignored otherwise.
// The same input always yields the same records.
func (n *Normalizer) Normalize(raw []byte, declared domain.Period) (*Result, error) {
	if n.layout.usesDeclaredPeriod() && !declared.Valid() {
		return nil, fmt.Errorf("Normalize: %w: %q", domain.ErrUnknownPeriod, declared)
	}

	text, enc, err := Decode(raw, n.layout.Encodings)
	if err != nil {
		return nil, fmt.Errorf("Normalize: decoding: %w", err)
	}

	rows, malformed, err := n.readRows(text)
	if err != nil {
		return nil, fmt.Errorf("Normalize: reading rows: %w", err)
	}

	res := &Result{
		Encoding:    enc,
		RowsRead:    len(rows) + malformed,
		RowsDropped: malformed,
	}

	for _, row := range rows {
		rec, ok := n.clean(row, declared)
		if !ok {
			res.RowsDropped++
			continue
		}
		res.Records = append(res.Records, rec)
	}

	return res, nil
}

// readRows returns the data rows of text and how many lines were skipped as
// malformed. It fails with ErrStructural when no row is wide enough.
func (n *Normalizer) readRows(text string) ([][]string, int, error) {
	br := bufio.NewReader(strings.NewReader(text))
	for i := 0; i < n.layout.SkipLines; i++ {
		if _, err := br.ReadString('\n'); err != nil {
			if err == io.EOF {
				break
			}
			return nil, 0, err
		}
	}

	r := csv.NewReader(br)
	r.Comma = n.layout.Comma
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	var (
		rows       [][]string
		malformed  int
		widest     int
		headerSeen = !n.layout.HasHeader
	)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) && n.layout.SkipMalformed {
				malformed++
				continue
			}
			return nil, 0, fmt.Errorf("%w: %v", ErrStructural, err)
		}

		if !headerSeen {
			headerSeen = true
			continue
		}

		if n.layout.SkipMalformed && len(rec) != n.layout.MinColumns {
			malformed++
			continue
		}
		if len(rec) > widest {
			widest = len(rec)
		}
		rows = append(rows, rec)
	}

	if widest < n.layout.MinColumns {
		return nil, 0, fmt.Errorf("%w: expected at least %d columns, found %d",
			ErrStructural, n.layout.MinColumns, widest)
	}

	return rows, malformed, nil
}

// clean builds a record from one row, reporting false when the row must be
// dropped.
func (n *Normalizer) clean(row []string, declared domain.Period) (domain.AccountRecord, bool) {
	if len(row) <= n.layout.widest() {
		return domain.AccountRecord{}, false
	}

	account := strings.ToLower(strings.TrimSpace(row[n.layout.AccountColumn]))
	if account == "" {
		return domain.AccountRecord{}, false
	}

	value := amount.Parse(row[n.layout.ValueColumn])
	if !value.OK() {
		return domain.AccountRecord{}, false
	}

	period := declared
	if !n.layout.usesDeclaredPeriod() {
		p, err := domain.ParsePeriod(row[n.layout.PeriodColumn])
		if err != nil {
			return domain.AccountRecord{}, false
		}
		period = p
	}

	return domain.AccountRecord{
		Account: account,
		Value:   value.Value,
		Period:  period,
	}, true
}
