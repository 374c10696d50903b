package normalize

import (
	"fmt"
	"strings"
)

// Layout names.
const (
	LayoutUpload = "upload"
	LayoutStatic = "static"
)

// Layout describes where the fields of a balance-sheet export live and how
// its bytes are encoded. One Normalizer handles every export shape through it.
type Layout struct {
	Name string

	// SkipLines raw lines are discarded before CSV parsing starts.
	SkipLines int
	Comma     rune
	HasHeader bool

	AccountColumn int
	ValueColumn   int
	// PeriodColumn < 0 means every row takes the declared period.
	PeriodColumn int

	// MinColumns is the width the widest row must reach.
	MinColumns int
	// SkipMalformed drops rows whose width differs from MinColumns.
	SkipMalformed bool

	// Encodings is tried in order until one decodes the input.
	Encodings []string
}

// UploadLayout is the monthly export: three preamble lines, no header,
// account in column 1 and value in column 2. The month comes from the caller.
func UploadLayout() Layout {
	return Layout{
		Name:          LayoutUpload,
		SkipLines:     3,
		Comma:         ';',
		AccountColumn: 1,
		ValueColumn:   2,
		PeriodColumn:  -1,
		MinColumns:    3,
		Encodings:     []string{EncodingUTF8, EncodingLatin1},
	}
}

// StaticLayout is the consolidated multi-period file: a header row followed
// by account;value;period lines. Lines of any other width are skipped.
func StaticLayout() Layout {
	return Layout{
		Name:          LayoutStatic,
		Comma:         ';',
		HasHeader:     true,
		AccountColumn: 0,
		ValueColumn:   1,
		PeriodColumn:  2,
		MinColumns:    3,
		SkipMalformed: true,
		Encodings:     []string{EncodingUTF8, EncodingLatin1},
	}
}

// LayoutByName returns the predefined layout called name.
func LayoutByName(name string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", LayoutUpload:
		return UploadLayout(), nil
	case LayoutStatic:
		return StaticLayout(), nil
	default:
		return Layout{}, fmt.Errorf("normalize: unknown layout %q", name)
	}
}

func (l Layout) usesDeclaredPeriod() bool {
	return l.PeriodColumn < 0
}

// widest returns the highest column index a row must contain.
func (l Layout) widest() int {
	n := l.AccountColumn
	if l.ValueColumn > n {
		n = l.ValueColumn
	}
	if l.PeriodColumn > n {
		n = l.PeriodColumn
	}
	return n
}
