package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Period identifies the reporting month a balance-sheet export belongs to.
type Period string

const (
	PeriodJuly      Period = "JULY"
	PeriodAugust    Period = "AUGUST"
	PeriodSeptember Period = "SEPTEMBER"
	PeriodOctober   Period = "OCTOBER"
	PeriodNovember  Period = "NOVEMBER"
	PeriodDecember  Period = "DECEMBER"
)

// Periods lists every selectable reporting month in calendar order.
var Periods = []Period{
	PeriodJuly,
	PeriodAugust,
	PeriodSeptember,
	PeriodOctober,
	PeriodNovember,
	PeriodDecember,
}

// ErrUnknownPeriod is returned when a label does not name a selectable month.
var ErrUnknownPeriod = errors.New("unknown period")

// Exports produced by the accounting system label months in Portuguese.
var periodLabels = map[string]Period{
	"JULY":      PeriodJuly,
	"JULHO":     PeriodJuly,
	"AUGUST":    PeriodAugust,
	"AGOSTO":    PeriodAugust,
	"SEPTEMBER": PeriodSeptember,
	"SETEMBRO":  PeriodSeptember,
	"OCTOBER":   PeriodOctober,
	"OUTUBRO":   PeriodOctober,
	"NOVEMBER":  PeriodNovember,
	"NOVEMBRO":  PeriodNovember,
	"DECEMBER":  PeriodDecember,
	"DEZEMBRO":  PeriodDecember,
}

// ParsePeriod resolves a month label, case-insensitively and ignoring
// surrounding whitespace.
func ParsePeriod(label string) (Period, error) {
	p, ok := periodLabels[strings.ToUpper(strings.TrimSpace(label))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, label)
	}
	return p, nil
}

// Valid reports whether p is one of the selectable months.
func (p Period) Valid() bool {
	for _, known := range Periods {
		if p == known {
			return true
		}
	}
	return false
}

func (p Period) String() string {
	return string(p)
}
