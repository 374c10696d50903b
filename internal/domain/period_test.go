package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		label string
		want  Period
	}{
		{"JULY", PeriodJuly},
		{"july", PeriodJuly},
		{"  Julho ", PeriodJuly},
		{"AGOSTO", PeriodAugust},
		{"setembro", PeriodSeptember},
		{"OUTUBRO", PeriodOctober},
		{"November", PeriodNovember},
		{"DEZEMBRO", PeriodDecember},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := ParsePeriod(tt.label)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePeriod_Unknown(t *testing.T) {
	for _, label := range []string{"", "JANUARY", "INVALID", "JUL"} {
		_, err := ParsePeriod(label)
		assert.ErrorIs(t, err, ErrUnknownPeriod, label)
	}
}

func TestPeriodValid(t *testing.T) {
	for _, p := range Periods {
		assert.True(t, p.Valid(), p)
	}
	assert.False(t, Period("JULHO").Valid())
	assert.False(t, Period("").Valid())
}
