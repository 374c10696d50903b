// Package report arranges computed ratios for presentation: canonical period
// order, long-form indicator lists, markdown, terminal and workbook output.
package report

import (
	"github.com/dvloznov/balance-indicators/internal/domain"
	"github.com/dvloznov/balance-indicators/internal/ratios"
)

// CanonicalOrder is the chronological order used for comparisons.
// Periods missing from it are left out of ordered output.
var CanonicalOrder = []domain.Period{domain.PeriodJuly, domain.PeriodAugust}

// Order returns ratios sorted by CanonicalOrder.
func Order(rs []domain.PeriodRatios) []domain.PeriodRatios {
	return OrderBy(rs, CanonicalOrder)
}

// OrderBy returns the entries of rs whose period appears in order, sorted by
// their position in it. Periods outside order are dropped.
func OrderBy(rs []domain.PeriodRatios, order []domain.Period) []domain.PeriodRatios {
	byPeriod := make(map[domain.Period]domain.PeriodRatios, len(rs))
	for _, r := range rs {
		if _, seen := byPeriod[r.Period]; !seen {
			byPeriod[r.Period] = r
		}
	}

	out := []domain.PeriodRatios{}
	for _, p := range order {
		if r, ok := byPeriod[p]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Melt converts ratios into (period, indicator, value) tuples, periods in the
// given order and indicators in presentation order.
func Melt(rs []domain.PeriodRatios) []domain.Indicator {
	out := make([]domain.Indicator, 0, len(rs)*5)
	for _, r := range rs {
		out = append(out, r.Indicators()...)
	}
	return out
}

var liquidityIndicators = map[string]bool{
	domain.IndicatorCurrentRatio:     true,
	domain.IndicatorQuickRatio:       true,
	domain.IndicatorGeneralLiquidity: true,
}

// Liquidity is Melt restricted to the three liquidity indicators.
func Liquidity(rs []domain.PeriodRatios) []domain.Indicator {
	out := []domain.Indicator{}
	for _, ind := range Melt(rs) {
		if liquidityIndicators[ind.Name] {
			out = append(out, ind)
		}
	}
	return out
}

// Dashboard is everything the indicator views display.
type Dashboard struct {
	Ratios     []domain.PeriodRatios `json:"ratios"`
	Indicators []domain.Indicator    `json:"indicators"`
	Liquidity  []domain.Indicator    `json:"liquidity"`
}

// Build computes, orders and melts the ratios of records.
func Build(records []domain.AccountRecord) Dashboard {
	ordered := Order(ratios.Compute(records))
	return Dashboard{
		Ratios:     ordered,
		Indicators: Melt(ordered),
		Liquidity:  Liquidity(ordered),
	}
}
