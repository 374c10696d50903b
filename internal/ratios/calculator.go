// Package ratios classifies account records and derives liquidity and
// indebtedness ratios per reporting period.
package ratios

import (
	"github.com/shopspring/decimal"

	"github.com/dvloznov/balance-indicators/internal/domain"
)

// Totals holds the summed value of each category for one period.
type Totals map[domain.Category]decimal.Decimal

// Get returns the total for c, zero when no account matched it.
func (t Totals) Get(c domain.Category) decimal.Decimal {
	if v, ok := t[c]; ok {
		return v
	}
	return decimal.Zero
}

// PeriodTotals pairs a period with its category totals.
type PeriodTotals struct {
	Period domain.Period
	Totals Totals
}

// Calculator applies a rules table to records.
type Calculator struct {
	rules []Rule
}

// NewCalculator creates a Calculator over rules. A nil table means
// DefaultRules.
func NewCalculator(rules []Rule) *Calculator {
	if rules == nil {
		rules = DefaultRules
	}
	return &Calculator{rules: rules}
}

// Aggregate sums record values per period and category. Periods are returned
// in order of first appearance.
func (c *Calculator) Aggregate(records []domain.AccountRecord) []PeriodTotals {
	var out []PeriodTotals
	index := make(map[domain.Period]int)

	for _, rec := range records {
		i, ok := index[rec.Period]
		if !ok {
			i = len(out)
			index[rec.Period] = i
			out = append(out, PeriodTotals{Period: rec.Period, Totals: Totals{}})
		}

		totals := out[i].Totals
		for _, rule := range c.rules {
			if rule.Match(rec.Account) {
				totals[rule.Category] = totals.Get(rule.Category).Add(rec.Value)
			}
		}
	}

	return out
}

// Compute derives the ratios of every period present in records.
func (c *Calculator) Compute(records []domain.AccountRecord) []domain.PeriodRatios {
	aggregated := c.Aggregate(records)
	out := make([]domain.PeriodRatios, 0, len(aggregated))
	for _, pt := range aggregated {
		out = append(out, FromTotals(pt.Period, pt.Totals))
	}
	return out
}

// Compute derives ratios with DefaultRules.
func Compute(records []domain.AccountRecord) []domain.PeriodRatios {
	return NewCalculator(nil).Compute(records)
}

// FromTotals applies the ratio formulas to one period's totals.
func FromTotals(period domain.Period, t Totals) domain.PeriodRatios {
	ca := t.Get(domain.CategoryCurrentAssets)
	cl := t.Get(domain.CategoryCurrentLiabilities)
	ncl := t.Get(domain.CategoryNoncurrentLiabilities)
	eq := t.Get(domain.CategoryEquity)
	inv := t.Get(domain.CategoryInventory)
	fa := t.Get(domain.CategoryFixedAssets)

	liabilities := cl.Add(ncl)

	return domain.PeriodRatios{
		Period:           period,
		CurrentRatio:     safeDiv(ca, cl),
		QuickRatio:       safeDiv(ca.Sub(inv), cl),
		GeneralLiquidity: safeDiv(ca, liabilities),
		DebtRatio:        safeDiv(cl, liabilities),
		FixedAssetRatio:  safeDiv(fa, eq),
	}
}

// safeDiv returns zero when the divisor is not positive.
// TODO: surface undefined ratios as absent instead of zero once the API
// schema can carry nulls.
func safeDiv(num, den decimal.Decimal) decimal.Decimal {
	if !den.IsPositive() {
		return decimal.Zero
	}
	return num.Div(den)
}
