package domain

import (
	"github.com/shopspring/decimal"
)

// AccountRecord is one cleaned balance-sheet line.
// Account is trimmed and lower-cased; Value is never missing. Rows that
// cannot satisfy both are dropped during normalization, not stored.
type AccountRecord struct {
	Account string          `json:"account"`
	Value   decimal.Decimal `json:"value"`
	Period  Period          `json:"period"`
}

// Category is one of the balance-sheet groups the ratios are built from.
type Category string

const (
	CategoryCurrentAssets         Category = "current_assets"
	CategoryCurrentLiabilities    Category = "current_liabilities"
	CategoryNoncurrentLiabilities Category = "noncurrent_liabilities"
	CategoryEquity                Category = "equity"
	CategoryInventory             Category = "inventory"
	CategoryFixedAssets           Category = "fixed_assets"
)

// PeriodRatios holds the derived indicators for one reporting month.
// It is recomputed from stored records on every read and never persisted.
type PeriodRatios struct {
	Period           Period          `json:"period"`
	CurrentRatio     decimal.Decimal `json:"current_ratio"`
	QuickRatio       decimal.Decimal `json:"quick_ratio"`
	GeneralLiquidity decimal.Decimal `json:"general_liquidity"`
	DebtRatio        decimal.Decimal `json:"debt_ratio"`
	FixedAssetRatio  decimal.Decimal `json:"fixed_asset_ratio"`
}

// Indicator display names, in presentation order.
const (
	IndicatorCurrentRatio     = "Current Ratio"
	IndicatorQuickRatio       = "Quick Ratio"
	IndicatorGeneralLiquidity = "General Liquidity"
	IndicatorDebtRatio        = "Debt Ratio"
	IndicatorFixedAssetRatio  = "Fixed Asset Ratio"
)

// Indicator is one (period, indicator, value) tuple of the long-form view.
type Indicator struct {
	Period Period          `json:"period"`
	Name   string          `json:"indicator"`
	Value  decimal.Decimal `json:"value"`
}

// Indicators flattens r into its named values, in presentation order.
func (r PeriodRatios) Indicators() []Indicator {
	return []Indicator{
		{Period: r.Period, Name: IndicatorCurrentRatio, Value: r.CurrentRatio},
		{Period: r.Period, Name: IndicatorQuickRatio, Value: r.QuickRatio},
		{Period: r.Period, Name: IndicatorGeneralLiquidity, Value: r.GeneralLiquidity},
		{Period: r.Period, Name: IndicatorDebtRatio, Value: r.DebtRatio},
		{Period: r.Period, Name: IndicatorFixedAssetRatio, Value: r.FixedAssetRatio},
	}
}
