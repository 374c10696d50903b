package ratios

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/balance-indicators/internal/domain"
)

// CompositionKeywords select the accounts shown in the current-asset
// composition of a period.
var CompositionKeywords = []string{
	"caixa",
	"banco",
	"aplicação financeira",
	"contas a receber",
	"estoque para venda",
}

// CompositionSlice is one account's share of the current-asset composition.
type CompositionSlice struct {
	Account string          `json:"account"`
	Value   decimal.Decimal `json:"value"`
}

// Composition returns the records of period whose account mentions any of
// CompositionKeywords, in record order.
func Composition(records []domain.AccountRecord, period domain.Period) []CompositionSlice {
	out := []CompositionSlice{}
	for _, rec := range records {
		if rec.Period != period || !mentionsAny(rec.Account, CompositionKeywords) {
			continue
		}
		out = append(out, CompositionSlice{Account: rec.Account, Value: rec.Value})
	}
	return out
}

func mentionsAny(account string, keywords []string) bool {
	a := canonical(account)
	for _, k := range keywords {
		if strings.Contains(a, k) {
			return true
		}
	}
	return false
}
