package ratios

import (
	"strings"

	"github.com/dvloznov/balance-indicators/internal/domain"
)

// Matcher reports whether an account label belongs to a category.
type Matcher func(account string) bool

// Rule assigns accounts to a category.
type Rule struct {
	Category domain.Category
	Match    Matcher
}

// Contains matches accounts whose normalized label contains keyword.
func Contains(keyword string) Matcher {
	return func(account string) bool {
		return strings.Contains(canonical(account), keyword)
	}
}

// Equals matches accounts whose normalized label is exactly label.
func Equals(label string) Matcher {
	return func(account string) bool {
		return canonical(account) == label
	}
}

// DefaultRules is the classification table. Rules are independent filters:
// one account may satisfy several of them and is then summed into each.
// Fixed assets match on the exact label only.
var DefaultRules = []Rule{
	{Category: domain.CategoryCurrentAssets, Match: Contains("ativo circulante")},
	{Category: domain.CategoryCurrentLiabilities, Match: Contains("passivo circulante")},
	{Category: domain.CategoryNoncurrentLiabilities, Match: Contains("passivo não circulante")},
	{Category: domain.CategoryEquity, Match: Contains("patrimonio liquido")},
	{Category: domain.CategoryInventory, Match: Contains("estoque para venda")},
	{Category: domain.CategoryFixedAssets, Match: Equals("imobilizado")},
}

func canonical(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}
