// Package amount parses balance-sheet values written in the Brazilian
// locale, where "." groups thousands and "," separates decimals.
package amount

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrEmpty is returned for a token that is blank after trimming.
	ErrEmpty = errors.New("amount: empty value")

	// ErrMalformed is returned when the cleaned token is not a number.
	ErrMalformed = errors.New("amount: malformed value")
)

// Result is the outcome of parsing one token. Value is meaningful only when
// Err is nil.
type Result struct {
	Value decimal.Decimal
	Err   error
}

// OK reports whether the token parsed to a number.
func (r Result) OK() bool {
	return r.Err == nil
}

// Parse converts a token such as "1.234,56" into 1234.56.
// Every "." is removed and every "," becomes the decimal point, so a token
// with more than one comma fails to parse.
func Parse(token string) Result {
	s := strings.TrimSpace(token)
	if s == "" {
		return Result{Err: ErrEmpty}
	}

	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")

	v, err := decimal.NewFromString(s)
	if err != nil {
		return Result{Err: fmt.Errorf("%w %q: %v", ErrMalformed, token, err)}
	}
	return Result{Value: v}
}
