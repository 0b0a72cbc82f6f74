package normalize

import "fmt"

// dailyRates is a stamped snapshot of units-per-USD, refreshed once a day
// by an out-of-tree job that rewrites this table; the Normalizer never
// calls out to a live FX feed mid-request so merges stay deterministic
// given the same inputs.
//
// Stamped 2026-08-06.
var dailyRates = map[string]float64{
	"USD": 1,
	"EUR": 0.92,
	"GBP": 0.79,
	"KRW": 1345.0,
	"JPY": 149.5,
	"TWD": 31.8,
	"AED": 3.67,
}

// ConvertAmount converts amount from currency `from` into currency `to`
// at the stamped daily rate, routing through USD. The original Price
// entry this is called on is never rewritten -- callers use the
// converted figure only for ranking/comparison.
func ConvertAmount(amount float64, from, to string) (float64, error) {
	if from == to {
		return amount, nil
	}
	fromRate, ok := dailyRates[from]
	if !ok {
		return 0, fmt.Errorf("normalize: no stamped rate for currency %q", from)
	}
	toRate, ok := dailyRates[to]
	if !ok {
		return 0, fmt.Errorf("normalize: no stamped rate for currency %q", to)
	}
	usd := amount / fromRate
	return usd * toRate, nil
}
