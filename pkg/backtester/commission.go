package backtester

import (
	"github.com/shopspring/decimal"
)

// CommissionFunc returns the commission charged for trading quantity units at price
type CommissionFunc func(quantity, price float64) float64

var (
	ibMinimum     = decimal.RequireFromString("1.30")
	ibSmallRate   = decimal.RequireFromString("0.013")
	ibLargeRate   = decimal.RequireFromString("0.008")
	ibMaxFraction = decimal.RequireFromString("0.005")
	ibSmallCutoff = decimal.NewFromInt(500)
)

// IBCommission applies the Interactive Brokers US API fixed-rate schedule:
// 0.013 per share up to 500 shares and 0.008 above, at least 1.30 per order,
// never more than 0.5% of the trade value. Results are rounded to cents.
func IBCommission(quantity, price float64) float64 {
	q := decimal.NewFromFloat(quantity).Abs()
	p := decimal.NewFromFloat(price).Abs()

	rate := ibSmallRate
	if q.GreaterThan(ibSmallCutoff) {
		rate = ibLargeRate
	}
	full := decimal.Max(ibMinimum, rate.Mul(q))
	ceiling := ibMaxFraction.Mul(q).Mul(p)

	return decimal.Min(full, ceiling).Round(2).InexactFloat64()
}

// ZeroCommission charges nothing
func ZeroCommission(float64, float64) float64 {
	return 0
}

// PercentageCommission charges rate times the traded value, rounded to cents
func PercentageCommission(rate float64) CommissionFunc {
	r := decimal.NewFromFloat(rate)
	return func(quantity, price float64) float64 {
		value := decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(price)).Abs()
		return value.Mul(r).Round(2).InexactFloat64()
	}
}
