// Package performance computes risk statistics from equity curves and return
// series. Every function is pure and safe for concurrent use.
package performance

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// minStdDev is the deviation below which a series is treated as constant
const minStdDev = 1e-12

// Periods per year for common bar timeframes
const (
	PeriodsDaily  = 252.0
	PeriodsHourly = 252.0 * 6.5
	PeriodsMinute = 252.0 * 6.5 * 60
)

// Returns converts an equity series into simple period returns. The result has
// the same length as equity and its first element is 0. A period that starts
// from zero equity has return 0.
func Returns(equity []float64) []float64 {
	returns := make([]float64, len(equity))
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		returns[i] = equity[i]/equity[i-1] - 1
	}
	return returns
}

// CumulativeCurve compounds period returns into an equity curve starting at 1
func CumulativeCurve(returns []float64) []float64 {
	curve := make([]float64, len(returns))
	acc := 1.0
	for i, r := range returns {
		acc *= 1 + r
		curve[i] = acc
	}
	return curve
}

// SharpeRatio returns the annualized Sharpe ratio of returns assuming a zero
// risk-free rate: sqrt(periods) * mean / stdev, with the population standard
// deviation. It returns NaN when returns is empty or has zero variance.
func SharpeRatio(returns []float64, periods float64) float64 {
	if len(returns) == 0 {
		return math.NaN()
	}
	mean, std := stat.PopMeanStdDev(returns, nil)
	if std < minStdDev || math.IsNaN(std) {
		return math.NaN()
	}
	return math.Sqrt(periods) * mean / std
}

// SortinoRatio is SharpeRatio with the downside deviation (root mean square of
// negative returns over all periods) in the denominator. It returns NaN when
// there are no losing periods.
func SortinoRatio(returns []float64, periods float64) float64 {
	if len(returns) == 0 {
		return math.NaN()
	}
	mean := stat.Mean(returns, nil)

	sumDownside := 0.0
	for _, r := range returns {
		if r < 0 {
			sumDownside += r * r
		}
	}
	downside := math.Sqrt(sumDownside / float64(len(returns)))
	if downside < minStdDev {
		return math.NaN()
	}
	return math.Sqrt(periods) * mean / downside
}

// DrawdownAndDuration returns the largest drop of equity below its running
// high-water mark and the longest run of consecutive periods spent below it.
// The high-water mark starts at the first value, so the first drawdown is 0.
func DrawdownAndDuration(equity []float64) (float64, int) {
	if len(equity) == 0 {
		return 0, 0
	}

	hwm := equity[0]
	maxDrawdown := 0.0
	duration, maxDuration := 0, 0
	for _, value := range equity[1:] {
		hwm = math.Max(hwm, value)
		drawdown := hwm - value
		if drawdown == 0 {
			duration = 0
		} else {
			duration++
		}
		maxDrawdown = math.Max(maxDrawdown, drawdown)
		if duration > maxDuration {
			maxDuration = duration
		}
	}
	return maxDrawdown, maxDuration
}
