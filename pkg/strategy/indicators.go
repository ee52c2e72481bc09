package strategy

import (
	"fmt"

	"github.com/ridopark/notrade/pkg/feed"
	"gonum.org/v1/gonum/stat"
)

// SMA returns the simple moving average of the closes of the last period bars
func SMA(bars []feed.BarData, period int) (float64, error) {
	if period < 1 {
		return 0, fmt.Errorf("invalid SMA period %d", period)
	}
	if len(bars) < period {
		return 0, fmt.Errorf("%w: SMA(%d) needs %d bars, have %d", ErrInsufficientData, period, period, len(bars))
	}

	closes := make([]float64, period)
	for i, bar := range bars[len(bars)-period:] {
		closes[i] = bar.Close
	}
	return stat.Mean(closes, nil), nil
}
