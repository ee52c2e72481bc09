package examples

import (
	"fmt"

	"github.com/ridopark/notrade/pkg/event"
	"github.com/ridopark/notrade/pkg/strategy"
)

// MovingAverageCrossoverStrategy goes LONG when the short moving average
// crosses above the long one and SHORT when it crosses back below. Without
// allowShort a death cross only exits an open long. The held direction is
// read from the portfolio, so vetoed or unfilled orders leave it unchanged.
type MovingAverageCrossoverStrategy struct {
	*strategy.BaseStrategy
	shortPeriod int
	longPeriod  int
	allowShort  bool
}

// NewMovingAverageCrossoverStrategy creates a new moving average crossover strategy
func NewMovingAverageCrossoverStrategy(shortPeriod, longPeriod int, allowShort bool) (*MovingAverageCrossoverStrategy, error) {
	if shortPeriod < 1 || shortPeriod >= longPeriod {
		return nil, fmt.Errorf("short period %d must be positive and less than long period %d", shortPeriod, longPeriod)
	}

	base := strategy.NewBaseStrategy("MovingAverageCrossover", map[string]interface{}{
		"shortPeriod": shortPeriod,
		"longPeriod":  longPeriod,
		"allowShort":  allowShort,
	})

	return &MovingAverageCrossoverStrategy{
		BaseStrategy: base,
		shortPeriod:  shortPeriod,
		longPeriod:   longPeriod,
		allowShort:   allowShort,
	}, nil
}

// Initialize sets up the strategy
func (s *MovingAverageCrossoverStrategy) Initialize(ctx strategy.Context) error {
	if err := s.BaseStrategy.Initialize(ctx); err != nil {
		return err
	}
	ctx.Log("info", "Moving average windows", map[string]interface{}{
		"strategy":    s.GetName(),
		"shortPeriod": s.shortPeriod,
		"longPeriod":  s.longPeriod,
	})
	return nil
}

// CalculateSignals checks every symbol for a crossover between the previous
// and the current bar
func (s *MovingAverageCrossoverStrategy) CalculateSignals(ctx strategy.Context, market event.Market) ([]event.Signal, error) {
	var signals []event.Signal

	for _, symbol := range s.GetSymbols() {
		bars, err := ctx.GetLatestBars(symbol, s.longPeriod+1)
		if err != nil {
			return signals, err
		}
		// One extra bar is needed to see the previous averages
		if len(bars) < s.longPeriod+1 {
			continue
		}

		prevShort, _ := strategy.SMA(bars[:len(bars)-1], s.shortPeriod)
		prevLong, _ := strategy.SMA(bars[:len(bars)-1], s.longPeriod)
		currShort, _ := strategy.SMA(bars, s.shortPeriod)
		currLong, _ := strategy.SMA(bars, s.longPeriod)

		golden := prevShort <= prevLong && currShort > currLong
		death := prevShort >= prevLong && currShort < currLong

		held := heldDirection(ctx, symbol)
		switch {
		case golden && held != event.DirectionLong:
			// From short this covers and leaves the symbol flat
			signals = append(signals, s.NewSignal(symbol, event.DirectionLong, market.Timestamp))
		case death && held == event.DirectionLong:
			signals = append(signals, s.NewSignal(symbol, event.DirectionShort, market.Timestamp))
		case death && s.allowShort && held == "":
			signals = append(signals, s.NewSignal(symbol, event.DirectionShort, market.Timestamp))
		default:
			continue
		}

		ctx.Log("info", "Moving average crossover", map[string]interface{}{
			"symbol":  symbol,
			"price":   bars[len(bars)-1].Close,
			"shortMA": currShort,
			"longMA":  currLong,
			"golden":  golden,
		})
	}

	return signals, nil
}

// heldDirection is LONG or SHORT for an open position and empty when flat
func heldDirection(ctx strategy.Context, symbol string) event.Direction {
	position, ok := ctx.GetPosition(symbol)
	if !ok {
		return ""
	}
	return position.Direction()
}

// GetParameters returns the strategy parameters
func (s *MovingAverageCrossoverStrategy) GetParameters() map[string]interface{} {
	return map[string]interface{}{
		"shortPeriod": s.shortPeriod,
		"longPeriod":  s.longPeriod,
		"allowShort":  s.allowShort,
	}
}

var _ strategy.Strategy = (*MovingAverageCrossoverStrategy)(nil)
