package examples

import (
	"github.com/ridopark/notrade/pkg/event"
	"github.com/ridopark/notrade/pkg/strategy"
)

// BuyAndHoldStrategy goes long every symbol once, on the first market event
// where that symbol has a bar, and never exits
type BuyAndHoldStrategy struct {
	*strategy.BaseStrategy
	hasBought map[string]bool
}

// NewBuyAndHoldStrategy creates a new buy-and-hold strategy. With no symbols
// it trades every symbol the data handler replays.
func NewBuyAndHoldStrategy(symbols []string) *BuyAndHoldStrategy {
	base := strategy.NewBaseStrategy("BuyAndHold", map[string]interface{}{
		"symbols": symbols,
	})
	base.SetSymbols(symbols)

	return &BuyAndHoldStrategy{
		BaseStrategy: base,
		hasBought:    make(map[string]bool),
	}
}

// Initialize sets up the strategy
func (s *BuyAndHoldStrategy) Initialize(ctx strategy.Context) error {
	if err := s.BaseStrategy.Initialize(ctx); err != nil {
		return err
	}
	for _, symbol := range s.GetSymbols() {
		s.hasBought[symbol] = false
	}
	return nil
}

// CalculateSignals emits one LONG per symbol the first time it has data
func (s *BuyAndHoldStrategy) CalculateSignals(ctx strategy.Context, market event.Market) ([]event.Signal, error) {
	var signals []event.Signal

	for _, symbol := range s.GetSymbols() {
		if s.hasBought[symbol] {
			continue
		}
		bars, err := ctx.GetLatestBars(symbol, 1)
		if err != nil {
			return signals, err
		}
		if len(bars) == 0 {
			continue
		}

		signals = append(signals, s.NewSignal(symbol, event.DirectionLong, market.Timestamp))
		s.hasBought[symbol] = true

		ctx.Log("info", "Buying and holding", map[string]interface{}{
			"symbol": symbol,
			"price":  bars[0].Close,
		})
	}

	return signals, nil
}

var _ strategy.Strategy = (*BuyAndHoldStrategy)(nil)
