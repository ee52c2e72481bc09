package portfolio

import (
	"math"

	"github.com/ridopark/notrade/pkg/event"
)

// exitQuantity returns the size needed to flatten a position held against the
// suggested side, or zero when there is nothing to exit.
func exitQuantity(view View, order SuggestedOrder) float64 {
	position, ok := view.Position(order.Symbol)
	if !ok || position.IsFlat() {
		return 0
	}
	if math.Signbit(position.Quantity) == math.Signbit(order.Side.Sign()) {
		return 0
	}
	return math.Abs(position.Quantity)
}

// FixedQuantitySizer trades a constant quantity, or exactly the held quantity
// when the suggestion runs against an open position.
type FixedQuantitySizer struct {
	Quantity float64
}

// NewFixedQuantitySizer creates a sizer trading quantity units per entry
func NewFixedQuantitySizer(quantity float64) *FixedQuantitySizer {
	return &FixedQuantitySizer{Quantity: quantity}
}

// SizeOrder implements PositionSizer
func (s *FixedQuantitySizer) SizeOrder(view View, order SuggestedOrder) SuggestedOrder {
	if exit := exitQuantity(view, order); exit > 0 {
		order.Quantity = exit
		return order
	}
	order.Quantity = s.Quantity
	return order
}

// SizingConfig configures CashFractionSizer
type SizingConfig struct {
	PositionSize    float64 `yaml:"position_size"`    // fraction of cash per entry (0.0-1.0)
	MinCashBuffer   float64 `yaml:"min_cash_buffer"`  // cash that is never committed
	SlippageBuffer  float64 `yaml:"slippage_buffer"`  // fraction held back for fees and slippage
	AllowFractional bool    `yaml:"allow_fractional"` // whether to allow fractional shares
}

// DefaultSizingConfig returns a sensible default configuration
func DefaultSizingConfig() SizingConfig {
	return SizingConfig{
		PositionSize:    0.95,
		MinCashBuffer:   100.0,
		SlippageBuffer:  0.02,
		AllowFractional: false,
	}
}

// CashFractionSizer commits a fraction of available cash to each entry.
// Exits are sized to the open quantity.
type CashFractionSizer struct {
	config SizingConfig
}

// NewCashFractionSizer creates a sizer with the given configuration
func NewCashFractionSizer(config SizingConfig) *CashFractionSizer {
	return &CashFractionSizer{config: config}
}

// SizeOrder implements PositionSizer
func (s *CashFractionSizer) SizeOrder(view View, order SuggestedOrder) SuggestedOrder {
	if exit := exitQuantity(view, order); exit > 0 {
		order.Quantity = exit
		return order
	}
	order.Quantity = 0

	cash := view.Cash()
	if cash <= s.config.MinCashBuffer {
		return order
	}
	tradableCash := (cash - s.config.MinCashBuffer) * (1.0 - s.config.SlippageBuffer)
	allocation := tradableCash * s.config.PositionSize

	bid, ask, err := view.Quote(order.Symbol)
	if err != nil {
		return order
	}
	price := ask
	if order.Side == event.SideSell {
		price = bid
	}
	if allocation <= 0 || price <= 0 {
		return order
	}

	quantity := allocation / price
	if !s.config.AllowFractional {
		quantity = math.Floor(quantity)
	}
	order.Quantity = math.Max(0, quantity)
	return order
}

var (
	_ PositionSizer = (*FixedQuantitySizer)(nil)
	_ PositionSizer = (*CashFractionSizer)(nil)
)
