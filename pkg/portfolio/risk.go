package portfolio

import (
	"math"

	"github.com/ridopark/notrade/pkg/event"
)

// NaiveRiskManager turns every sized suggestion into a single market order and
// drops suggestions with no quantity.
type NaiveRiskManager struct{}

// RefineOrders implements RiskManager
func (NaiveRiskManager) RefineOrders(_ View, order SuggestedOrder) []event.Order {
	if order.Quantity <= 0 {
		return nil
	}
	return []event.Order{event.NewMarketOrder(order.Symbol, order.Side, order.Quantity, order.Timestamp)}
}

// MaxExposureRiskManager scales entries down so that no single position is
// worth more than MaxFraction of equity. Orders that reduce a position pass
// unchanged.
type MaxExposureRiskManager struct {
	MaxFraction float64
	WholeUnits  bool
}

// RefineOrders implements RiskManager
func (r MaxExposureRiskManager) RefineOrders(view View, order SuggestedOrder) []event.Order {
	if order.Quantity <= 0 {
		return nil
	}

	held := 0.0
	if position, ok := view.Position(order.Symbol); ok {
		held = position.Quantity
	}
	after := held + order.Side.Sign()*order.Quantity
	if math.Abs(after) <= math.Abs(held) {
		return NaiveRiskManager{}.RefineOrders(view, order)
	}

	bid, ask, err := view.Quote(order.Symbol)
	if err != nil {
		return nil
	}
	price := (bid + ask) / 2
	if price <= 0 {
		return nil
	}

	limit := r.MaxFraction * view.Equity() / price
	allowed := limit - math.Abs(after) + order.Quantity
	// Crossing zero frees the held quantity before the new leg counts
	if math.Signbit(after) != math.Signbit(held) && held != 0 {
		allowed = limit + math.Abs(held)
	}
	if allowed < order.Quantity {
		order.Quantity = math.Max(0, allowed)
	}
	if r.WholeUnits {
		order.Quantity = math.Floor(order.Quantity)
	}
	return NaiveRiskManager{}.RefineOrders(view, order)
}

var (
	_ RiskManager = NaiveRiskManager{}
	_ RiskManager = MaxExposureRiskManager{}
)
