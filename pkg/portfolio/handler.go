package portfolio

import (
	"fmt"
	"time"

	"github.com/ridopark/notrade/pkg/event"
	"github.com/ridopark/notrade/pkg/logging"
	"github.com/rs/zerolog"
)

// SuggestedOrder is a signal that has not been turned into an order yet.
// Quantity stays zero until a PositionSizer fills it in.
type SuggestedOrder struct {
	Symbol    string
	Side      event.Side
	Quantity  float64
	Timestamp time.Time
}

// PositionSizer decides how much to trade for a suggestion. Implementations
// must not have side effects.
type PositionSizer interface {
	SizeOrder(portfolio View, order SuggestedOrder) SuggestedOrder
}

// RiskManager turns a sized suggestion into zero or more orders. It may split,
// scale or reject the suggestion.
type RiskManager interface {
	RefineOrders(portfolio View, order SuggestedOrder) []event.Order
}

// Handler routes signals through sizing and risk into orders and books fills
// into the portfolio.
type Handler struct {
	queue     *event.Queue
	portfolio *Portfolio
	sizer     PositionSizer
	risk      RiskManager
	logger    zerolog.Logger
}

// NewHandler creates a portfolio handler that pushes orders onto queue
func NewHandler(queue *event.Queue, portfolio *Portfolio, sizer PositionSizer, risk RiskManager) *Handler {
	return &Handler{
		queue:     queue,
		portfolio: portfolio,
		sizer:     sizer,
		risk:      risk,
		logger:    logging.GetLogger("portfolio_handler"),
	}
}

// OnSignal sizes and risk-checks a signal and queues the resulting orders in
// the order the risk manager produced them.
func (h *Handler) OnSignal(signal event.Signal) error {
	if !signal.Direction.Valid() {
		return fmt.Errorf("signal for %s has invalid direction %q", signal.Symbol, signal.Direction)
	}

	suggested := SuggestedOrder{
		Symbol:    signal.Symbol,
		Side:      signal.Direction.Side(),
		Timestamp: signal.Timestamp,
	}
	sized := h.sizer.SizeOrder(h.portfolio, suggested)
	orders := h.risk.RefineOrders(h.portfolio, sized)

	if len(orders) == 0 {
		h.logger.Warn().
			Str("symbol", signal.Symbol).
			Str("direction", string(signal.Direction)).
			Float64("sized_quantity", sized.Quantity).
			Msg("Signal produced no orders")
		return nil
	}

	for _, order := range orders {
		h.queue.Push(order)
		h.logger.Debug().
			Str("order_id", order.ID).
			Str("symbol", order.Symbol).
			Str("side", string(order.Side)).
			Float64("quantity", order.Quantity).
			Msg("Order placed")
	}
	return nil
}

// OnFill books a fill into the portfolio
func (h *Handler) OnFill(fill event.Fill) error {
	if err := h.portfolio.TransactPosition(fill.Side, fill.Symbol, fill.Quantity, fill.FillCost, fill.Commission); err != nil {
		return fmt.Errorf("failed to apply fill %s: %w", fill.ID, err)
	}
	return nil
}

// UpdatePortfolioValue revalues the portfolio at the given time
func (h *Handler) UpdatePortfolioValue(timestamp time.Time) HoldingsRecord {
	return h.portfolio.Revalue(timestamp)
}

// Portfolio returns the portfolio managed by this handler
func (h *Handler) Portfolio() *Portfolio {
	return h.portfolio
}
