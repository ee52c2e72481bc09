package backtester

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ridopark/notrade/pkg/event"
	"github.com/ridopark/notrade/pkg/feed"
)

// DefaultExchange tags fills produced by the simulated broker
const DefaultExchange = "ARCA"

// ErrOrderNotFilled is returned when the latest bar never reached a limit price
var ErrOrderNotFilled = errors.New("order not filled")

// ExecutionHandler turns orders into fills
type ExecutionHandler interface {
	ExecuteOrder(order event.Order) (event.Fill, error)
}

// BarSource provides the bar an order is executed against
type BarSource interface {
	LatestBar(symbol string) (feed.BarData, error)
}

// SimulatedBroker fills orders against the latest replayed bar
type SimulatedBroker struct {
	bars       BarSource
	commission CommissionFunc
	slippage   float64 // fraction of price, 0.001 = 10bp
	exchange   string
}

// NewSimulatedBroker creates a new simulated broker
func NewSimulatedBroker(bars BarSource, commission CommissionFunc, slippage float64) *SimulatedBroker {
	if commission == nil {
		commission = ZeroCommission
	}
	return &SimulatedBroker{
		bars:       bars,
		commission: commission,
		slippage:   slippage,
		exchange:   DefaultExchange,
	}
}

// ExecuteOrder fills a market order at the latest close moved against the
// trader by the slippage, or a limit order at its limit price when the latest
// bar traded through it.
func (b *SimulatedBroker) ExecuteOrder(order event.Order) (event.Fill, error) {
	bar, err := b.bars.LatestBar(order.Symbol)
	if err != nil {
		return event.Fill{}, fmt.Errorf("no bar to execute %s: %w", order, err)
	}

	var fillPrice float64

	switch order.Type {
	case event.OrderTypeMarket:
		if order.Side == event.SideBuy {
			fillPrice = bar.Close * (1 + b.slippage)
		} else {
			fillPrice = bar.Close * (1 - b.slippage)
		}

	case event.OrderTypeLimit:
		if order.Side == event.SideBuy {
			if bar.Low > order.Price {
				return event.Fill{}, fmt.Errorf("%w: limit buy %s at %f above low %f", ErrOrderNotFilled, order.Symbol, order.Price, bar.Low)
			}
		} else {
			if bar.High < order.Price {
				return event.Fill{}, fmt.Errorf("%w: limit sell %s at %f below high %f", ErrOrderNotFilled, order.Symbol, order.Price, bar.High)
			}
		}
		fillPrice = order.Price

	default:
		return event.Fill{}, fmt.Errorf("unsupported order type: %s", order.Type)
	}

	return event.Fill{
		ID:         uuid.NewString(),
		OrderID:    order.ID,
		Timestamp:  bar.Timestamp,
		Symbol:     order.Symbol,
		Exchange:   b.exchange,
		Quantity:   order.Quantity,
		Side:       order.Side,
		FillCost:   fillPrice,
		Commission: b.commission(order.Quantity, fillPrice),
	}, nil
}

var _ ExecutionHandler = (*SimulatedBroker)(nil)
