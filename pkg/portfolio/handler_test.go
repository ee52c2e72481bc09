package portfolio

import (
	"testing"

	"github.com/ridopark/notrade/pkg/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// splitRisk splits every order into a market and a limit order
type splitRisk struct{}

func (splitRisk) RefineOrders(_ View, order SuggestedOrder) []event.Order {
	half := order.Quantity / 2
	return []event.Order{
		event.NewMarketOrder(order.Symbol, order.Side, half, order.Timestamp),
		event.NewLimitOrder(order.Symbol, order.Side, order.Quantity-half, 1, order.Timestamp),
	}
}

// recordingSizer remembers what it was asked to size
type recordingSizer struct {
	seen []SuggestedOrder
}

func (r *recordingSizer) SizeOrder(_ View, order SuggestedOrder) SuggestedOrder {
	r.seen = append(r.seen, order)
	order.Quantity = 10
	return order
}

func TestOnSignalQueuesSizedOrder(t *testing.T) {
	t.Parallel()
	q := event.NewQueue()
	sizer := &recordingSizer{}
	h := NewHandler(q, newTestPortfolio(stubPrices{"A": 10}), sizer, NaiveRiskManager{})

	require.NoError(t, h.OnSignal(event.Signal{Symbol: "A", Timestamp: ts(1), Direction: event.DirectionShort}))

	require.Len(t, sizer.seen, 1)
	assert.Zero(t, sizer.seen[0].Quantity, "suggestions reach the sizer unsized")
	assert.Equal(t, event.SideSell, sizer.seen[0].Side)

	require.Equal(t, 1, q.Len())
	order, ok := q.Pop().(event.Order)
	require.True(t, ok)
	assert.Equal(t, "A", order.Symbol)
	assert.Equal(t, event.SideSell, order.Side)
	assert.Equal(t, 10.0, order.Quantity)
	assert.Equal(t, event.OrderTypeMarket, order.Type)
	assert.Equal(t, ts(1), order.Timestamp)
}

func TestOnSignalKeepsRiskManagerOrdering(t *testing.T) {
	t.Parallel()
	q := event.NewQueue()
	h := NewHandler(q, newTestPortfolio(stubPrices{"A": 10}), NewFixedQuantitySizer(100), splitRisk{})

	require.NoError(t, h.OnSignal(event.Signal{Symbol: "A", Direction: event.DirectionLong}))
	require.Equal(t, 2, q.Len())
	first := q.Pop().(event.Order)
	second := q.Pop().(event.Order)
	assert.Equal(t, event.OrderTypeMarket, first.Type)
	assert.Equal(t, event.OrderTypeLimit, second.Type)
}

func TestOnSignalVeto(t *testing.T) {
	t.Parallel()
	q := event.NewQueue()
	h := NewHandler(q, newTestPortfolio(stubPrices{"A": 10}), NewFixedQuantitySizer(0), NaiveRiskManager{})

	require.NoError(t, h.OnSignal(event.Signal{Symbol: "A", Direction: event.DirectionLong}))
	assert.True(t, q.IsEmpty())

	assert.Error(t, h.OnSignal(event.Signal{Symbol: "A", Direction: "SIDEWAYS"}))
}

func TestOnFillBooksTransaction(t *testing.T) {
	t.Parallel()
	h := NewHandler(event.NewQueue(), newTestPortfolio(stubPrices{"A": 10}), NewFixedQuantitySizer(1), NaiveRiskManager{})

	require.NoError(t, h.OnFill(event.Fill{Symbol: "A", Side: event.SideBuy, Quantity: 100, FillCost: 10, Commission: 1.3}))
	assert.InDelta(t, 100000-1001.3, h.Portfolio().Cash(), tolerance)

	err := h.OnFill(event.Fill{ID: "bad", Symbol: "A", Side: event.SideSell, Quantity: 0, FillCost: 10})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.InDelta(t, 100000-1001.3, h.Portfolio().Cash(), tolerance)

	record := h.UpdatePortfolioValue(ts(2))
	assert.InDelta(t, 1000.0, record.Holdings["A"], tolerance)
}

func TestFixedQuantitySizerExitsOpenPosition(t *testing.T) {
	t.Parallel()
	p := newTestPortfolio(stubPrices{"A": 10})
	require.NoError(t, p.TransactPosition(event.SideBuy, "A", 37, 10, 0))
	sizer := NewFixedQuantitySizer(100)

	exit := sizer.SizeOrder(p, SuggestedOrder{Symbol: "A", Side: event.SideSell})
	assert.Equal(t, 37.0, exit.Quantity)

	add := sizer.SizeOrder(p, SuggestedOrder{Symbol: "A", Side: event.SideBuy})
	assert.Equal(t, 100.0, add.Quantity)

	fresh := sizer.SizeOrder(p, SuggestedOrder{Symbol: "B", Side: event.SideSell})
	assert.Equal(t, 100.0, fresh.Quantity)
}

func TestCashFractionSizer(t *testing.T) {
	t.Parallel()
	p := newTestPortfolio(stubPrices{"A": 30})
	cfg := DefaultSizingConfig()
	sizer := NewCashFractionSizer(cfg)

	order := sizer.SizeOrder(p, SuggestedOrder{Symbol: "A", Side: event.SideBuy})
	// (100000-100) * 0.98 * 0.95 / 30 = 3100.23...
	assert.Equal(t, 3100.0, order.Quantity)

	cfg.AllowFractional = true
	order = NewCashFractionSizer(cfg).SizeOrder(p, SuggestedOrder{Symbol: "A", Side: event.SideBuy})
	assert.InDelta(t, 99900*0.98*0.95/30, order.Quantity, tolerance)

	order = sizer.SizeOrder(p, SuggestedOrder{Symbol: "ZZZ", Side: event.SideBuy})
	assert.Zero(t, order.Quantity, "no quote, no size")

	poor := New(stubPrices{"A": 30}, nil, 50)
	order = sizer.SizeOrder(poor, SuggestedOrder{Symbol: "A", Side: event.SideBuy})
	assert.Zero(t, order.Quantity, "cash under buffer")
}

func TestMaxExposureRiskManager(t *testing.T) {
	t.Parallel()
	p := newTestPortfolio(stubPrices{"A": 10})
	risk := MaxExposureRiskManager{MaxFraction: 0.1, WholeUnits: true}

	orders := risk.RefineOrders(p, SuggestedOrder{Symbol: "A", Side: event.SideBuy, Quantity: 5000})
	require.Len(t, orders, 1)
	assert.Equal(t, 1000.0, orders[0].Quantity, "10% of 100000 at 10")

	require.NoError(t, p.TransactPosition(event.SideBuy, "A", 800, 10, 0))
	orders = risk.RefineOrders(p, SuggestedOrder{Symbol: "A", Side: event.SideBuy, Quantity: 500})
	require.Len(t, orders, 1)
	assert.Equal(t, 200.0, orders[0].Quantity)

	orders = risk.RefineOrders(p, SuggestedOrder{Symbol: "A", Side: event.SideSell, Quantity: 800})
	require.Len(t, orders, 1)
	assert.Equal(t, 800.0, orders[0].Quantity, "reductions pass unchanged")

	orders = risk.RefineOrders(p, SuggestedOrder{Symbol: "A", Side: event.SideSell, Quantity: 5000})
	require.Len(t, orders, 1)
	assert.Equal(t, 1800.0, orders[0].Quantity, "flip capped at held + limit")

	assert.Empty(t, risk.RefineOrders(p, SuggestedOrder{Symbol: "A", Side: event.SideBuy}))
}
