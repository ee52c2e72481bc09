package portfolio

import (
	"math"
	"math/rand"
	"testing"

	"github.com/ridopark/notrade/pkg/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-6

func assertPositionInvariants(t *testing.T, p *Position) {
	t.Helper()
	assert.InDelta(t, p.Buys-p.Sells, p.Quantity, tolerance, "net quantity")
	assert.InDelta(t, p.Quantity*p.AvgPrice, p.CostBasis, tolerance, "cost basis")
	assert.InDelta(t, p.MarketValue-p.CostBasis, p.UnrealizedPnL, tolerance, "unrealized pnl")
	assert.InDelta(t, p.TotalSold-p.TotalBought, p.NetTotal, tolerance, "net total")
}

func TestNewPositionLongFoldsCommissionIntoCost(t *testing.T) {
	t.Parallel()
	p, err := NewPosition(event.SideBuy, "A", 100, 10, 1.3, 10, 10)
	require.NoError(t, err)

	assert.Equal(t, 100.0, p.Quantity)
	assert.InDelta(t, 10.013, p.AvgPrice, tolerance)
	assert.InDelta(t, 1001.3, p.CostBasis, tolerance)
	assert.InDelta(t, 1000.0, p.MarketValue, tolerance)
	assert.InDelta(t, -1.3, p.UnrealizedPnL, tolerance)
	assert.Zero(t, p.RealizedPnL)
	assert.Equal(t, 1.3, p.TotalCommission)
	assert.True(t, p.IsLong())
	assert.Equal(t, event.DirectionLong, p.Direction())
	assertPositionInvariants(t, p)
}

func TestNewPositionShortLowersProceeds(t *testing.T) {
	t.Parallel()
	p, err := NewPosition(event.SideSell, "A", 100, 10, 1.3, 9.9, 10.1)
	require.NoError(t, err)

	assert.Equal(t, -100.0, p.Quantity)
	assert.InDelta(t, 9.987, p.AvgPrice, tolerance)
	assert.InDelta(t, -998.7, p.CostBasis, tolerance)
	assert.InDelta(t, -1000.0, p.MarketValue, tolerance)
	assert.InDelta(t, -1.3, p.UnrealizedPnL, tolerance)
	assert.InDelta(t, 10.0, p.MarkPrice(), tolerance)
	assert.True(t, p.IsShort())
	assertPositionInvariants(t, p)
}

func TestInvalidTransactions(t *testing.T) {
	t.Parallel()
	for _, q := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		_, err := NewPosition(event.SideBuy, "A", q, 10, 0, 10, 10)
		assert.ErrorIs(t, err, ErrInvalidQuantity, "quantity %v", q)
	}
	for _, price := range []float64{0, -10, math.NaN(), math.Inf(1)} {
		_, err := NewPosition(event.SideBuy, "A", 1, price, 0, 10, 10)
		assert.ErrorIs(t, err, ErrInvalidPrice, "price %v", price)
	}
	for _, commission := range []float64{-0.01, math.NaN(), math.Inf(1)} {
		_, err := NewPosition(event.SideBuy, "A", 1, 10, commission, 10, 10)
		assert.ErrorIs(t, err, ErrInvalidCommission, "commission %v", commission)
	}
	_, err := NewPosition(event.Side("HOLD"), "A", 1, 10, 0, 10, 10)
	assert.ErrorIs(t, err, ErrInvalidSide)

	p, err := NewPosition(event.SideBuy, "A", 10, 10, 0, 10, 10)
	require.NoError(t, err)
	before := *p
	assert.ErrorIs(t, p.Transact(event.SideSell, 0, 11, 1), ErrInvalidQuantity)
	assert.ErrorIs(t, p.Transact(event.SideSell, 5, math.NaN(), 1), ErrInvalidPrice)
	assert.ErrorIs(t, p.Transact(event.SideSell, 5, 11, -1), ErrInvalidCommission)
	assert.Equal(t, before, *p, "failed transaction must not mutate the position")
}

func TestRoundTripAtSamePriceRealizesNothing(t *testing.T) {
	t.Parallel()
	p, err := NewPosition(event.SideBuy, "A", 100, 10, 0, 10, 10)
	require.NoError(t, err)
	require.NoError(t, p.Transact(event.SideSell, 100, 10, 0))

	assert.True(t, p.IsFlat())
	assert.Zero(t, p.RealizedPnL)
	assert.Zero(t, p.CostBasis)
	assert.Zero(t, p.MarketValue)
	assertPositionInvariants(t, p)
}

func TestExtendAveragesCost(t *testing.T) {
	t.Parallel()
	p, err := NewPosition(event.SideBuy, "A", 100, 10, 0, 10, 10)
	require.NoError(t, err)
	require.NoError(t, p.Transact(event.SideBuy, 100, 12, 2))

	assert.Equal(t, 200.0, p.Quantity)
	assert.InDelta(t, 11.01, p.AvgPrice, tolerance)
	assert.InDelta(t, 11.0, p.AvgBought, tolerance)
	assert.Zero(t, p.RealizedPnL, "extending never realizes")
	assertPositionInvariants(t, p)
}

func TestPartialCloseRealizesProportionally(t *testing.T) {
	t.Parallel()
	p, err := NewPosition(event.SideBuy, "A", 100, 10, 1, 10, 10)
	require.NoError(t, err)
	require.NoError(t, p.Transact(event.SideSell, 40, 12, 0.4))

	assert.Equal(t, 60.0, p.Quantity)
	assert.InDelta(t, 10.01, p.AvgPrice, tolerance, "average cost is kept on reduction")
	assert.InDelta(t, 40*(12-10.01)-0.4, p.RealizedPnL, tolerance)
	assertPositionInvariants(t, p)
}

func TestFlipLongToShort(t *testing.T) {
	t.Parallel()
	p, err := NewPosition(event.SideBuy, "A", 100, 10, 0, 10, 10)
	require.NoError(t, err)
	require.NoError(t, p.Transact(event.SideSell, 150, 12, 0))

	assert.InDelta(t, 200.0, p.RealizedPnL, tolerance)
	assert.Equal(t, -50.0, p.Quantity)
	assert.InDelta(t, 12.0, p.AvgPrice, tolerance)
	assert.InDelta(t, -600.0, p.CostBasis, tolerance)
	assert.Equal(t, event.DirectionShort, p.Direction())
	assertPositionInvariants(t, p)
}

func TestFlipSplitsCommission(t *testing.T) {
	t.Parallel()
	p, err := NewPosition(event.SideBuy, "A", 100, 10, 1, 10, 10)
	require.NoError(t, err)
	require.NoError(t, p.Transact(event.SideSell, 150, 12, 1.5))

	// 100/150 of the commission closes the long, 50/150 opens the short
	assert.InDelta(t, 100*(12-10.01)-1.0, p.RealizedPnL, tolerance)
	assert.Equal(t, -50.0, p.Quantity)
	assert.InDelta(t, (12*50-0.5)/50, p.AvgPrice, tolerance)
	assert.InDelta(t, 2.5, p.TotalCommission, tolerance)
	assertPositionInvariants(t, p)
}

func TestFlipShortToLong(t *testing.T) {
	t.Parallel()
	p, err := NewPosition(event.SideSell, "A", 50, 20, 0, 20, 20)
	require.NoError(t, err)
	require.NoError(t, p.Transact(event.SideBuy, 80, 18, 0))

	assert.InDelta(t, 50*(20-18), p.RealizedPnL, tolerance)
	assert.Equal(t, 30.0, p.Quantity)
	assert.InDelta(t, 18.0, p.AvgPrice, tolerance)
	assertPositionInvariants(t, p)
}

func TestMarkToMarketIsIdempotent(t *testing.T) {
	t.Parallel()
	p, err := NewPosition(event.SideBuy, "A", 10, 10, 0, 10, 10)
	require.NoError(t, err)

	p.MarkToMarket(11, 13)
	first := *p
	p.MarkToMarket(11, 13)
	assert.Equal(t, first, *p)
	assert.InDelta(t, 120.0, p.MarketValue, tolerance)
	assert.InDelta(t, 20.0, p.UnrealizedPnL, tolerance)
	assert.Zero(t, p.RealizedPnL)
}

// Random buy/sell sequences must keep the accounting identities and reconcile
// cash + market value with capital + realized + unrealized.
func TestRandomSequencesKeepInvariants(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(42))
	const capital = 1_000_000.0

	for run := 0; run < 50; run++ {
		side := event.SideBuy
		if rng.Intn(2) == 0 {
			side = event.SideSell
		}
		qty := float64(rng.Intn(500) + 1)
		px := 50 + rng.Float64()*10
		comm := rng.Float64() * 5

		p, err := NewPosition(side, "X", qty, px, comm, px, px)
		require.NoError(t, err)
		cash := capital - side.Sign()*px*qty - comm

		for step := 0; step < 40 && !p.IsFlat(); step++ {
			side = event.SideBuy
			if rng.Intn(2) == 0 {
				side = event.SideSell
			}
			qty = float64(rng.Intn(300) + 1)
			px = 50 + rng.Float64()*10
			comm = rng.Float64() * 5

			realizedBefore := p.RealizedPnL
			extends := math.Signbit(p.Quantity) == math.Signbit(side.Sign())

			require.NoError(t, p.Transact(side, qty, px, comm))
			cash -= side.Sign()*px*qty + comm
			mark := 50 + rng.Float64()*10
			p.MarkToMarket(mark, mark)

			assertPositionInvariants(t, p)
			if extends {
				assert.Equal(t, realizedBefore, p.RealizedPnL)
			}
			assert.InDelta(t, capital+p.RealizedPnL+p.UnrealizedPnL, cash+p.MarketValue, 1e-4)
		}
	}
}
