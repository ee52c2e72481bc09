package portfolio

import (
	"fmt"
	"math"

	"github.com/ridopark/notrade/pkg/event"
)

// quantityEpsilon absorbs float drift when a position is brought back to flat
const quantityEpsilon = 1e-9

// Position is the average-cost accounting of a single instrument.
//
// Quantity is signed: positive for long, negative for short. AvgPrice is the
// per-unit cost of the open quantity with opening commission folded in, so
// CostBasis == Quantity * AvgPrice and UnrealizedPnL == MarketValue - CostBasis.
// RealizedPnL only moves when a transaction reduces or flips the position.
type Position struct {
	Symbol        string  `json:"symbol"`
	Quantity      float64 `json:"quantity"`
	AvgPrice      float64 `json:"avg_price"`
	CostBasis     float64 `json:"cost_basis"`
	MarketValue   float64 `json:"market_value"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	RealizedPnL   float64 `json:"realized_pnl"`

	TotalCommission float64 `json:"total_commission"`

	// Per-side running totals, commission excluded
	Buys        float64 `json:"buys"`
	Sells       float64 `json:"sells"`
	AvgBought   float64 `json:"avg_bought"`
	AvgSold     float64 `json:"avg_sold"`
	TotalBought float64 `json:"total_bought"`
	TotalSold   float64 `json:"total_sold"`

	NetTotal          float64 `json:"net_total"`
	NetInclCommission float64 `json:"net_incl_commission"`

	markPrice float64
}

// NewPosition opens a position from its first transaction and marks it at the
// bid/ask midpoint.
func NewPosition(side event.Side, symbol string, quantity, price, commission, bid, ask float64) (*Position, error) {
	if err := validateTransaction(side, quantity, price, commission); err != nil {
		return nil, err
	}

	p := &Position{Symbol: symbol}
	p.recordTrade(side, quantity, price, commission)
	p.openLeg(side, quantity, price, commission)
	p.refresh()
	p.MarkToMarket(bid, ask)
	return p, nil
}

func validateTransaction(side event.Side, quantity, price, commission float64) error {
	if !side.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSide, side)
	}
	// Also rejects NaN, whose comparisons are all false
	if !(quantity > 0) || math.IsInf(quantity, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidQuantity, quantity)
	}
	if !(price > 0) || math.IsInf(price, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidPrice, price)
	}
	if !(commission >= 0) || math.IsInf(commission, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidCommission, commission)
	}
	return nil
}

// Transact applies a buy or sell to the position. A same-direction trade
// extends the average cost. An opposite trade first offsets the held quantity,
// booking realized PnL on the offset part, and any excess opens a new position
// in the other direction at the transaction price. Commission is split pro rata
// between the closing and opening parts.
//
// The position is left untouched when an error is returned.
func (p *Position) Transact(side event.Side, quantity, price, commission float64) error {
	if err := validateTransaction(side, quantity, price, commission); err != nil {
		return err
	}

	p.recordTrade(side, quantity, price, commission)

	signed := side.Sign() * quantity
	held := math.Abs(p.Quantity)

	switch {
	case p.IsFlat():
		p.openLeg(side, quantity, price, commission)

	case math.Signbit(p.Quantity) == math.Signbit(signed):
		p.AvgPrice = (p.AvgPrice*held + price*quantity + side.Sign()*commission) / (held + quantity)
		p.Quantity += signed

	default:
		offset := math.Min(quantity, held)
		closingCommission := commission * offset / quantity
		direction := math.Copysign(1, p.Quantity)
		p.RealizedPnL += direction*(price-p.AvgPrice)*offset - closingCommission

		if remainder := quantity - held; remainder > quantityEpsilon {
			p.openLeg(side, remainder, price, commission-closingCommission)
		} else {
			p.Quantity += signed
			if math.Abs(p.Quantity) <= quantityEpsilon {
				p.Quantity = 0
				p.AvgPrice = 0
			}
		}
	}

	p.refresh()
	p.revalue()
	return nil
}

// MarkToMarket revalues the position at the midpoint of bid and ask
func (p *Position) MarkToMarket(bid, ask float64) {
	p.markPrice = (bid + ask) / 2
	p.revalue()
}

// openLeg resets the cost basis to a fresh position of quantity units
func (p *Position) openLeg(side event.Side, quantity, price, commission float64) {
	p.Quantity = side.Sign() * quantity
	p.AvgPrice = (price*quantity + side.Sign()*commission) / quantity
}

// recordTrade updates the per-side volume weighted averages and commission
func (p *Position) recordTrade(side event.Side, quantity, price, commission float64) {
	p.TotalCommission += commission

	if side == event.SideBuy {
		p.AvgBought = (p.AvgBought*p.Buys + price*quantity) / (p.Buys + quantity)
		p.Buys += quantity
		p.TotalBought = p.Buys * p.AvgBought
	} else {
		p.AvgSold = (p.AvgSold*p.Sells + price*quantity) / (p.Sells + quantity)
		p.Sells += quantity
		p.TotalSold = p.Sells * p.AvgSold
	}
}

func (p *Position) refresh() {
	p.CostBasis = p.Quantity * p.AvgPrice
	p.NetTotal = p.TotalSold - p.TotalBought
	p.NetInclCommission = p.NetTotal - p.TotalCommission
}

func (p *Position) revalue() {
	p.MarketValue = p.Quantity * p.markPrice
	p.UnrealizedPnL = p.MarketValue - p.CostBasis
}

// MarkPrice returns the midpoint the position was last marked at
func (p *Position) MarkPrice() float64 {
	return p.markPrice
}

// IsLong reports whether the position holds a positive quantity
func (p *Position) IsLong() bool {
	return p.Quantity > 0
}

// IsShort reports whether the position holds a negative quantity
func (p *Position) IsShort() bool {
	return p.Quantity < 0
}

// IsFlat reports whether the position has been closed out
func (p *Position) IsFlat() bool {
	return p.Quantity == 0
}

// Direction returns LONG or SHORT, or an empty direction when flat
func (p *Position) Direction() event.Direction {
	switch {
	case p.IsLong():
		return event.DirectionLong
	case p.IsShort():
		return event.DirectionShort
	default:
		return ""
	}
}
