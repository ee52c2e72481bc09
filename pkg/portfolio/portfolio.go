package portfolio

import (
	"fmt"
	"time"

	"github.com/ridopark/notrade/pkg/event"
	"github.com/ridopark/notrade/pkg/feed"
	"github.com/ridopark/notrade/pkg/logging"
	"github.com/rs/zerolog"
)

// View is the read-only face of a Portfolio handed to sizing and risk policies
type View interface {
	Cash() float64
	Equity() float64
	InitialCapital() float64
	Position(symbol string) (Position, bool)
	Quote(symbol string) (bid, ask float64, err error)
}

// Portfolio manages cash, open and closed positions and the holdings series.
// It is the only writer of that state and is not safe for concurrent use.
type Portfolio struct {
	prices         feed.PriceSource
	symbols        []string
	initialCapital float64
	cash           float64
	commission     float64
	realizedPnL    float64

	positions map[string]*Position
	openOrder []string
	closed    []Position
	holdings  []HoldingsRecord

	equity float64
	dirty  bool
	logger zerolog.Logger
}

// New creates a portfolio with no positions and all value held as cash.
// symbols fixes the columns of the holdings series.
func New(prices feed.PriceSource, symbols []string, initialCapital float64) *Portfolio {
	return &Portfolio{
		prices:         prices,
		symbols:        symbols,
		initialCapital: initialCapital,
		cash:           initialCapital,
		positions:      make(map[string]*Position),
		closed:         make([]Position, 0),
		holdings:       make([]HoldingsRecord, 0),
		equity:         initialCapital,
		logger:         logging.GetLogger("portfolio"),
	}
}

// Quote returns the current top of book for symbol from the price source
func (p *Portfolio) Quote(symbol string) (float64, float64, error) {
	if p.prices == nil {
		return 0, 0, fmt.Errorf("%w: %s has no price source", ErrNoQuote, symbol)
	}
	bid, ask, err := p.prices.Quote(symbol)
	if err != nil {
		return 0, 0, fmt.Errorf("%w for %s: %w", ErrNoQuote, symbol, err)
	}
	return bid, ask, nil
}

// AddPosition opens a new position for a symbol that is not currently held
func (p *Portfolio) AddPosition(side event.Side, symbol string, quantity, price, commission float64) error {
	if _, exists := p.positions[symbol]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicatePosition, symbol)
	}

	bid, ask, err := p.Quote(symbol)
	if err != nil {
		return err
	}

	position, err := NewPosition(side, symbol, quantity, price, commission, bid, ask)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", symbol, err)
	}

	p.positions[symbol] = position
	p.openOrder = append(p.openOrder, symbol)
	p.dirty = true

	p.logger.Info().
		Str("symbol", symbol).
		Str("direction", string(position.Direction())).
		Float64("quantity", position.Quantity).
		Float64("avg_price", position.AvgPrice).
		Msg("Position opened")
	return nil
}

// ModifyPosition applies a transaction to an open position. A position that
// returns to zero quantity moves to the closed list and its realized PnL is
// added to the portfolio aggregate.
func (p *Portfolio) ModifyPosition(side event.Side, symbol string, quantity, price, commission float64) error {
	position, exists := p.positions[symbol]
	if !exists {
		return fmt.Errorf("%w: %s", ErrPositionNotFound, symbol)
	}

	bid, ask, err := p.Quote(symbol)
	if err != nil {
		return err
	}

	if err := position.Transact(side, quantity, price, commission); err != nil {
		return fmt.Errorf("failed to modify %s: %w", symbol, err)
	}
	position.MarkToMarket(bid, ask)
	p.dirty = true

	if position.IsFlat() {
		p.closePosition(symbol)
	}
	return nil
}

func (p *Portfolio) closePosition(symbol string) {
	position := p.positions[symbol]
	delete(p.positions, symbol)
	for i, s := range p.openOrder {
		if s == symbol {
			p.openOrder = append(p.openOrder[:i], p.openOrder[i+1:]...)
			break
		}
	}

	p.realizedPnL += position.RealizedPnL
	p.closed = append(p.closed, *position)

	p.logger.Info().
		Str("symbol", symbol).
		Float64("realized_pnl", position.RealizedPnL).
		Float64("commission", position.TotalCommission).
		Msg("Position closed")
}

// TransactPosition books a fill: the position is opened or modified and cash
// moves by the traded value and commission. Either both change or neither does.
func (p *Portfolio) TransactPosition(side event.Side, symbol string, quantity, price, commission float64) error {
	if err := validateTransaction(side, quantity, price, commission); err != nil {
		return fmt.Errorf("rejected %s transaction: %w", symbol, err)
	}

	var err error
	if _, exists := p.positions[symbol]; exists {
		err = p.ModifyPosition(side, symbol, quantity, price, commission)
	} else {
		err = p.AddPosition(side, symbol, quantity, price, commission)
	}
	if err != nil {
		return err
	}

	p.cash -= side.Sign()*price*quantity + commission
	p.commission += commission
	p.dirty = true

	p.logger.Debug().
		Str("symbol", symbol).
		Str("side", string(side)).
		Float64("quantity", quantity).
		Float64("price", price).
		Float64("commission", commission).
		Float64("cash", p.cash).
		Msg("Transaction booked")
	return nil
}

// Revalue marks every open position to the current quote, recomputes equity
// and appends one record to the holdings series.
func (p *Portfolio) Revalue(timestamp time.Time) HoldingsRecord {
	for _, symbol := range p.openOrder {
		bid, ask, err := p.Quote(symbol)
		if err != nil {
			p.logger.Warn().Err(err).Str("symbol", symbol).Msg("Keeping previous mark")
			continue
		}
		p.positions[symbol].MarkToMarket(bid, ask)
	}
	p.dirty = true

	record := HoldingsRecord{
		Timestamp:  timestamp,
		Cash:       p.cash,
		Commission: p.commission,
		Holdings:   make(map[string]float64, len(p.symbols)),
		Positions:  make(map[string]float64, len(p.symbols)),
		Total:      p.Equity(),
	}
	for _, symbol := range p.symbols {
		record.Holdings[symbol] = 0
		record.Positions[symbol] = 0
	}
	for _, symbol := range p.openOrder {
		record.Holdings[symbol] = p.positions[symbol].MarketValue
		record.Positions[symbol] = p.positions[symbol].Quantity
	}

	p.holdings = append(p.holdings, record)
	return record.clone()
}

// Equity returns cash plus the market value of all open positions. Realized
// PnL is already contained in cash.
func (p *Portfolio) Equity() float64 {
	if p.dirty {
		total := p.cash
		for _, symbol := range p.openOrder {
			total += p.positions[symbol].MarketValue
		}
		p.equity = total
		p.dirty = false
	}
	return p.equity
}

// Cash returns the current cash balance
func (p *Portfolio) Cash() float64 {
	return p.cash
}

// InitialCapital returns the starting cash
func (p *Portfolio) InitialCapital() float64 {
	return p.initialCapital
}

// Commission returns the cumulative commission paid
func (p *Portfolio) Commission() float64 {
	return p.commission
}

// RealizedPnL returns the realized PnL aggregated from closed positions
func (p *Portfolio) RealizedPnL() float64 {
	return p.realizedPnL
}

// TotalRealizedPnL adds the realized legs of still-open positions to RealizedPnL
func (p *Portfolio) TotalRealizedPnL() float64 {
	total := p.realizedPnL
	for _, symbol := range p.openOrder {
		total += p.positions[symbol].RealizedPnL
	}
	return total
}

// UnrealizedPnL returns the paper PnL of all open positions
func (p *Portfolio) UnrealizedPnL() float64 {
	total := 0.0
	for _, symbol := range p.openOrder {
		total += p.positions[symbol].UnrealizedPnL
	}
	return total
}

// Position returns a copy of the open position for symbol
func (p *Portfolio) Position(symbol string) (Position, bool) {
	position, ok := p.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *position, true
}

// OpenPositions returns copies of the open positions in opening order
func (p *Portfolio) OpenPositions() []Position {
	out := make([]Position, 0, len(p.openOrder))
	for _, symbol := range p.openOrder {
		out = append(out, *p.positions[symbol])
	}
	return out
}

// ClosedPositions returns the closed positions in closing order
func (p *Portfolio) ClosedPositions() []Position {
	out := make([]Position, len(p.closed))
	copy(out, p.closed)
	return out
}

// Holdings returns the holdings series recorded so far
func (p *Portfolio) Holdings() []HoldingsRecord {
	out := make([]HoldingsRecord, len(p.holdings))
	for i, record := range p.holdings {
		out[i] = record.clone()
	}
	return out
}

var _ View = (*Portfolio)(nil)
