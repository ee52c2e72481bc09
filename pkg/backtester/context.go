package backtester

import (
	"github.com/ridopark/notrade/pkg/feed"
	"github.com/ridopark/notrade/pkg/logging"
	"github.com/ridopark/notrade/pkg/portfolio"
	"github.com/ridopark/notrade/pkg/strategy"
	"github.com/rs/zerolog"
)

// StrategyContext implements the strategy.Context interface for backtesting
type StrategyContext struct {
	engine *Engine
	logger zerolog.Logger
}

// NewStrategyContext creates a new strategy context
func NewStrategyContext(engine *Engine) *StrategyContext {
	return &StrategyContext{
		engine: engine,
		logger: logging.GetSubLogger(logging.GetLogger("strategy"), engine.strategy.GetName()),
	}
}

// GetLatestBars returns up to n of the most recent bars for symbol
func (sc *StrategyContext) GetLatestBars(symbol string, n int) ([]feed.BarData, error) {
	return sc.engine.data.GetLatestBars(symbol, n)
}

// Symbols returns the replayed symbols
func (sc *StrategyContext) Symbols() []string {
	return sc.engine.data.Symbols()
}

// GetPosition returns a copy of the open position for a symbol
func (sc *StrategyContext) GetPosition(symbol string) (portfolio.Position, bool) {
	return sc.engine.portfolio.Position(symbol)
}

// GetCash returns the current cash balance
func (sc *StrategyContext) GetCash() float64 {
	return sc.engine.portfolio.Cash()
}

// GetEquity returns cash plus the market value of open positions
func (sc *StrategyContext) GetEquity() float64 {
	return sc.engine.portfolio.Equity()
}

// Log logs a message with the given level and fields
func (sc *StrategyContext) Log(level string, message string, fields map[string]interface{}) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	sc.logger.WithLevel(lvl).Fields(fields).Msg(message)
}

var _ strategy.Context = (*StrategyContext)(nil)
