package feed

import (
	"errors"
	"time"
)

var (
	// ErrSymbolNotFound is returned when a symbol was never registered with a handler or provider
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrNoData is returned when a registered symbol has not produced a bar yet
	ErrNoData = errors.New("no data available")
)

// DataHandler replays market data one aligned tick at a time
type DataHandler interface {
	// Initialize loads and aligns the history for every registered symbol
	Initialize() error

	// GetLatestBars returns up to n of the most recent bars for symbol, oldest
	// first, and an empty slice when n is not positive
	GetLatestBars(symbol string, n int) ([]BarData, error)

	// UpdateBars advances one tick and pushes a market event. It returns false
	// once the data is exhausted or the handler was stopped.
	UpdateBars() bool

	// Continue reports whether the replay may advance further
	Continue() bool

	// Stop clears the continuation flag; the next UpdateBars returns false
	Stop()

	// Symbols returns the registered symbols in registration order
	Symbols() []string

	// Close releases any resources held by the handler
	Close() error
}

// PriceSource provides the top-of-book used to mark positions to market
type PriceSource interface {
	Quote(symbol string) (bid, ask float64, err error)
}

// HistoricalDataProvider defines the interface for historical data sources
type HistoricalDataProvider interface {
	// GetBars retrieves historical OHLCV data for the given parameters, oldest first
	GetBars(symbol string, timeframe string, start time.Time, end time.Time) ([]BarData, error)
}
