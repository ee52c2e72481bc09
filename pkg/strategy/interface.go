package strategy

import (
	"errors"

	"github.com/ridopark/notrade/pkg/event"
	"github.com/ridopark/notrade/pkg/feed"
	"github.com/ridopark/notrade/pkg/portfolio"
)

// ErrInsufficientData is returned by indicators when the history is shorter
// than the requested period
var ErrInsufficientData = errors.New("insufficient data")

// Context provides strategy access to market data and portfolio state
type Context interface {
	// Market data access
	GetLatestBars(symbol string, n int) ([]feed.BarData, error)
	Symbols() []string

	// Portfolio access
	GetPosition(symbol string) (portfolio.Position, bool)
	GetCash() float64
	GetEquity() float64

	// Logging
	Log(level string, message string, fields map[string]interface{})
}

// Strategy defines the interface that all trading strategies must implement
type Strategy interface {
	// Initialize is called once before the first market event
	Initialize(ctx Context) error

	// CalculateSignals is called once per market event after the bars of
	// every symbol have been updated. Returned signals are queued in order.
	CalculateSignals(ctx Context, market event.Market) ([]event.Signal, error)

	// OnFill is called after a fill has been booked into the portfolio
	OnFill(ctx Context, fill event.Fill) error

	// Cleanup is called when the replay has finished
	Cleanup(ctx Context) error

	// GetName returns the strategy name
	GetName() string

	// GetParameters returns the strategy parameters
	GetParameters() map[string]interface{}
}

// StrategyConfig holds configuration for a strategy
type StrategyConfig struct {
	Name       string                 `yaml:"name"`
	Parameters map[string]interface{} `yaml:"parameters"`
	Symbols    []string               `yaml:"symbols"`
}
