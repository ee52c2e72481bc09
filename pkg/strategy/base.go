package strategy

import (
	"fmt"
	"time"

	"github.com/ridopark/notrade/pkg/event"
)

// BaseStrategy provides a default implementation of common strategy functionality
type BaseStrategy struct {
	name       string
	parameters map[string]interface{}
	symbols    []string
}

// NewBaseStrategy creates a new base strategy
func NewBaseStrategy(name string, parameters map[string]interface{}) *BaseStrategy {
	if parameters == nil {
		parameters = make(map[string]interface{})
	}
	return &BaseStrategy{
		name:       name,
		parameters: parameters,
		symbols:    []string{},
	}
}

// GetName returns the strategy name
func (s *BaseStrategy) GetName() string {
	return s.name
}

// GetParameters returns the strategy parameters
func (s *BaseStrategy) GetParameters() map[string]interface{} {
	return s.parameters
}

// SetSymbols sets the symbols this strategy will trade
func (s *BaseStrategy) SetSymbols(symbols []string) {
	s.symbols = symbols
}

// GetSymbols returns the symbols this strategy trades
func (s *BaseStrategy) GetSymbols() []string {
	return s.symbols
}

// GetParameter returns a raw parameter value
func (s *BaseStrategy) GetParameter(key string) interface{} {
	return s.parameters[key]
}

// GetParameterFloat64 returns a parameter as float64
func (s *BaseStrategy) GetParameterFloat64(key string) (float64, error) {
	return ParameterFloat64(s.parameters, key)
}

// GetParameterInt returns a parameter as int
func (s *BaseStrategy) GetParameterInt(key string) (int, error) {
	return ParameterInt(s.parameters, key)
}

// GetParameterString returns a parameter as string
func (s *BaseStrategy) GetParameterString(key string) (string, error) {
	val, ok := s.parameters[key]
	if !ok {
		return "", fmt.Errorf("parameter %s not found", key)
	}

	if str, ok := val.(string); ok {
		return str, nil
	}

	return "", fmt.Errorf("parameter %s is not a string", key)
}

// ParameterFloat64 reads a numeric parameter from a decoded parameter map
func ParameterFloat64(parameters map[string]interface{}, key string) (float64, error) {
	val, ok := parameters[key]
	if !ok {
		return 0, fmt.Errorf("parameter %s not found", key)
	}

	switch v := val.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("parameter %s is not a number", key)
	}
}

// ParameterInt reads an integer parameter from a decoded parameter map
func ParameterInt(parameters map[string]interface{}, key string) (int, error) {
	val, ok := parameters[key]
	if !ok {
		return 0, fmt.Errorf("parameter %s not found", key)
	}

	switch v := val.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("parameter %s is not an integer", key)
	}
}

// NewSignal creates a signal stamped with the strategy name
func (s *BaseStrategy) NewSignal(symbol string, direction event.Direction, ts time.Time) event.Signal {
	return event.Signal{
		Symbol:    symbol,
		Timestamp: ts,
		Direction: direction,
		Strategy:  s.name,
	}
}

// Default implementations for strategy interface (to be overridden)

// Initialize provides a default initialization
func (s *BaseStrategy) Initialize(ctx Context) error {
	if len(s.symbols) == 0 {
		s.symbols = ctx.Symbols()
	}
	ctx.Log("info", "Strategy initialized", map[string]interface{}{
		"strategy": s.name,
		"symbols":  s.symbols,
	})
	return nil
}

// CalculateSignals provides a default implementation that emits nothing
func (s *BaseStrategy) CalculateSignals(ctx Context, market event.Market) ([]event.Signal, error) {
	return nil, nil
}

// OnFill provides a default implementation that logs the fill
func (s *BaseStrategy) OnFill(ctx Context, fill event.Fill) error {
	ctx.Log("debug", "Fill received", map[string]interface{}{
		"strategy": s.name,
		"symbol":   fill.Symbol,
		"side":     string(fill.Side),
		"quantity": fill.Quantity,
		"price":    fill.FillCost,
	})
	return nil
}

// Cleanup provides a default cleanup
func (s *BaseStrategy) Cleanup(ctx Context) error {
	ctx.Log("info", "Strategy cleanup", map[string]interface{}{
		"strategy": s.name,
	})
	return nil
}

var _ Strategy = (*BaseStrategy)(nil)
