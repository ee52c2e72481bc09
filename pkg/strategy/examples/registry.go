package examples

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ridopark/notrade/pkg/strategy"
)

// ErrUnknownStrategy is returned by New for names with no registered constructor
var ErrUnknownStrategy = errors.New("unknown strategy")

type constructor func(cfg strategy.StrategyConfig) (strategy.Strategy, error)

var registry = map[string]constructor{
	"buy_and_hold": func(cfg strategy.StrategyConfig) (strategy.Strategy, error) {
		return NewBuyAndHoldStrategy(cfg.Symbols), nil
	},
	"ma_crossover": func(cfg strategy.StrategyConfig) (strategy.Strategy, error) {
		shortPeriod := intParameter(cfg.Parameters, "short_period", 5)
		longPeriod := intParameter(cfg.Parameters, "long_period", 20)
		allowShort, _ := cfg.Parameters["allow_short"].(bool)

		s, err := NewMovingAverageCrossoverStrategy(shortPeriod, longPeriod, allowShort)
		if err != nil {
			return nil, err
		}
		s.SetSymbols(cfg.Symbols)
		return s, nil
	},
}

func intParameter(parameters map[string]interface{}, key string, fallback int) int {
	if v, err := strategy.ParameterInt(parameters, key); err == nil {
		return v
	}
	return fallback
}

// New builds a reference strategy by name
func New(cfg strategy.StrategyConfig) (strategy.Strategy, error) {
	build, ok := registry[cfg.Name]
	if !ok {
		return nil, fmt.Errorf("%w %q, available: %v", ErrUnknownStrategy, cfg.Name, Names())
	}
	return build(cfg)
}

// Names lists the registered strategy names in sorted order
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
