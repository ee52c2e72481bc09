package backtester

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ridopark/notrade/pkg/performance"
	"github.com/ridopark/notrade/pkg/portfolio"
	"github.com/ridopark/notrade/pkg/strategy"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Config.Validate
var ErrInvalidConfig = errors.New("invalid config")

// Commission models understood by Config.Commission
const (
	CommissionIB         = "ib"
	CommissionPercentage = "percentage"
	CommissionZero       = "zero"
)

// Position sizers understood by Config.PositionSizer
const (
	SizerFixed        = "fixed"
	SizerCashFraction = "cash_fraction"
)

// Config represents the backtester configuration
type Config struct {
	StartDate      time.Time `yaml:"start_date"`
	EndDate        time.Time `yaml:"end_date"`
	InitialCapital float64   `yaml:"initial_capital"`
	Symbols        []string  `yaml:"symbols"`
	Timeframe      string    `yaml:"timeframe"`
	PeriodsPerYear float64   `yaml:"periods_per_year"`
	MaxHistory     int       `yaml:"max_history"`

	CommissionModel string  `yaml:"commission_model"`
	CommissionRate  float64 `yaml:"commission_rate"`
	SlippageRate    float64 `yaml:"slippage_rate"`

	Sizer         string                 `yaml:"sizer"`
	FixedQuantity float64                `yaml:"fixed_quantity"`
	Sizing        portfolio.SizingConfig `yaml:"sizing"`
	MaxExposure   float64                `yaml:"max_exposure"` // 0 disables the exposure cap

	Strategy strategy.StrategyConfig `yaml:"strategy"`
}

// DefaultConfig returns a daily-bar configuration with IB commissions and a
// fixed 100 unit sizer
func DefaultConfig() Config {
	return Config{
		InitialCapital:  100000.0,
		Timeframe:       "1d",
		PeriodsPerYear:  performance.PeriodsDaily,
		CommissionModel: CommissionIB,
		Sizer:           SizerFixed,
		FixedQuantity:   100,
		Sizing:          portfolio.DefaultSizingConfig(),
		Strategy:        strategy.StrategyConfig{Name: "buy_and_hold"},
	}
}

// LoadConfig reads a YAML config file on top of DefaultConfig
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first problem found in the config
func (c Config) Validate() error {
	switch {
	case len(c.Symbols) == 0:
		return fmt.Errorf("%w: no symbols", ErrInvalidConfig)
	case c.InitialCapital <= 0:
		return fmt.Errorf("%w: initial capital must be positive, got %f", ErrInvalidConfig, c.InitialCapital)
	case !c.EndDate.After(c.StartDate):
		return fmt.Errorf("%w: end date %s is not after start date %s", ErrInvalidConfig,
			c.EndDate.Format(time.DateOnly), c.StartDate.Format(time.DateOnly))
	case c.PeriodsPerYear <= 0:
		return fmt.Errorf("%w: periods per year must be positive", ErrInvalidConfig)
	case c.SlippageRate < 0 || c.SlippageRate >= 1:
		return fmt.Errorf("%w: slippage rate %f out of range [0, 1)", ErrInvalidConfig, c.SlippageRate)
	case c.MaxExposure < 0:
		return fmt.Errorf("%w: max exposure must not be negative", ErrInvalidConfig)
	}

	seen := make(map[string]bool, len(c.Symbols))
	for _, symbol := range c.Symbols {
		if symbol == "" || seen[symbol] {
			return fmt.Errorf("%w: empty or duplicate symbol %q", ErrInvalidConfig, symbol)
		}
		seen[symbol] = true
	}

	if _, err := c.Commission(); err != nil {
		return err
	}
	if _, err := c.PositionSizer(); err != nil {
		return err
	}
	return nil
}

// Commission returns the configured commission model
func (c Config) Commission() (CommissionFunc, error) {
	switch c.CommissionModel {
	case CommissionIB, "":
		return IBCommission, nil
	case CommissionPercentage:
		if c.CommissionRate < 0 {
			return nil, fmt.Errorf("%w: negative commission rate", ErrInvalidConfig)
		}
		return PercentageCommission(c.CommissionRate), nil
	case CommissionZero:
		return ZeroCommission, nil
	default:
		return nil, fmt.Errorf("%w: unknown commission model %q", ErrInvalidConfig, c.CommissionModel)
	}
}

// PositionSizer returns the configured position sizer
func (c Config) PositionSizer() (portfolio.PositionSizer, error) {
	switch c.Sizer {
	case SizerFixed, "":
		if c.FixedQuantity <= 0 {
			return nil, fmt.Errorf("%w: fixed quantity must be positive", ErrInvalidConfig)
		}
		return portfolio.NewFixedQuantitySizer(c.FixedQuantity), nil
	case SizerCashFraction:
		if c.Sizing.PositionSize <= 0 || c.Sizing.PositionSize > 1 {
			return nil, fmt.Errorf("%w: position size %f out of range (0, 1]", ErrInvalidConfig, c.Sizing.PositionSize)
		}
		return portfolio.NewCashFractionSizer(c.Sizing), nil
	default:
		return nil, fmt.Errorf("%w: unknown sizer %q", ErrInvalidConfig, c.Sizer)
	}
}

// RiskManager returns the exposure-capping risk manager when MaxExposure is
// set, otherwise the pass-through one
func (c Config) RiskManager() portfolio.RiskManager {
	if c.MaxExposure > 0 {
		return portfolio.MaxExposureRiskManager{
			MaxFraction: c.MaxExposure,
			WholeUnits:  !c.Sizing.AllowFractional,
		}
	}
	return portfolio.NaiveRiskManager{}
}
