package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/ridopark/notrade/internal/data"
	"github.com/ridopark/notrade/pkg/backtester"
	"github.com/ridopark/notrade/pkg/logging"
	"github.com/ridopark/notrade/pkg/strategy/examples"
	"github.com/rs/zerolog"
)

func main() {
	// Load environment variables from .env file
	envErr := godotenv.Load()

	// Command line flags
	var (
		configPath     = flag.String("config", "", "Optional YAML config file")
		symbolsFlag    = flag.String("symbols", "AAPL", "Symbols to backtest (comma-separated, e.g., AAPL,TSLA)")
		strategyFlag   = flag.String("strategy", "buy_and_hold", "Strategy to use ("+strings.Join(examples.Names(), ", ")+")")
		startDate      = flag.String("start", "2024-01-01", "Start date (YYYY-MM-DD)")
		endDate        = flag.String("end", "2024-12-31", "End date (YYYY-MM-DD)")
		initialCapital = flag.Float64("capital", 100000.0, "Initial capital")
		timeframe      = flag.String("timeframe", "1d", "Timeframe (1m, 5m, 15m, 1h, 1d)")
		periods        = flag.Float64("periods", 252, "Bars per year used to annualize ratios")
		sizer          = flag.String("sizer", backtester.SizerFixed, "Position sizer (fixed, cash_fraction)")
		quantity       = flag.Float64("quantity", 100, "Units per entry for the fixed sizer")
		maxExposure    = flag.Float64("max-exposure", 0, "Max fraction of equity per position, 0 disables")
		outputPath     = flag.String("output", "", "Write results as JSON to this file")
	)
	flag.Parse()

	// Get logging configuration from environment variables
	logConfig := logging.DefaultConfig()
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logConfig.Pretty = getEnvBool("LOG_PRETTY", true)
	logConfig.EnableFile = getEnvBool("LOG_TO_FILE", false)
	logConfig.LogDir = getEnv("LOG_DIR", "logs")
	logConfig.LogFileName = getEnv("LOG_FILE", "backtester.log")
	logging.Initialize(logConfig)

	logger := logging.GetLogger("main")

	// Log environment loading status
	if envErr != nil {
		logger.Warn().Err(envErr).Msg("Could not load .env file, using system environment variables")
	} else {
		logger.Debug().Msg("Successfully loaded .env file")
	}

	cfg := backtester.DefaultConfig()
	if *configPath != "" {
		loaded, err := backtester.LoadConfig(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to load config")
		}
		cfg = loaded
	}

	// Flags set explicitly on the command line override the config file
	explicit := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	override := func(name string) bool { return *configPath == "" || explicit[name] }

	if override("symbols") {
		cfg.Symbols = parseSymbols(*symbolsFlag)
	}
	if override("strategy") {
		cfg.Strategy.Name = *strategyFlag
	}
	if override("start") {
		cfg.StartDate = mustParseDate(logger, "start_date", *startDate)
	}
	if override("end") {
		// Add one day to include all data for the end date
		cfg.EndDate = mustParseDate(logger, "end_date", *endDate).Add(24 * time.Hour)
	}
	if override("capital") {
		cfg.InitialCapital = *initialCapital
	}
	if override("timeframe") {
		cfg.Timeframe = *timeframe
	}
	if override("periods") {
		cfg.PeriodsPerYear = *periods
	}
	if override("sizer") {
		cfg.Sizer = *sizer
	}
	if override("quantity") {
		cfg.FixedQuantity = *quantity
	}
	if override("max-exposure") {
		cfg.MaxExposure = *maxExposure
	}

	// Trading costs come from the environment when set
	cfg.CommissionModel = getEnv("COMMISSION_MODEL", cfg.CommissionModel)
	cfg.CommissionRate = getEnvFloat("COMMISSION_RATE", cfg.CommissionRate)
	cfg.SlippageRate = getEnvFloat("SLIPPAGE_RATE", cfg.SlippageRate)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid backtest configuration")
	}
	if len(cfg.Strategy.Symbols) == 0 {
		cfg.Strategy.Symbols = cfg.Symbols
	}

	// Get database configuration from environment variables
	connStr := data.ConnectionString(
		getEnv("POSTGRES_HOST", "localhost"),
		getEnv("POSTGRES_PORT", "5432"),
		getEnv("POSTGRES_USER", "postgres"),
		getEnv("POSTGRES_PASSWORD", ""),
		getEnv("POSTGRES_DB", "trading_data"),
		getEnv("POSTGRES_SSLMODE", "disable"),
	)

	logger.Info().Msg("Connecting to database...")
	db, err := data.Open(connStr)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}

	provider, err := data.NewTimescaleDBProvider(db, getEnv("BARS_TABLE", data.DefaultBarsTable))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create data provider")
	}
	defer provider.Close()

	for _, symbol := range cfg.Symbols {
		last, err := provider.GetLastBar(symbol, cfg.Timeframe)
		if err != nil {
			logger.Warn().Err(err).Str("symbol", symbol).Msg("No stored bars for symbol")
			continue
		}
		logger.Debug().Str("symbol", symbol).Time("last_bar", last.Timestamp).Msg("Data available")
	}

	strategyInstance, err := examples.New(cfg.Strategy)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create strategy")
	}

	logger.Info().
		Strs("symbols", cfg.Symbols).
		Time("start_date", cfg.StartDate).
		Time("end_date", cfg.EndDate).
		Str("strategy", cfg.Strategy.Name).
		Float64("initial_capital", cfg.InitialCapital).
		Str("commission_model", cfg.CommissionModel).
		Float64("slippage_rate", cfg.SlippageRate).
		Str("sizer", cfg.Sizer).
		Float64("max_exposure", cfg.MaxExposure).
		Msg("Running backtest")

	engine, err := backtester.NewEngine(cfg, provider, strategyInstance)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create backtest engine")
	}
	if err := engine.Run(); err != nil {
		logger.Fatal().Err(err).Msg("Backtest failed")
	}

	results := engine.GetResults()
	logger.Info().Msg("\n" + results.Summary())

	if *outputPath != "" {
		if err := writeResults(*outputPath, results); err != nil {
			logger.Error().Err(err).Msg("Failed to write results file")
		} else {
			logger.Info().Str("path", *outputPath).Msg("Results written")
		}
	}

	if getEnvBool("SAVE_RESULTS", false) {
		store := data.NewResultsStore(db)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Error().Err(err).Msg("Failed to prepare results tables")
		} else if err := store.SaveRun(ctx, results); err != nil {
			logger.Error().Err(err).Msg("Failed to save results")
		} else {
			logger.Info().Str("run_id", results.RunID).Msg("Results saved to database")
		}
	}
}

func parseSymbols(input string) []string {
	var symbols []string
	for _, symbol := range strings.Split(strings.TrimSpace(input), ",") {
		if symbol = strings.TrimSpace(symbol); symbol != "" {
			symbols = append(symbols, strings.ToUpper(symbol))
		}
	}
	return symbols
}

func mustParseDate(logger zerolog.Logger, field, value string) time.Time {
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		logger.Fatal().Err(err).Str(field, value).Msg("Invalid date")
	}
	return t
}

func writeResults(path string, results *backtester.Results) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := results.WriteJSON(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Helper function to get environment variable with default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Helper function to get boolean environment variable with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Helper function to get float environment variable with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
