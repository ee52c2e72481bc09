package backtester

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ridopark/notrade/pkg/event"
	"github.com/ridopark/notrade/pkg/feed"
	"github.com/ridopark/notrade/pkg/logging"
	"github.com/ridopark/notrade/pkg/portfolio"
	"github.com/ridopark/notrade/pkg/strategy"
	"github.com/rs/zerolog"
)

// Option customizes an Engine beyond what Config describes
type Option func(*engineOptions)

type engineOptions struct {
	sizer      portfolio.PositionSizer
	risk       portfolio.RiskManager
	commission CommissionFunc
	execution  ExecutionHandler
}

// WithPositionSizer overrides the sizer built from Config
func WithPositionSizer(sizer portfolio.PositionSizer) Option {
	return func(o *engineOptions) { o.sizer = sizer }
}

// WithRiskManager overrides the risk manager built from Config
func WithRiskManager(risk portfolio.RiskManager) Option {
	return func(o *engineOptions) { o.risk = risk }
}

// WithCommission overrides the commission model built from Config
func WithCommission(commission CommissionFunc) Option {
	return func(o *engineOptions) { o.commission = commission }
}

// WithExecutionHandler replaces the simulated broker
func WithExecutionHandler(execution ExecutionHandler) Option {
	return func(o *engineOptions) { o.execution = execution }
}

// Engine coordinates the backtest execution. Each tick it advances the data
// handler by one aligned bar and drains the event queue completely before the
// portfolio is revalued.
type Engine struct {
	config    Config
	queue     *event.Queue
	data      *feed.HistoricReplayHandler
	portfolio *portfolio.Portfolio
	handler   *portfolio.Handler
	broker    ExecutionHandler
	strategy  strategy.Strategy
	results   *Results
	ctx       *StrategyContext
	ran       bool
	logger    zerolog.Logger
}

// NewEngine wires a data handler over provider, a portfolio, a portfolio
// handler and a simulated broker around strategy s
func NewEngine(cfg Config, provider feed.HistoricalDataProvider, s strategy.Strategy, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if provider == nil || s == nil {
		return nil, errors.New("engine needs a data provider and a strategy")
	}

	options := engineOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.sizer == nil {
		options.sizer, _ = cfg.PositionSizer()
	}
	if options.risk == nil {
		options.risk = cfg.RiskManager()
	}
	if options.commission == nil {
		options.commission, _ = cfg.Commission()
	}

	var feedOpts []feed.Option
	if cfg.MaxHistory > 0 {
		feedOpts = append(feedOpts, feed.WithMaxHistory(cfg.MaxHistory))
	}

	queue := event.NewQueue()
	data := feed.NewHistoricReplayHandler(queue, provider, cfg.Symbols, cfg.Timeframe, cfg.StartDate, cfg.EndDate, feedOpts...)
	pf := portfolio.New(data, cfg.Symbols, cfg.InitialCapital)

	broker := options.execution
	if broker == nil {
		broker = NewSimulatedBroker(data, options.commission, cfg.SlippageRate)
	}

	engine := &Engine{
		config:    cfg,
		queue:     queue,
		data:      data,
		portfolio: pf,
		handler:   portfolio.NewHandler(queue, pf, options.sizer, options.risk),
		broker:    broker,
		strategy:  s,
		results: &Results{
			RunID:          uuid.NewString(),
			StrategyName:   s.GetName(),
			Parameters:     s.GetParameters(),
			Symbols:        cfg.Symbols,
			InitialCapital: cfg.InitialCapital,
			PeriodsPerYear: cfg.PeriodsPerYear,
			Trades:         make([]event.Fill, 0),
		},
		logger: logging.GetLogger("backtester"),
	}

	// Create context after engine is initialized
	engine.ctx = NewStrategyContext(engine)

	return engine, nil
}

// Run executes the backtest until the data is exhausted or Stop is called.
// An accounting error aborts the run and is returned wrapped.
func (e *Engine) Run() error {
	if e.ran {
		return errors.New("engine has already run")
	}
	e.ran = true

	e.logger.Info().
		Str("run_id", e.results.RunID).
		Str("strategy", e.strategy.GetName()).
		Strs("symbols", e.config.Symbols).
		Msg("Starting backtest execution")

	if err := e.data.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize data handler: %w", err)
	}
	defer e.data.Close()

	if e.data.TotalTicks() == 0 {
		return fmt.Errorf("%w for the specified date range and symbols", feed.ErrNoData)
	}

	if err := e.strategy.Initialize(e.ctx); err != nil {
		return fmt.Errorf("failed to initialize strategy: %w", err)
	}

	ticks := 0
	for e.data.Continue() {
		if !e.data.UpdateBars() {
			break
		}
		ticks++

		if err := e.drain(); err != nil {
			return err
		}

		ts, _ := e.data.CurrentTimestamp()
		record := e.handler.UpdatePortfolioValue(ts)
		e.logger.Debug().
			Time("timestamp", ts).
			Float64("cash", record.Cash).
			Float64("total", record.Total).
			Msg("Tick processed")
	}

	if err := e.strategy.Cleanup(e.ctx); err != nil {
		e.logger.Error().Err(err).Msg("Strategy cleanup error")
	}

	e.finalize(ticks)
	e.logger.Info().
		Int("ticks_processed", ticks).
		Int("fills", len(e.results.Trades)).
		Float64("final_capital", e.results.FinalCapital).
		Msg("Backtest completed")
	return nil
}

// drain dispatches queued events until the queue is empty. Events pushed
// while draining are handled in the same tick.
func (e *Engine) drain() error {
	for !e.queue.IsEmpty() {
		switch ev := e.queue.Pop().(type) {
		case event.Market:
			e.onMarket(ev)
		case event.Signal:
			if err := e.handler.OnSignal(ev); err != nil {
				e.logger.Error().Err(err).Str("strategy", ev.Strategy).Msg("Signal rejected")
			}
		case event.Order:
			e.onOrder(ev)
		case event.Fill:
			if err := e.onFill(ev); err != nil {
				return err
			}
		default:
			e.logger.Warn().Interface("event", ev).Msg("Dropping unknown event")
		}
	}
	return nil
}

func (e *Engine) onMarket(market event.Market) {
	signals, err := e.strategy.CalculateSignals(e.ctx, market)
	if err != nil {
		e.logger.Error().Err(err).Time("timestamp", market.Timestamp).Msg("Strategy error on market event")
		return
	}
	for _, signal := range signals {
		if signal.Timestamp.IsZero() {
			signal.Timestamp = market.Timestamp
		}
		if signal.Strategy == "" {
			signal.Strategy = e.strategy.GetName()
		}
		e.queue.Push(signal)
	}
}

func (e *Engine) onOrder(order event.Order) {
	fill, err := e.broker.ExecuteOrder(order)
	switch {
	case errors.Is(err, ErrOrderNotFilled):
		e.logger.Warn().Err(err).Str("order_id", order.ID).Msg("Order not filled")
	case err != nil:
		e.logger.Error().Err(err).Str("order_id", order.ID).Msg("Order execution failed")
	default:
		e.queue.Push(fill)
	}
}

func (e *Engine) onFill(fill event.Fill) error {
	if err := e.handler.OnFill(fill); err != nil {
		return fmt.Errorf("accounting error: %w", err)
	}
	e.results.Trades = append(e.results.Trades, fill)

	if err := e.strategy.OnFill(e.ctx, fill); err != nil {
		e.logger.Error().Err(err).Str("fill_id", fill.ID).Msg("Strategy error on fill")
	}
	return nil
}

func (e *Engine) finalize(ticks int) {
	r := e.results
	r.Ticks = ticks
	r.EquityCurve = buildEquityCurve(e.portfolio.Holdings())
	if len(r.EquityCurve) > 0 {
		r.StartDate = r.EquityCurve[0].Timestamp
		r.EndDate = r.EquityCurve[len(r.EquityCurve)-1].Timestamp
	}

	r.FinalCapital = e.portfolio.Equity()
	r.TotalPL = r.FinalCapital - r.InitialCapital
	r.RealizedPL = e.portfolio.TotalRealizedPnL()
	r.UnrealizedPL = e.portfolio.UnrealizedPnL()
	r.TotalCommission = e.portfolio.Commission()
	r.OpenPositions = e.portfolio.OpenPositions()
	r.ClosedPositions = e.portfolio.ClosedPositions()

	r.CalculateMetrics()
}

// Stop ends the run at the next tick boundary
func (e *Engine) Stop() {
	e.data.Stop()
}

// GetResults returns the backtest results
func (e *Engine) GetResults() *Results {
	return e.results
}

// Portfolio returns the portfolio driven by this engine
func (e *Engine) Portfolio() *portfolio.Portfolio {
	return e.portfolio
}

// Progress returns the replay progress as a percentage
func (e *Engine) Progress() float64 {
	return e.data.Progress()
}
