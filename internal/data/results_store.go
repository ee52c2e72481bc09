package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/ridopark/notrade/pkg/backtester"
)

const (
	runsTable   = "backtest_runs"
	equityTable = "backtest_equity"
)

var equityColumns = []string{
	"run_id", "timestamp", "cash", "commission", "total", "returns", "equity_curve", "holdings", "positions",
}

const schema = `
CREATE TABLE IF NOT EXISTS backtest_runs (
	run_id            UUID PRIMARY KEY,
	strategy          TEXT NOT NULL,
	parameters        JSONB,
	symbols           TEXT[] NOT NULL,
	start_date        TIMESTAMPTZ,
	end_date          TIMESTAMPTZ,
	ticks             INTEGER NOT NULL,
	initial_capital   DOUBLE PRECISION NOT NULL,
	final_capital     DOUBLE PRECISION NOT NULL,
	total_return      DOUBLE PRECISION NOT NULL,
	sharpe_ratio      DOUBLE PRECISION,
	sortino_ratio     DOUBLE PRECISION,
	max_drawdown      DOUBLE PRECISION NOT NULL,
	drawdown_duration INTEGER NOT NULL,
	total_commission  DOUBLE PRECISION NOT NULL,
	fills             INTEGER NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS backtest_equity (
	run_id       UUID NOT NULL REFERENCES backtest_runs(run_id) ON DELETE CASCADE,
	timestamp    TIMESTAMPTZ NOT NULL,
	cash         DOUBLE PRECISION NOT NULL,
	commission   DOUBLE PRECISION NOT NULL,
	total        DOUBLE PRECISION NOT NULL,
	returns      DOUBLE PRECISION NOT NULL,
	equity_curve DOUBLE PRECISION NOT NULL,
	holdings     JSONB NOT NULL,
	positions    JSONB NOT NULL,
	PRIMARY KEY (run_id, timestamp)
);
`

const insertRun = `
INSERT INTO backtest_runs (
	run_id, strategy, parameters, symbols, start_date, end_date, ticks,
	initial_capital, final_capital, total_return, sharpe_ratio, sortino_ratio,
	max_drawdown, drawdown_duration, total_commission, fills
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
`

// ResultsStore persists backtest results to PostgreSQL
type ResultsStore struct {
	db *sql.DB
}

// NewResultsStore creates a results store on an open database
func NewResultsStore(db *sql.DB) *ResultsStore {
	return &ResultsStore{db: db}
}

// EnsureSchema creates the results tables when they do not exist
func (s *ResultsStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create results schema: %w", err)
	}
	return nil
}

// SaveRun writes the run summary and its equity curve in one transaction.
// The equity curve is streamed with COPY.
func (s *ResultsStore) SaveRun(ctx context.Context, results *backtester.Results) (err error) {
	runID, err := uuid.Parse(results.RunID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", results.RunID, err)
	}
	run, err := runRow(runID, results)
	if err != nil {
		return err
	}
	points, err := equityRows(runID, results.EquityCurve)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, insertRun, run...); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", runsTable, err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(equityTable, equityColumns...))
	if err != nil {
		return fmt.Errorf("failed to prepare copy into %s: %w", equityTable, err)
	}
	for _, point := range points {
		if _, err = stmt.ExecContext(ctx, point...); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to copy equity point: %w", err)
		}
	}
	if _, err = stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to flush equity copy: %w", err)
	}
	if err = stmt.Close(); err != nil {
		return fmt.Errorf("failed to close copy statement: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}
	return nil
}

// nullableFloat maps NaN and infinities to SQL NULL
func nullableFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func runRow(runID uuid.UUID, r *backtester.Results) ([]any, error) {
	parameters, err := json.Marshal(r.Parameters)
	if err != nil {
		return nil, fmt.Errorf("failed to encode strategy parameters: %w", err)
	}
	return []any{
		runID.String(),
		r.StrategyName,
		string(parameters),
		pq.Array(r.Symbols),
		r.StartDate,
		r.EndDate,
		r.Ticks,
		r.InitialCapital,
		r.FinalCapital,
		r.TotalReturn,
		nullableFloat(r.SharpeRatio),
		nullableFloat(r.SortinoRatio),
		r.MaxDrawdown,
		r.DrawdownDuration,
		r.TotalCommission,
		len(r.Trades),
	}, nil
}

func equityRows(runID uuid.UUID, points []backtester.EquityPoint) ([][]any, error) {
	rows := make([][]any, 0, len(points))
	for _, point := range points {
		holdings, err := json.Marshal(point.Holdings)
		if err != nil {
			return nil, fmt.Errorf("failed to encode holdings at %s: %w", point.Timestamp, err)
		}
		positions, err := json.Marshal(point.Positions)
		if err != nil {
			return nil, fmt.Errorf("failed to encode positions at %s: %w", point.Timestamp, err)
		}
		rows = append(rows, []any{
			runID.String(),
			point.Timestamp,
			point.Cash,
			point.Commission,
			point.Total,
			point.Returns,
			point.EquityCurve,
			string(holdings),
			string(positions),
		})
	}
	return rows, nil
}
