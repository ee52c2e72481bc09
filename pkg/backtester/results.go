package backtester

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/ridopark/notrade/pkg/event"
	"github.com/ridopark/notrade/pkg/performance"
	"github.com/ridopark/notrade/pkg/portfolio"
)

// EquityPoint is one row of the equity curve: a holdings record plus its
// period return and the compounded curve value (1.0 at the start)
type EquityPoint struct {
	Timestamp   time.Time          `json:"timestamp"`
	Cash        float64            `json:"cash"`
	Commission  float64            `json:"commission"`
	Holdings    map[string]float64 `json:"holdings"`
	Positions   map[string]float64 `json:"positions"`
	Total       float64            `json:"total"`
	Returns     float64            `json:"returns"`
	EquityCurve float64            `json:"equity_curve"`
}

// Stat is one row of the summary statistics table
type Stat struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Results contains the results of a backtest
type Results struct {
	RunID          string                 `json:"run_id"`
	StrategyName   string                 `json:"strategy_name"`
	Parameters     map[string]interface{} `json:"parameters"`
	Symbols        []string               `json:"symbols"`
	StartDate      time.Time              `json:"start_date"`
	EndDate        time.Time              `json:"end_date"`
	Ticks          int                    `json:"ticks"`
	PeriodsPerYear float64                `json:"periods_per_year"`

	InitialCapital  float64 `json:"initial_capital"`
	FinalCapital    float64 `json:"final_capital"`
	TotalReturn     float64 `json:"total_return"` // percent
	TotalPL         float64 `json:"total_pl"`
	RealizedPL      float64 `json:"realized_pl"`
	UnrealizedPL    float64 `json:"unrealized_pl"`
	TotalCommission float64 `json:"total_commission"`

	// Risk metrics. Ratios are NaN when undefined and exported as null.
	SharpeRatio      float64 `json:"sharpe_ratio"`
	SortinoRatio     float64 `json:"sortino_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"` // fraction of the equity curve
	DrawdownDuration int     `json:"drawdown_duration"`
	Stats            []Stat  `json:"stats"`

	Trades          []event.Fill         `json:"trades"`
	EquityCurve     []EquityPoint        `json:"equity_curve"`
	OpenPositions   []portfolio.Position `json:"open_positions"`
	ClosedPositions []portfolio.Position `json:"closed_positions"`
}

// buildEquityCurve derives period returns and the compounded curve from the
// holdings series. The first record has return 0.
func buildEquityCurve(records []portfolio.HoldingsRecord) []EquityPoint {
	totals := make([]float64, len(records))
	for i, record := range records {
		totals[i] = record.Total
	}
	returns := performance.Returns(totals)
	curve := performance.CumulativeCurve(returns)

	points := make([]EquityPoint, len(records))
	for i, record := range records {
		points[i] = EquityPoint{
			Timestamp:   record.Timestamp,
			Cash:        record.Cash,
			Commission:  record.Commission,
			Holdings:    record.Holdings,
			Positions:   record.Positions,
			Total:       record.Total,
			Returns:     returns[i],
			EquityCurve: curve[i],
		}
	}
	return points
}

// CalculateMetrics computes the risk metrics and the summary table from the
// equity curve
func (r *Results) CalculateMetrics() {
	r.SharpeRatio = math.NaN()
	r.SortinoRatio = math.NaN()
	r.TotalReturn = 0
	r.MaxDrawdown = 0
	r.DrawdownDuration = 0

	if n := len(r.EquityCurve); n > 0 {
		returns := make([]float64, 0, n-1)
		curve := make([]float64, n)
		for i, point := range r.EquityCurve {
			curve[i] = point.EquityCurve
			if i > 0 {
				returns = append(returns, point.Returns)
			}
		}

		r.TotalReturn = (curve[n-1] - 1) * 100
		r.SharpeRatio = performance.SharpeRatio(returns, r.PeriodsPerYear)
		r.SortinoRatio = performance.SortinoRatio(returns, r.PeriodsPerYear)
		r.MaxDrawdown, r.DrawdownDuration = performance.DrawdownAndDuration(curve)
	}

	r.Stats = []Stat{
		{Name: "Total Return", Value: fmt.Sprintf("%0.2f%%", r.TotalReturn)},
		{Name: "Sharpe Ratio", Value: fmt.Sprintf("%0.2f", r.SharpeRatio)},
		{Name: "Max Drawdown", Value: fmt.Sprintf("%0.2f%%", r.MaxDrawdown*100)},
		{Name: "Drawdown Duration", Value: fmt.Sprintf("%d", r.DrawdownDuration)},
	}
}

// Summary returns a human-readable summary of the results
func (r *Results) Summary() string {
	if r.Stats == nil {
		r.CalculateMetrics()
	}

	var stats strings.Builder
	for _, stat := range r.Stats {
		fmt.Fprintf(&stats, "- %s: %s\n", stat.Name, stat.Value)
	}

	return fmt.Sprintf(`
Backtest Results for %s
=======================
Run: %s
Period: %s to %s (%d ticks)
Initial Capital: $%.2f
Final Capital: $%.2f
Total P&L: $%.2f (realized $%.2f, unrealized $%.2f)
Commission: $%.2f
Fills: %d
Closed Positions: %d

Summary Statistics:
%s- Sortino Ratio: %.2f
`,
		r.StrategyName,
		r.RunID,
		r.StartDate.Format(time.DateOnly),
		r.EndDate.Format(time.DateOnly),
		r.Ticks,
		r.InitialCapital,
		r.FinalCapital,
		r.TotalPL,
		r.RealizedPL,
		r.UnrealizedPL,
		r.TotalCommission,
		len(r.Trades),
		len(r.ClosedPositions),
		stats.String(),
		r.SortinoRatio,
	)
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// MarshalJSON exports undefined ratios as null
func (r *Results) MarshalJSON() ([]byte, error) {
	type plain Results
	return json.Marshal(struct {
		*plain
		SharpeRatio  *float64 `json:"sharpe_ratio"`
		SortinoRatio *float64 `json:"sortino_ratio"`
	}{
		plain:        (*plain)(r),
		SharpeRatio:  finiteOrNil(r.SharpeRatio),
		SortinoRatio: finiteOrNil(r.SortinoRatio),
	})
}

// WriteJSON writes the results as indented JSON
func (r *Results) WriteJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(r); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return nil
}
