package data

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/ridopark/notrade/pkg/feed"
)

// DefaultBarsTable is the hypertable holding OHLCV bars
const DefaultBarsTable = "ohlcv_data"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// TimescaleDBProvider provides historical data from TimescaleDB
type TimescaleDBProvider struct {
	db    *sql.DB
	table string
}

// ConnectionString builds a lib/pq keyword/value connection string
func ConnectionString(host, port, user, password, dbname, sslmode string) string {
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)
}

// Open opens and pings a PostgreSQL connection
func Open(connectionString string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// NewTimescaleDBProvider creates a provider reading bars from table, or from
// DefaultBarsTable when table is empty
func NewTimescaleDBProvider(db *sql.DB, table string) (*TimescaleDBProvider, error) {
	if table == "" {
		table = DefaultBarsTable
	}
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &TimescaleDBProvider{
		db:    db,
		table: table,
	}, nil
}

func (p *TimescaleDBProvider) rangeQuery() string {
	return fmt.Sprintf(`
		SELECT symbol, timestamp, open, high, low, close, volume, timeframe
		FROM %s
		WHERE symbol = $1 AND timeframe = $2 AND timestamp >= $3 AND timestamp <= $4
		ORDER BY timestamp ASC
	`, p.table)
}

func (p *TimescaleDBProvider) lastBarQuery() string {
	return fmt.Sprintf(`
		SELECT symbol, timestamp, open, high, low, close, volume, timeframe
		FROM %s
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY timestamp DESC
		LIMIT 1
	`, p.table)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBar(row rowScanner) (feed.BarData, error) {
	var bar feed.BarData
	err := row.Scan(
		&bar.Symbol,
		&bar.Timestamp,
		&bar.Open,
		&bar.High,
		&bar.Low,
		&bar.Close,
		&bar.Volume,
		&bar.Timeframe,
	)
	return bar, err
}

func (p *TimescaleDBProvider) queryBars(query string, args ...any) ([]feed.BarData, error) {
	rows, err := p.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", p.table, err)
	}
	defer rows.Close()

	var bars []feed.BarData
	for rows.Next() {
		bar, err := scanBar(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		bars = append(bars, bar)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return bars, nil
}

// GetBars retrieves historical OHLCV data for the given parameters
func (p *TimescaleDBProvider) GetBars(symbol string, timeframe string, start time.Time, end time.Time) ([]feed.BarData, error) {
	return p.queryBars(p.rangeQuery(), symbol, timeframe, start, end)
}

// GetLastBar gets the most recent bar for a symbol
func (p *TimescaleDBProvider) GetLastBar(symbol string, timeframe string) (feed.BarData, error) {
	bar, err := scanBar(p.db.QueryRow(p.lastBarQuery(), symbol, timeframe))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return feed.BarData{}, fmt.Errorf("%w for symbol %s timeframe %s", feed.ErrNoData, symbol, timeframe)
		}
		return feed.BarData{}, fmt.Errorf("failed to get last bar: %w", err)
	}
	return bar, nil
}

// Close closes the database connection
func (p *TimescaleDBProvider) Close() error {
	return p.db.Close()
}

// Verify that TimescaleDBProvider implements the HistoricalDataProvider interface
var _ feed.HistoricalDataProvider = (*TimescaleDBProvider)(nil)
