package feed

import (
	"fmt"
	"sync"
	"time"
)

// MemoryProvider serves bars held in memory. It is used by tests and by tools
// that build their own series.
type MemoryProvider struct {
	mu   sync.RWMutex
	bars map[string][]BarData
}

// NewMemoryProvider creates an empty in-memory provider
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		bars: make(map[string][]BarData),
	}
}

// AddBars registers bars for symbol, appending to any already stored
func (p *MemoryProvider) AddBars(symbol string, bars ...BarData) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, bar := range bars {
		bar.Symbol = symbol
		p.bars[symbol] = append(p.bars[symbol], bar)
	}
}

// GetBars returns the stored bars for symbol within [start, end]. A zero start
// or end leaves that side of the range open.
func (p *MemoryProvider) GetBars(symbol string, timeframe string, start time.Time, end time.Time) ([]BarData, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stored, ok := p.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}

	out := make([]BarData, 0, len(stored))
	for _, bar := range stored {
		if !start.IsZero() && bar.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && bar.Timestamp.After(end) {
			continue
		}
		if timeframe != "" && bar.Timeframe != "" && bar.Timeframe != timeframe {
			continue
		}
		out = append(out, bar)
	}
	return out, nil
}

var _ HistoricalDataProvider = (*MemoryProvider)(nil)
