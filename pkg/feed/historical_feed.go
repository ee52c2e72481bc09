package feed

import (
	"fmt"
	"sort"
	"time"

	"github.com/ridopark/notrade/pkg/event"
	"github.com/ridopark/notrade/pkg/logging"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// alignedBar is one slot of a symbol's series reindexed onto the master index.
// ok is false until the symbol's first native observation.
type alignedBar struct {
	bar BarData
	ok  bool
}

// HistoricReplayHandler replays historical bars for several symbols on a
// shared timestamp index. It is driven by a single simulation loop and is not
// safe for concurrent use.
type HistoricReplayHandler struct {
	provider   HistoricalDataProvider
	queue      *event.Queue
	symbols    []string
	timeframe  string
	startDate  time.Time
	endDate    time.Time
	maxHistory int
	logger     zerolog.Logger

	// Internal state
	index            []time.Time
	aligned          map[string][]alignedBar
	latest           map[string][]BarData
	currentIdx       int
	continueBacktest bool
	initialized      bool
}

// Option configures a HistoricReplayHandler
type Option func(*HistoricReplayHandler)

// WithMaxHistory caps the number of bars kept per symbol. Zero keeps everything.
func WithMaxHistory(n int) Option {
	return func(h *HistoricReplayHandler) {
		h.maxHistory = n
	}
}

// NewHistoricReplayHandler creates a replay handler that pushes market events onto queue
func NewHistoricReplayHandler(queue *event.Queue, provider HistoricalDataProvider, symbols []string, timeframe string, start, end time.Time, opts ...Option) *HistoricReplayHandler {
	h := &HistoricReplayHandler{
		provider:         provider,
		queue:            queue,
		symbols:          symbols,
		timeframe:        timeframe,
		startDate:        start,
		endDate:          end,
		logger:           logging.GetLogger("feed"),
		aligned:          make(map[string][]alignedBar),
		latest:           make(map[string][]BarData),
		continueBacktest: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Initialize loads every symbol's history and aligns it onto the union of all
// native timestamps, forward-filling gaps.
func (h *HistoricReplayHandler) Initialize() error {
	if h.initialized {
		return nil
	}

	seen := make(map[string]struct{}, len(h.symbols))
	for _, symbol := range h.symbols {
		if _, dup := seen[symbol]; dup {
			return fmt.Errorf("duplicate symbol %s in symbol list", symbol)
		}
		seen[symbol] = struct{}{}
	}

	series := make([][]BarData, len(h.symbols))
	var g errgroup.Group
	for i, symbol := range h.symbols {
		g.Go(func() error {
			bars, err := h.provider.GetBars(symbol, h.timeframe, h.startDate, h.endDate)
			if err != nil {
				return fmt.Errorf("failed to load data for symbol %s: %w", symbol, err)
			}
			series[i] = normalizeSeries(symbol, bars)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	h.index = unionIndex(series)
	for i, symbol := range h.symbols {
		h.aligned[symbol] = forwardFill(series[i], h.index)
		h.latest[symbol] = make([]BarData, 0)
		h.logger.Debug().
			Str("symbol", symbol).
			Int("native_bars", len(series[i])).
			Int("aligned_bars", len(h.index)).
			Msg("Aligned symbol history")
	}

	h.initialized = true
	h.logger.Info().
		Strs("symbols", h.symbols).
		Int("ticks", len(h.index)).
		Msg("Historical data loaded")
	return nil
}

// normalizeSeries sorts a symbol's bars chronologically and keeps the last bar
// for any repeated timestamp.
func normalizeSeries(symbol string, bars []BarData) []BarData {
	out := make([]BarData, len(bars))
	copy(out, bars)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	deduped := out[:0]
	for _, bar := range out {
		if bar.Symbol == "" {
			bar.Symbol = symbol
		}
		if n := len(deduped); n > 0 && deduped[n-1].Timestamp.Equal(bar.Timestamp) {
			deduped[n-1] = bar
			continue
		}
		deduped = append(deduped, bar)
	}
	return deduped
}

// unionIndex merges the native timestamps of all series into one sorted index
func unionIndex(series [][]BarData) []time.Time {
	var all []time.Time
	for _, bars := range series {
		for _, bar := range bars {
			all = append(all, bar.Timestamp)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Before(all[j])
	})

	index := all[:0]
	for _, ts := range all {
		if n := len(index); n > 0 && index[n-1].Equal(ts) {
			continue
		}
		index = append(index, ts)
	}
	return index
}

// forwardFill reindexes sorted bars onto index, repeating the last known bar
// where the symbol has no observation.
func forwardFill(bars []BarData, index []time.Time) []alignedBar {
	out := make([]alignedBar, len(index))
	var (
		last alignedBar
		j    int
	)
	for i, ts := range index {
		if j < len(bars) && bars[j].Timestamp.Equal(ts) {
			last = alignedBar{bar: bars[j], ok: true}
			j++
		}
		slot := last
		slot.bar.Timestamp = ts
		out[i] = slot
	}
	return out
}

// GetLatestBars returns the last n bars produced so far for symbol, oldest
// first. Fewer than n bars are returned when the history is shorter, and none
// when n is not positive.
func (h *HistoricReplayHandler) GetLatestBars(symbol string, n int) ([]BarData, error) {
	bars, ok := h.latest[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	if n < 1 {
		return []BarData{}, nil
	}
	if n > len(bars) {
		n = len(bars)
	}

	out := make([]BarData, n)
	copy(out, bars[len(bars)-n:])
	return out, nil
}

// LatestBar returns the most recent bar for symbol
func (h *HistoricReplayHandler) LatestBar(symbol string) (BarData, error) {
	bars, err := h.GetLatestBars(symbol, 1)
	if err != nil {
		return BarData{}, err
	}
	if len(bars) == 0 {
		return BarData{}, fmt.Errorf("%w for symbol %s", ErrNoData, symbol)
	}
	return bars[0], nil
}

// Quote returns the latest close as a degenerate top of book (bid == ask)
func (h *HistoricReplayHandler) Quote(symbol string) (float64, float64, error) {
	bar, err := h.LatestBar(symbol)
	if err != nil {
		return 0, 0, err
	}
	return bar.Close, bar.Close, nil
}

// UpdateBars appends the next aligned bar of every symbol to its history and
// pushes one market event. It pushes nothing and returns false once the index
// is exhausted or the handler was stopped.
func (h *HistoricReplayHandler) UpdateBars() bool {
	if !h.initialized {
		h.logger.Error().Msg("UpdateBars called before Initialize")
		h.continueBacktest = false
		return false
	}
	if !h.continueBacktest {
		return false
	}
	if h.currentIdx >= len(h.index) {
		h.continueBacktest = false
		return false
	}

	for _, symbol := range h.symbols {
		slot := h.aligned[symbol][h.currentIdx]
		if !slot.ok {
			continue
		}
		bars := append(h.latest[symbol], slot.bar)
		if h.maxHistory > 0 && len(bars) > h.maxHistory {
			bars = append(make([]BarData, 0, h.maxHistory), bars[len(bars)-h.maxHistory:]...)
		}
		h.latest[symbol] = bars
	}

	ts := h.index[h.currentIdx]
	h.currentIdx++
	h.queue.Push(event.Market{Timestamp: ts})

	h.logger.Trace().Time("timestamp", ts).Int("tick", h.currentIdx).Msg("Bars updated")
	return true
}

// Continue reports whether the replay may advance further
func (h *HistoricReplayHandler) Continue() bool {
	return h.continueBacktest
}

// Stop ends the replay at the next tick boundary
func (h *HistoricReplayHandler) Stop() {
	h.continueBacktest = false
}

// Reset rewinds the replay to the first tick
func (h *HistoricReplayHandler) Reset() error {
	h.currentIdx = 0
	h.continueBacktest = true
	for _, symbol := range h.symbols {
		h.latest[symbol] = make([]BarData, 0)
	}
	return nil
}

// Close closes the data handler (no-op for historical replay)
func (h *HistoricReplayHandler) Close() error {
	return nil
}

// Symbols returns the symbols in registration order
func (h *HistoricReplayHandler) Symbols() []string {
	return h.symbols
}

// Timeframe returns the timeframe of the data
func (h *HistoricReplayHandler) Timeframe() string {
	return h.timeframe
}

// TotalTicks returns the number of aligned timestamps loaded
func (h *HistoricReplayHandler) TotalTicks() int {
	return len(h.index)
}

// Progress returns the current progress as a percentage
func (h *HistoricReplayHandler) Progress() float64 {
	if len(h.index) == 0 {
		return 0
	}

	return float64(h.currentIdx) / float64(len(h.index)) * 100
}

// CurrentTimestamp returns the timestamp of the last replayed tick
func (h *HistoricReplayHandler) CurrentTimestamp() (time.Time, bool) {
	if h.currentIdx == 0 || h.currentIdx > len(h.index) {
		return time.Time{}, false
	}

	return h.index[h.currentIdx-1], true
}

// DateRange returns the first and last aligned timestamps
func (h *HistoricReplayHandler) DateRange() (time.Time, time.Time) {
	if len(h.index) == 0 {
		return time.Time{}, time.Time{}
	}

	return h.index[0], h.index[len(h.index)-1]
}

var (
	_ DataHandler = (*HistoricReplayHandler)(nil)
	_ PriceSource = (*HistoricReplayHandler)(nil)
)
