package feed

import (
	"errors"
	"testing"
	"time"

	"github.com/ridopark/notrade/pkg/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errProviderDown = errors.New("provider down")

type failingProvider struct{}

func (failingProvider) GetBars(string, string, time.Time, time.Time) ([]BarData, error) {
	return nil, errProviderDown
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func bar(d int, px, vol float64) BarData {
	return BarData{Timestamp: day(d), Open: px - 0.5, High: px + 1, Low: px - 1, Close: px, Volume: vol, Timeframe: "1d"}
}

// A trades every day, B skips day 3, C starts on day 2.
func newTestHandler(t *testing.T, opts ...Option) (*HistoricReplayHandler, *event.Queue) {
	t.Helper()
	p := NewMemoryProvider()
	p.AddBars("A", bar(1, 10, 100), bar(2, 11, 110), bar(3, 12, 120), bar(4, 13, 130))
	p.AddBars("B", bar(1, 20, 200), bar(2, 21, 210), bar(4, 23, 230))
	p.AddBars("C", bar(2, 30, 300), bar(3, 31, 310), bar(4, 32, 320))

	q := event.NewQueue()
	h := NewHistoricReplayHandler(q, p, []string{"A", "B", "C"}, "1d", time.Time{}, time.Time{}, opts...)
	require.NoError(t, h.Initialize())
	return h, q
}

func TestInitializeBuildsUnionIndex(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandler(t)
	assert.Equal(t, 4, h.TotalTicks())
	first, last := h.DateRange()
	assert.Equal(t, day(1), first)
	assert.Equal(t, day(4), last)
}

func TestUpdateBarsPushesOneMarketEventPerTick(t *testing.T) {
	t.Parallel()
	h, q := newTestHandler(t)

	for i := 1; i <= 4; i++ {
		require.True(t, h.UpdateBars())
		require.Equal(t, 1, q.Len())
		e := q.Pop()
		require.Equal(t, event.TypeMarket, e.GetType())
		assert.Equal(t, day(i), e.GetTimestamp())
	}

	assert.True(t, h.Continue())
	assert.False(t, h.UpdateBars())
	assert.False(t, h.Continue())
	assert.True(t, q.IsEmpty(), "exhausted handler must not push events")
	assert.InDelta(t, 100.0, h.Progress(), 1e-9)
}

func TestForwardFillRepeatsPreviousBar(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandler(t)
	for i := 0; i < 3; i++ {
		require.True(t, h.UpdateBars())
	}

	bars, err := h.GetLatestBars("B", 2)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	prev, filled := bars[0], bars[1]
	assert.Equal(t, day(3), filled.Timestamp)
	assert.Equal(t, prev.Open, filled.Open)
	assert.Equal(t, prev.High, filled.High)
	assert.Equal(t, prev.Low, filled.Low)
	assert.Equal(t, prev.Close, filled.Close)
	assert.Equal(t, prev.Volume, filled.Volume)
	assert.Equal(t, "B", filled.Symbol)
}

func TestLateSymbolHasNoBarsBeforeFirstObservation(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandler(t)
	require.True(t, h.UpdateBars())

	bars, err := h.GetLatestBars("C", 1)
	require.NoError(t, err)
	assert.Empty(t, bars)

	_, _, err = h.Quote("C")
	assert.ErrorIs(t, err, ErrNoData)

	require.True(t, h.UpdateBars())
	bid, ask, err := h.Quote("C")
	require.NoError(t, err)
	assert.Equal(t, 30.0, bid)
	assert.Equal(t, bid, ask)
}

func TestGetLatestBars(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandler(t)
	require.True(t, h.UpdateBars())
	require.True(t, h.UpdateBars())

	bars, err := h.GetLatestBars("A", 5)
	require.NoError(t, err)
	require.Len(t, bars, 2, "shorter history returns fewer bars")
	assert.Equal(t, 10.0, bars[0].Close)
	assert.Equal(t, 11.0, bars[1].Close)

	for _, n := range []int{0, -3} {
		none, err := h.GetLatestBars("A", n)
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none, "n=%d", n)
	}

	bars, err = h.GetLatestBars("A", 1)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 11.0, bars[0].Close)

	bars[0].Close = -1
	again, err := h.GetLatestBars("A", 1)
	require.NoError(t, err)
	assert.Equal(t, 11.0, again[0].Close, "returned bars must not alias the buffer")

	_, err = h.GetLatestBars("ZZZ", 1)
	assert.ErrorIs(t, err, ErrSymbolNotFound)
	_, _, err = h.Quote("ZZZ")
	assert.ErrorIs(t, err, ErrSymbolNotFound)
}

func TestStopEndsReplay(t *testing.T) {
	t.Parallel()
	h, q := newTestHandler(t)
	require.True(t, h.UpdateBars())
	q.Pop()

	h.Stop()
	assert.False(t, h.Continue())
	assert.False(t, h.UpdateBars())
	assert.True(t, q.IsEmpty())

	ts, ok := h.CurrentTimestamp()
	require.True(t, ok)
	assert.Equal(t, day(1), ts)

	require.NoError(t, h.Reset())
	assert.True(t, h.Continue())
	_, ok = h.CurrentTimestamp()
	assert.False(t, ok)
}

func TestMaxHistoryBoundsBuffer(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandler(t, WithMaxHistory(2))
	for h.UpdateBars() {
	}
	bars, err := h.GetLatestBars("A", 10)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 12.0, bars[0].Close)
	assert.Equal(t, 13.0, bars[1].Close)
}

func TestInitializeErrors(t *testing.T) {
	t.Parallel()
	q := event.NewQueue()

	h := NewHistoricReplayHandler(q, failingProvider{}, []string{"A"}, "1d", time.Time{}, time.Time{})
	assert.ErrorIs(t, h.Initialize(), errProviderDown)

	h = NewHistoricReplayHandler(q, NewMemoryProvider(), []string{"A"}, "1d", time.Time{}, time.Time{})
	assert.ErrorIs(t, h.Initialize(), ErrSymbolNotFound)

	h = NewHistoricReplayHandler(q, NewMemoryProvider(), []string{"A", "A"}, "1d", time.Time{}, time.Time{})
	assert.Error(t, h.Initialize())

	h = NewHistoricReplayHandler(q, NewMemoryProvider(), nil, "1d", time.Time{}, time.Time{})
	assert.False(t, h.UpdateBars(), "uninitialized handler must not advance")
}

func TestNormalizeSeriesSortsAndDedupes(t *testing.T) {
	t.Parallel()
	in := []BarData{bar(3, 3, 0), bar(1, 1, 0), bar(3, 33, 0)}
	out := normalizeSeries("X", in)
	require.Len(t, out, 2)
	assert.Equal(t, day(1), out[0].Timestamp)
	assert.Equal(t, 33.0, out[1].Close, "last bar wins for repeated timestamps")
	assert.Equal(t, "X", out[0].Symbol)
}

func TestMemoryProviderRange(t *testing.T) {
	t.Parallel()
	p := NewMemoryProvider()
	p.AddBars("A", bar(1, 1, 0), bar(2, 2, 0), bar(3, 3, 0))

	bars, err := p.GetBars("A", "1d", day(2), day(3))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 2.0, bars[0].Close)

	bars, err = p.GetBars("A", "1h", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, bars)
}
