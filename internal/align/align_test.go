package align

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/tickerpulse/internal/timeseries"
)

func days(n int) []time.Time {
	start := time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

func mustTable(t *testing.T, dates []time.Time, columns []string, values ...[]float64) *timeseries.Table {
	t.Helper()
	tbl, err := timeseries.NewTable(dates, columns, values)
	require.NoError(t, err)
	return tbl
}

func TestIntersectColumns(t *testing.T) {
	d := days(2)
	volume := mustTable(t, d, []string{"AAPL", "MSFT", "TSLA"}, []float64{1, 2}, []float64{1, 2}, []float64{1, 2})
	mentions := mustTable(t, d, []string{"TSLA", "GME", "AAPL"}, []float64{1, 2}, []float64{1, 2}, []float64{1, 2})

	v, m := IntersectColumns(volume, mentions)
	assert.Equal(t, []string{"TSLA", "AAPL"}, v.Columns())
	assert.Equal(t, []string{"TSLA", "AAPL"}, m.Columns())
}

func TestAlign_MissingTicker(t *testing.T) {
	d := days(3)
	volume := mustTable(t, d, []string{"AAPL"}, []float64{1, 2, 3})
	mentions := mustTable(t, d, []string{"AAPL", "GME"}, []float64{1, 2, 3}, []float64{3, 2, 1})

	_, err := Align(volume, mentions, "GME")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingTicker))

	_, err = Align(mentions, volume, "GME")
	assert.True(t, errors.Is(err, ErrMissingTicker))
}

func TestAlign_PctChangeAndJoin(t *testing.T) {
	d := days(5)
	// volume lacks day 0 and day 4; mentions lack day 1
	volume := mustTable(t, d[1:4], []string{"AAPL"}, []float64{100, 150, 75})
	mentions := mustTable(t, []time.Time{d[0], d[2], d[3], d[4]}, []string{"AAPL"}, []float64{2, 4, 4, 8})

	s, err := Align(volume, mentions, "AAPL")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", s.Ticker)
	assert.Equal(t, []time.Time{d[2], d[3]}, s.Dates)
	assert.Equal(t, []float64{1, 0}, s.MentionPctChange)
	assert.Equal(t, []float64{0.5, -0.5}, s.VolumePctChange)
	assert.Equal(t, 2, s.Len())
}

func TestAlign_InfinityIsInterpolated(t *testing.T) {
	d := days(5)
	// 0 → 5 is an infinite change, interpolated between its neighbours
	mentions := mustTable(t, d, []string{"AMD"}, []float64{2, 0, 5, 10, 10})
	volume := mustTable(t, d, []string{"AMD"}, []float64{1, 2, 3, 4, 5})

	s, err := Align(volume, mentions, "AMD")
	require.NoError(t, err)

	// pct change: NaN, -1, +Inf→(-1+1)/2=0, 1, 0
	require.Len(t, s.MentionPctChange, 5)
	assert.True(t, math.IsNaN(s.MentionPctChange[0]), "leading value stays missing")
	assert.InDelta(t, -1.0, s.MentionPctChange[1], 1e-12)
	assert.InDelta(t, 0.0, s.MentionPctChange[2], 1e-12)
	assert.InDelta(t, 1.0, s.MentionPctChange[3], 1e-12)
	assert.InDelta(t, 0.0, s.MentionPctChange[4], 1e-12)
}

func TestAlign_TrailingGapStaysMissing(t *testing.T) {
	d := days(4)
	mentions := mustTable(t, d, []string{"AMD"}, []float64{1, 2, 0, 0})
	volume := mustTable(t, d, []string{"AMD"}, []float64{1, 2, 3, 4})

	s, err := Align(volume, mentions, "AMD")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(s.MentionPctChange[3]), "0/0 at the end has no right neighbour")
}

func TestAlign_DatesAreSubsetOfIntersection(t *testing.T) {
	d := days(10)
	volume := mustTable(t, d[:7], []string{"X"}, []float64{1, 2, 3, 4, 5, 6, 7})
	mentions := mustTable(t, d[4:], []string{"X"}, []float64{1, 2, 3, 4, 5, 6})

	s, err := Align(volume, mentions, "X")
	require.NoError(t, err)

	shared := map[time.Time]bool{d[4]: true, d[5]: true, d[6]: true}
	assert.LessOrEqual(t, s.Len(), 6)
	for _, day := range s.Dates {
		assert.True(t, shared[day], "unexpected day %v", day)
	}
	assert.Len(t, s.MentionPctChange, s.Len())
	assert.Len(t, s.VolumePctChange, s.Len())
}

func TestAlign_EmptyTables(t *testing.T) {
	volume := mustTable(t, nil, []string{"X"}, []float64{})
	mentions := mustTable(t, nil, []string{"X"}, []float64{})
	s, err := Align(volume, mentions, "X")
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}
