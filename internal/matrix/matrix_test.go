package matrix

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/tickerpulse/internal/models"
)

var day1 = time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC)

func post(id string, ts time.Time, tickers ...string) models.RawRecord {
	r := models.NewPost(id, "stocks", ts, "")
	r.Tickers = tickers
	return r
}

func comment(id, postID string, ts time.Time, tickers ...string) models.RawRecord {
	r := models.NewComment(id, postID, "wallstreetbets", ts, "")
	r.Tickers = tickers
	return r
}

func TestBuild_PostAndDeduplicatedComment(t *testing.T) {
	records := []models.RawRecord{
		post("A", day1.Add(9*time.Hour), "AAPL"),
		comment("B", "A", day1.Add(10*time.Hour), "AAPL"),
		comment("B", "A", day1.Add(10*time.Hour), "AAPL"),
	}

	m := Build(records, DefaultOptions())

	require.Equal(t, 1, m.Rows())
	assert.Equal(t, []time.Time{day1}, m.Days())
	assert.Equal(t, []string{"AAPL"}, m.Tickers())
	assert.Equal(t, 2, m.Count(day1, "AAPL"))
	assert.Equal(t, 2, m.Total("AAPL"))
}

func TestBuild_Empty(t *testing.T) {
	m := Build(nil, DefaultOptions())
	assert.Equal(t, 0, m.Rows())
	assert.Empty(t, m.Tickers())
	assert.Equal(t, 0, m.Table().Len())
	assert.Empty(t, m.Table().Columns())
}

func TestBuild_DropsSingleMentionTickers(t *testing.T) {
	records := []models.RawRecord{
		post("p1", day1, "AAPL", "TSLA"),
		post("p2", day1.AddDate(0, 0, 1), "AAPL"),
		post("p3", day1.AddDate(0, 0, 2)),
	}
	m := Build(records, DefaultOptions())

	assert.Equal(t, []string{"AAPL"}, m.Tickers())
	assert.False(t, m.Has("TSLA"))
	// days without ticker mentions still get a row
	assert.Equal(t, 3, m.Rows())
	for _, tk := range m.Tickers() {
		assert.Greater(t, m.Total(tk), 1)
	}
}

func TestBuild_TickersAreASet(t *testing.T) {
	records := []models.RawRecord{
		post("p1", day1, "AMD", "AMD", "AMD"),
		post("p2", day1, "AMD"),
	}
	m := Build(records, DefaultOptions())
	assert.Equal(t, 2, m.Count(day1, "AMD"))
}

func TestBuild_IgnoresEmptyTicker(t *testing.T) {
	records := []models.RawRecord{
		post("p1", day1, ""),
		post("p2", day1, ""),
		post("p3", day1, "", "AAPL"),
		post("p4", day1, "AAPL"),
	}
	m := Build(records, DefaultOptions())

	assert.Equal(t, []string{"AAPL"}, m.Tickers())
	assert.False(t, m.Has(""))
	assert.Equal(t, 2, m.Total("AAPL"))
}

func TestBuild_PostAndCommentNeverCollapse(t *testing.T) {
	// a comment whose id happens to equal its post id
	records := []models.RawRecord{
		post("X", day1, "NVDA"),
		comment("X", "X", day1, "NVDA"),
	}
	m := Build(records, DefaultOptions())
	assert.Equal(t, 2, m.Count(day1, "NVDA"))
}

func TestBuild_PostsDeduplicatedByPostID(t *testing.T) {
	records := []models.RawRecord{
		post("p1", day1, "MSFT"),
		post("p1", day1.AddDate(0, 0, 1), "MSFT"),
		post("p2", day1, "MSFT"),
	}
	m := Build(records, DefaultOptions())
	assert.Equal(t, 2, m.Total("MSFT"))
	// the first occurrence wins, so the second day has no mentions
	assert.Equal(t, 0, m.Count(day1.AddDate(0, 0, 1), "MSFT"))
}

func TestBuild_Cutoff(t *testing.T) {
	before := DefaultCutoff.Add(-time.Minute)
	onCutoff := DefaultCutoff.Add(23 * time.Hour)
	records := []models.RawRecord{
		post("old", before, "AAPL"),
		post("p1", onCutoff, "AAPL"),
		post("p2", onCutoff, "AAPL"),
	}

	m := Build(records, DefaultOptions())
	assert.Equal(t, []time.Time{DefaultCutoff}, m.Days())
	assert.Equal(t, 2, m.Total("AAPL"))

	unfiltered := Build(records, Options{})
	assert.Equal(t, 2, unfiltered.Rows())
	assert.Equal(t, 3, unfiltered.Total("AAPL"))
}

func TestBuild_UTCDay(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	// 2021-04-01 22:00 EST is 2021-04-02 03:00 UTC
	records := []models.RawRecord{
		post("p1", time.Date(2021, 4, 1, 22, 0, 0, 0, est), "GME"),
		post("p2", time.Date(2021, 4, 2, 1, 0, 0, 0, time.UTC), "GME"),
	}
	m := Build(records, DefaultOptions())
	assert.Equal(t, []time.Time{day1.AddDate(0, 0, 1)}, m.Days())
}

func TestBuild_DuplicateFeedIsIdempotent(t *testing.T) {
	records := []models.RawRecord{
		post("p1", day1, "AAPL", "AMD"),
		comment("c1", "p1", day1, "AMD"),
		comment("c2", "p1", day1.AddDate(0, 0, 1), "AAPL", "AMD"),
		post("p2", day1.AddDate(0, 0, 3), "AAPL"),
	}
	once := Build(records, DefaultOptions())
	twice := Build(append(append([]models.RawRecord{}, records...), records...), DefaultOptions())

	assert.Equal(t, once.Days(), twice.Days())
	assert.Equal(t, once.Tickers(), twice.Tickers())
	for _, d := range once.Days() {
		for _, tk := range once.Tickers() {
			assert.Equal(t, once.Count(d, tk), twice.Count(d, tk))
		}
	}
}

func TestMatrix_TableAndColumn(t *testing.T) {
	records := []models.RawRecord{
		post("p1", day1, "AAPL"),
		post("p2", day1.AddDate(0, 0, 2), "AAPL", "AMD"),
		post("p3", day1.AddDate(0, 0, 2), "AMD"),
	}
	m := Build(records, DefaultOptions())
	tbl := m.Table()

	assert.Equal(t, []string{"AAPL", "AMD"}, tbl.Columns())
	col, ok := tbl.Column("AMD")
	require.True(t, ok)
	assert.Equal(t, []float64{0, 2}, col.Values)

	series, ok := m.Column("AAPL")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 1}, series.Values)

	_, ok = m.Column("TSLA")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Count(day1.AddDate(0, 0, 1), "AAPL"))
}

func TestSummarize(t *testing.T) {
	records := []models.RawRecord{
		post("p1", day1, "AAPL"),
		comment("c1", "p1", day1, "AAPL", "AMD"),
		comment("c1", "p1", day1, "AAPL", "AMD"),
		comment("c2", "p1", day1.AddDate(0, 0, 1)),
		post("p2", day1.AddDate(0, 0, 1), "AMD", "AAPL"),
	}
	m := Build(records, DefaultOptions())
	s := Summarize(records, m, 1)

	assert.Equal(t, 4, s.Records)
	assert.Equal(t, 3, s.WithTickers)
	assert.Equal(t, []Ranked{{"comment", 2}, {"post", 2}}, s.ByKind)
	assert.Equal(t, []Ranked{{"stocks", 2}, {"wallstreetbets", 2}}, s.BySource)
	assert.Equal(t, day1, s.FirstDay)
	assert.Equal(t, day1.AddDate(0, 0, 1), s.LastDay)
	assert.Equal(t, []Ranked{{"AAPL", 2}}, s.TopTickerDays)
	assert.Equal(t, []Ranked{{"2021-04-01", 3}}, s.TopDays)
}
