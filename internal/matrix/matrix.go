// Package matrix builds the day × ticker mention count table from scraped records.
package matrix

import (
	"sort"
	"time"

	"github.com/rewired-gh/tickerpulse/internal/models"
	"github.com/rewired-gh/tickerpulse/internal/timeseries"
)

// DefaultCutoff is the first day of the collected dataset.
var DefaultCutoff = time.Date(2021, 3, 17, 0, 0, 0, 0, time.UTC)

// MinColumnTotal is the smallest column total a ticker needs to be kept.
const MinColumnTotal = 2

// Options controls matrix construction.
type Options struct {
	// Cutoff discards records whose UTC day is before it. Zero disables the filter.
	Cutoff time.Time
}

// DefaultOptions returns the options used by the analysis pipeline.
func DefaultOptions() Options {
	return Options{Cutoff: DefaultCutoff}
}

// Matrix is an immutable day × ticker table of mention counts.
type Matrix struct {
	days    []time.Time
	tickers []string
	column  map[string]int
	counts  [][]int // counts[day][ticker]
}

type cell struct {
	day    time.Time
	ticker string
}

// Build deduplicates records and counts per-day ticker mentions.
func Build(records []models.RawRecord, opts Options) *Matrix {
	cutoff := time.Time{}
	if !opts.Cutoff.IsZero() {
		cutoff = timeseries.Day(opts.Cutoff)
	}

	daySet := make(map[time.Time]struct{})
	acc := make(map[cell]int)
	totals := make(map[string]int)

	for _, r := range Dedup(records) {
		day := timeseries.Day(r.Timestamp)
		if !cutoff.IsZero() && day.Before(cutoff) {
			continue
		}
		daySet[day] = struct{}{}

		for _, t := range uniqueTickers(r.Tickers) {
			acc[cell{day, t}]++
			totals[t]++
		}
	}

	m := &Matrix{column: make(map[string]int)}
	for d := range daySet {
		m.days = append(m.days, d)
	}
	sort.Slice(m.days, func(i, j int) bool { return m.days[i].Before(m.days[j]) })

	for t, n := range totals {
		if n >= MinColumnTotal {
			m.tickers = append(m.tickers, t)
		}
	}
	sort.Strings(m.tickers)
	for i, t := range m.tickers {
		m.column[t] = i
	}

	m.counts = make([][]int, len(m.days))
	for i, d := range m.days {
		row := make([]int, len(m.tickers))
		for j, t := range m.tickers {
			row[j] = acc[cell{d, t}]
		}
		m.counts[i] = row
	}
	return m
}

// Dedup keeps the first occurrence of every post (by post id) and every
// comment (by comment id). Posts are returned before comments.
func Dedup(records []models.RawRecord) []models.RawRecord {
	seen := make(map[string]struct{}, len(records))
	var posts, comments []models.RawRecord
	for _, r := range records {
		key := r.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if r.Kind == models.KindComment {
			comments = append(comments, r)
		} else {
			posts = append(posts, r)
		}
	}
	return append(posts, comments...)
}

func uniqueTickers(tickers []string) []string {
	set := make(map[string]struct{}, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if _, ok := set[t]; ok || t == "" {
			continue
		}
		set[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Days returns the row index, ascending.
func (m *Matrix) Days() []time.Time {
	return append([]time.Time(nil), m.days...)
}

// Tickers returns the retained ticker columns in lexical order.
func (m *Matrix) Tickers() []string {
	return append([]string(nil), m.tickers...)
}

// Rows returns the number of days.
func (m *Matrix) Rows() int {
	return len(m.days)
}

// Has reports whether ticker survived the column total filter.
func (m *Matrix) Has(ticker string) bool {
	_, ok := m.column[ticker]
	return ok
}

// Count returns the mentions of ticker on day. Unknown days or tickers count zero.
func (m *Matrix) Count(day time.Time, ticker string) int {
	j, ok := m.column[ticker]
	if !ok {
		return 0
	}
	d := timeseries.Day(day)
	i := sort.Search(len(m.days), func(i int) bool { return !m.days[i].Before(d) })
	if i == len(m.days) || !m.days[i].Equal(d) {
		return 0
	}
	return m.counts[i][j]
}

// Total returns the column total for ticker.
func (m *Matrix) Total(ticker string) int {
	j, ok := m.column[ticker]
	if !ok {
		return 0
	}
	var total int
	for _, row := range m.counts {
		total += row[j]
	}
	return total
}

// DayTotal returns the number of mentions across all retained tickers on row i.
func (m *Matrix) DayTotal(i int) int {
	var total int
	for _, n := range m.counts[i] {
		total += n
	}
	return total
}

// Column returns the counts of ticker as a series.
func (m *Matrix) Column(ticker string) (timeseries.Series, bool) {
	j, ok := m.column[ticker]
	if !ok {
		return timeseries.Series{}, false
	}
	values := make([]float64, len(m.days))
	for i, row := range m.counts {
		values[i] = float64(row[j])
	}
	return timeseries.Series{Dates: m.Days(), Values: values}, true
}

// Table converts the matrix into a real-valued table for alignment.
func (m *Matrix) Table() *timeseries.Table {
	values := make([][]float64, len(m.tickers))
	for j := range m.tickers {
		col := make([]float64, len(m.days))
		for i, row := range m.counts {
			col[i] = float64(row[j])
		}
		values[j] = col
	}
	t, err := timeseries.NewTable(m.days, m.tickers, values)
	if err != nil {
		// days are unique and ascending by construction
		panic(err)
	}
	return t
}
