package matrix

import (
	"sort"
	"time"

	"github.com/rewired-gh/tickerpulse/internal/models"
)

// Ranked pairs a label with a count.
type Ranked struct {
	Label string
	Count int
}

// Summary describes a deduplicated record set and the matrix built from it.
type Summary struct {
	Records       int
	BySource      []Ranked
	ByKind        []Ranked
	WithTickers   int
	FirstDay      time.Time
	LastDay       time.Time
	TopTickerDays []Ranked // highest single-day count per ticker
	TopDays       []Ranked // busiest days by total mentions
}

// Summarize reports dataset statistics. Records are deduplicated first; top
// lists are truncated to topN entries.
func Summarize(records []models.RawRecord, m *Matrix, topN int) Summary {
	records = Dedup(records)
	s := Summary{Records: len(records)}

	sources := make(map[string]int)
	kinds := make(map[string]int)
	for _, r := range records {
		sources[r.Source]++
		kinds[string(r.Kind)]++
		if len(r.Tickers) > 0 {
			s.WithTickers++
		}
	}
	s.BySource = rank(sources, 0)
	s.ByKind = rank(kinds, 0)

	if m.Rows() > 0 {
		s.FirstDay = m.days[0]
		s.LastDay = m.days[len(m.days)-1]
	}

	peaks := make(map[string]int, len(m.tickers))
	for j, t := range m.tickers {
		for _, row := range m.counts {
			if row[j] > peaks[t] {
				peaks[t] = row[j]
			}
		}
	}
	s.TopTickerDays = rank(peaks, topN)

	busiest := make(map[string]int, len(m.days))
	for i, d := range m.days {
		busiest[d.Format(time.DateOnly)] = m.DayTotal(i)
	}
	s.TopDays = rank(busiest, topN)

	return s
}

// rank orders counts descending with label as tie-break. n <= 0 keeps everything.
func rank(counts map[string]int, n int) []Ranked {
	out := make([]Ranked, 0, len(counts))
	for label, c := range counts {
		out = append(out, Ranked{Label: label, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
