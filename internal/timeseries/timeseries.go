// Package timeseries provides day-indexed tables of real values with NaN as the missing marker.
package timeseries

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Missing reports whether v carries no value.
func Missing(v float64) bool {
	return math.IsNaN(v)
}

// Series is a single column indexed by ascending days.
type Series struct {
	Dates  []time.Time
	Values []float64
}

// Len returns the number of observations.
func (s Series) Len() int {
	return len(s.Values)
}

// PctChange returns (v[t]-v[t-1])/v[t-1]. The first value has no prior day and is missing.
func (s Series) PctChange() Series {
	out := make([]float64, len(s.Values))
	for i := range s.Values {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (s.Values[i] - s.Values[i-1]) / s.Values[i-1]
	}
	return Series{Dates: s.Dates, Values: out}
}

// ReplaceInf turns ±Inf into missing values.
func (s Series) ReplaceInf() Series {
	out := make([]float64, len(s.Values))
	for i, v := range s.Values {
		if math.IsInf(v, 0) {
			v = math.NaN()
		}
		out[i] = v
	}
	return Series{Dates: s.Dates, Values: out}
}

// Interpolate fills interior gaps linearly by position. Leading and trailing
// gaps have no neighbour on one side and stay missing.
func (s Series) Interpolate() Series {
	out := make([]float64, len(s.Values))
	copy(out, s.Values)

	prev := -1
	for i, v := range out {
		if Missing(v) {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			step := (v - out[prev]) / float64(i-prev)
			for j := prev + 1; j < i; j++ {
				out[j] = out[prev] + step*float64(j-prev)
			}
		}
		prev = i
	}
	return Series{Dates: s.Dates, Values: out}
}

// InnerJoin keeps the dates present in both series, in ascending order.
func InnerJoin(a, b Series) (dates []time.Time, av, bv []float64) {
	idx := make(map[time.Time]int, len(b.Dates))
	for i, d := range b.Dates {
		idx[d] = i
	}
	for i, d := range a.Dates {
		j, ok := idx[d]
		if !ok {
			continue
		}
		dates = append(dates, d)
		av = append(av, a.Values[i])
		bv = append(bv, b.Values[j])
	}
	return dates, av, bv
}

// Table is an immutable set of named columns sharing one ascending day index.
type Table struct {
	dates   []time.Time
	columns []string
	index   map[string]int
	values  [][]float64 // values[column][row]
}

// NewTable validates and copies its inputs. Dates are truncated to days and
// must be strictly ascending; each column must have one value per date.
func NewTable(dates []time.Time, columns []string, values [][]float64) (*Table, error) {
	if len(columns) != len(values) {
		return nil, fmt.Errorf("got %d columns but %d value slices", len(columns), len(values))
	}
	t := &Table{
		dates:   make([]time.Time, len(dates)),
		columns: make([]string, len(columns)),
		index:   make(map[string]int, len(columns)),
		values:  make([][]float64, len(values)),
	}
	for i, d := range dates {
		t.dates[i] = Day(d)
		if i > 0 && !t.dates[i].After(t.dates[i-1]) {
			return nil, errors.New("dates must be strictly ascending")
		}
	}
	for i, c := range columns {
		if _, dup := t.index[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		if len(values[i]) != len(dates) {
			return nil, fmt.Errorf("column %q has %d values for %d dates", c, len(values[i]), len(dates))
		}
		t.columns[i] = c
		t.index[c] = i
		t.values[i] = append([]float64(nil), values[i]...)
	}
	return t, nil
}

// FromSeries assembles a table from per-column series on possibly different
// dates. Dates absent from a column become missing; dates where every column
// is missing are dropped.
func FromSeries(columns map[string]Series) *Table {
	names := make([]string, 0, len(columns))
	daySet := make(map[time.Time]struct{})
	for name, s := range columns {
		names = append(names, name)
		for i, d := range s.Dates {
			if !Missing(s.Values[i]) {
				daySet[Day(d)] = struct{}{}
			}
		}
	}
	sort.Strings(names)

	dates := make([]time.Time, 0, len(daySet))
	for d := range daySet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	row := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		row[d] = i
	}

	values := make([][]float64, len(names))
	for c, name := range names {
		col := make([]float64, len(dates))
		for i := range col {
			col[i] = math.NaN()
		}
		s := columns[name]
		for i, d := range s.Dates {
			if r, ok := row[Day(d)]; ok && !Missing(s.Values[i]) {
				col[r] = s.Values[i]
			}
		}
		values[c] = col
	}

	return &Table{dates: dates, columns: names, index: indexOf(names), values: values}
}

func indexOf(columns []string) map[string]int {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		idx[c] = i
	}
	return idx
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.dates)
}

// Dates returns a copy of the day index.
func (t *Table) Dates() []time.Time {
	return append([]time.Time(nil), t.dates...)
}

// Columns returns a copy of the column names in table order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Has reports whether the table carries column c.
func (t *Table) Has(c string) bool {
	_, ok := t.index[c]
	return ok
}

// Column returns a copy of column c.
func (t *Table) Column(c string) (Series, bool) {
	i, ok := t.index[c]
	if !ok {
		return Series{}, false
	}
	return Series{
		Dates:  t.Dates(),
		Values: append([]float64(nil), t.values[i]...),
	}, true
}

// Value returns the cell at row r of column c.
func (t *Table) Value(r int, c string) (float64, bool) {
	i, ok := t.index[c]
	if !ok || r < 0 || r >= len(t.dates) {
		return math.NaN(), false
	}
	return t.values[i][r], true
}

// Sum returns the total of the non-missing values of column c.
func (t *Table) Sum(c string) float64 {
	i, ok := t.index[c]
	if !ok {
		return 0
	}
	var total float64
	for _, v := range t.values[i] {
		if !Missing(v) {
			total += v
		}
	}
	return total
}

// Interpolate returns a copy with every column's interior gaps filled
// linearly by position.
func (t *Table) Interpolate() *Table {
	out := &Table{dates: t.dates, columns: t.columns, index: t.index, values: make([][]float64, len(t.values))}
	for i, col := range t.values {
		out.values[i] = Series{Dates: t.dates, Values: col}.Interpolate().Values
	}
	return out
}

// Select returns a table restricted to the given columns, in the given order.
// Unknown columns are ignored.
func (t *Table) Select(columns []string) *Table {
	out := &Table{dates: t.dates}
	for _, c := range columns {
		i, ok := t.index[c]
		if !ok {
			continue
		}
		out.columns = append(out.columns, c)
		out.values = append(out.values, t.values[i])
	}
	out.index = indexOf(out.columns)
	return out
}
