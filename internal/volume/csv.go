// Package volume loads daily traded volume per ticker, from a CSV file or by
// scraping Yahoo Finance history pages.
package volume

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rewired-gh/tickerpulse/internal/timeseries"
)

// dateLayouts are the accepted date cell formats.
var dateLayouts = []string{"2006-01-02", "Jan 02, 2006", "Jan 2, 2006"}

// ParseDate parses a date cell in any accepted layout, as a UTC day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if d, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ParseVolume parses a volume cell. Empty and placeholder cells are missing.
func ParseVolume(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	switch strings.ToLower(s) {
	case "", "-", "nan", "null", "n/a":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// ReadCSV reads a volume table: a header row naming the tickers after a date
// column, then one row per day in any order. Days where every ticker is
// missing are dropped.
func ReadCSV(r io.Reader) (*timeseries.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("volume csv is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read volume csv header: %w", err)
	}
	if len(header) < 2 {
		return nil, errors.New("volume csv needs a date column and at least one ticker")
	}
	tickers := make([]string, len(header)-1)
	for i, h := range header[1:] {
		tickers[i] = strings.TrimSpace(h)
	}

	columns := make(map[string]timeseries.Series, len(tickers))
	seen := make(map[time.Time]bool)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		d, err := ParseDate(rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if seen[d] {
			return nil, fmt.Errorf("line %d: duplicate date %s", line, d.Format("2006-01-02"))
		}
		seen[d] = true

		for i, ticker := range tickers {
			v := math.NaN()
			if i+1 < len(rec) {
				if v, err = ParseVolume(rec[i+1]); err != nil {
					return nil, fmt.Errorf("line %d, %s: %w", line, ticker, err)
				}
			}
			s := columns[ticker]
			s.Dates = append(s.Dates, d)
			s.Values = append(s.Values, v)
			columns[ticker] = s
		}
	}
	if len(columns) != len(tickers) {
		return nil, errors.New("volume csv has duplicate ticker columns")
	}
	return timeseries.FromSeries(columns), nil
}

// WriteCSV writes t in the layout ReadCSV accepts, oldest day first.
func WriteCSV(w io.Writer, t *timeseries.Table) error {
	cw := csv.NewWriter(w)
	cols := t.Columns()
	if err := cw.Write(append([]string{"Date"}, cols...)); err != nil {
		return err
	}
	row := make([]string, len(cols)+1)
	for r, d := range t.Dates() {
		row[0] = d.Format("2006-01-02")
		for i, c := range cols {
			v, _ := t.Value(r, c)
			if timeseries.Missing(v) {
				row[i+1] = ""
				continue
			}
			row[i+1] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
