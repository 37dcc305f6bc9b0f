// Package align joins the trading volume table with the mention count table
// on shared tickers and dates.
package align

import (
	"errors"
	"fmt"
	"time"

	"github.com/rewired-gh/tickerpulse/internal/timeseries"
)

// ErrMissingTicker is returned when a ticker is absent from a source table.
var ErrMissingTicker = errors.New("ticker missing from source table")

// Series holds the day-over-day percent changes of one ticker on the dates
// both tables share. Missing values are NaN.
type Series struct {
	Ticker           string
	Dates            []time.Time
	MentionPctChange []float64
	VolumePctChange  []float64
}

// Len returns the number of aligned days.
func (s Series) Len() int {
	return len(s.Dates)
}

// IntersectColumns restricts both tables to the tickers present in both, in
// the mention table's column order.
func IntersectColumns(volume, mentions *timeseries.Table) (*timeseries.Table, *timeseries.Table) {
	var shared []string
	for _, c := range mentions.Columns() {
		if volume.Has(c) {
			shared = append(shared, c)
		}
	}
	return volume.Select(shared), mentions.Select(shared)
}

// Align computes percent changes for ticker in both tables, interpolates
// interior gaps and inner-joins the results on date.
func Align(volume, mentions *timeseries.Table, ticker string) (Series, error) {
	vol, ok := volume.Column(ticker)
	if !ok {
		return Series{}, fmt.Errorf("%w: %s not in volume table", ErrMissingTicker, ticker)
	}
	mtn, ok := mentions.Column(ticker)
	if !ok {
		return Series{}, fmt.Errorf("%w: %s not in mention table", ErrMissingTicker, ticker)
	}

	mtn = mtn.PctChange().ReplaceInf().Interpolate()
	vol = vol.PctChange().ReplaceInf().Interpolate()

	dates, m, v := timeseries.InnerJoin(mtn, vol)
	return Series{
		Ticker:           ticker,
		Dates:            dates,
		MentionPctChange: m,
		VolumePctChange:  v,
	}, nil
}
