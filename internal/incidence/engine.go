// Package incidence measures how often mention direction and volume direction
// agree, per ticker and across a ticker list.
package incidence

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/rewired-gh/tickerpulse/internal/align"
	"github.com/rewired-gh/tickerpulse/internal/logger"
	"github.com/rewired-gh/tickerpulse/internal/models"
	"github.com/rewired-gh/tickerpulse/internal/timeseries"
)

// DefaultTolerance is the largest gap between incidence and offset incidence
// still counted as within tolerance.
const DefaultTolerance = 0.025

type Config struct {
	Tolerance float64
	// Fallback draws the placeholder values for tickers missing from a source
	// table. Nil means a freshly seeded generator.
	Fallback *rand.Rand
}

func DefaultConfig() Config {
	return Config{Tolerance: DefaultTolerance}
}

// Engine computes incidence statistics over two read-only source tables.
type Engine struct {
	volume   *timeseries.Table
	mentions *timeseries.Table
	tickers  []string
	config   Config
	rng      *rand.Rand
}

// New builds an engine. Both tables are trimmed to their shared tickers for
// the default ticker list, but per-ticker lookups still see the full tables so
// a missing ticker is reported as such.
func New(volume, mentions *timeseries.Table, config Config) *Engine {
	if config.Tolerance <= 0 {
		config.Tolerance = DefaultTolerance
	}
	rng := config.Fallback
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
	}
	_, shared := align.IntersectColumns(volume, mentions)
	return &Engine{
		volume:   volume,
		mentions: mentions,
		tickers:  shared.Columns(),
		config:   config,
		rng:      rng,
	}
}

// Tickers returns the tickers present in both tables, in mention order.
func (e *Engine) Tickers() []string {
	return append([]string(nil), e.tickers...)
}

// Directions aligns ticker and converts it into direction series.
func (e *Engine) Directions(ticker string) (Series, error) {
	s, err := align.Align(e.volume, e.mentions, ticker)
	if err != nil {
		return Series{}, err
	}
	return Directions(s), nil
}

// Incidence returns the same-day agreement rate for ticker.
func (e *Engine) Incidence(ticker string) (float64, error) {
	return e.IncidenceOffset(ticker, 0, 0)
}

// IncidenceOffset returns the agreement rate with the mention side shifted by
// offsetMentions positions and the volume side by offsetVolume positions.
func (e *Engine) IncidenceOffset(ticker string, offsetMentions, offsetVolume int) (float64, error) {
	ds, err := e.Directions(ticker)
	if err != nil {
		return 0, err
	}
	rate, err := RateOffset(ds, offsetMentions, offsetVolume)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", ticker, err)
	}
	return rate, nil
}

// Correlation returns the Pearson coefficient of the two direction series of ticker.
func (e *Engine) Correlation(ticker string) (float64, error) {
	ds, err := e.Directions(ticker)
	if err != nil {
		return 0, err
	}
	c, err := Correlation(ds)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", ticker, err)
	}
	return c, nil
}

// Report computes one row per ticker plus the Mean row. An empty ticker list
// means every ticker shared by both tables.
//
// A ticker absent from either table gets a synthetic row with uniform random
// values in [0,1] so the report keeps one row per requested ticker; such rows
// are flagged and are not signal. A ticker with no comparable days gets an
// empty row that the Mean ignores. Any other failure aborts the report.
func (e *Engine) Report(tickers []string, offsetMentions, offsetVolume int) (*models.IncidenceReport, error) {
	if len(tickers) == 0 {
		tickers = e.tickers
	}

	report := &models.IncidenceReport{
		OffsetMentions: offsetMentions,
		OffsetVolume:   offsetVolume,
		Tolerance:      e.config.Tolerance,
		Rows:           make([]models.IncidenceRow, 0, len(tickers)),
		GeneratedAt:    time.Now(),
	}

	for _, ticker := range tickers {
		row, err := e.row(ticker, offsetMentions, offsetVolume)
		if err != nil {
			return nil, err
		}
		report.Rows = append(report.Rows, row)
	}

	report.Mean = mean(report.Rows)
	if len(report.Rows) > 0 && report.Mean.Rows == 0 {
		return nil, fmt.Errorf("all %d tickers: %w", len(report.Rows), ErrEmptyComparisonSet)
	}
	return report, nil
}

func (e *Engine) row(ticker string, offsetMentions, offsetVolume int) (models.IncidenceRow, error) {
	row := models.IncidenceRow{Ticker: ticker}

	ds, err := e.Directions(ticker)
	if errors.Is(err, align.ErrMissingTicker) {
		row.Status = models.RowSynthetic
		row.Reason = err.Error()
		row.Incidence = e.rng.Float64()
		row.IncidenceOffset = e.rng.Float64()
		row.WithinTolerance = e.within(row)
		logger.Debug("Substituting random incidence for %s: %v", ticker, err)
		return row, nil
	}
	if err != nil {
		return row, fmt.Errorf("failed to align %s: %w", ticker, err)
	}

	inc, err := Rate(ds)
	if err == nil {
		row.IncidenceOffset, err = RateOffset(ds, offsetMentions, offsetVolume)
	}
	if errors.Is(err, ErrEmptyComparisonSet) {
		row.Status = models.RowEmpty
		row.Reason = err.Error()
		logger.Debug("No comparable days for %s (offsets %d/%d)", ticker, offsetMentions, offsetVolume)
		return row, nil
	}
	if err != nil {
		return row, fmt.Errorf("failed to compute incidence for %s: %w", ticker, err)
	}

	row.Incidence = inc
	row.WithinTolerance = e.within(row)
	return row, nil
}

func (e *Engine) within(row models.IncidenceRow) bool {
	d := row.Incidence - row.IncidenceOffset
	if d < 0 {
		d = -d
	}
	return d < e.config.Tolerance
}

// mean averages the non-empty rows. Values are summed in sorted order so the
// result does not depend on the order of the ticker list.
func mean(rows []models.IncidenceRow) models.MeanRow {
	var inc, off []float64
	var within int
	var m models.MeanRow
	for _, r := range rows {
		if r.Status == models.RowEmpty {
			continue
		}
		if r.Status == models.RowSynthetic {
			m.SyntheticRows++
		}
		inc = append(inc, r.Incidence)
		off = append(off, r.IncidenceOffset)
		if r.WithinTolerance {
			within++
		}
	}
	m.Rows = len(inc)
	if m.Rows == 0 {
		return m
	}
	m.Incidence = sortedMean(inc)
	m.IncidenceOffset = sortedMean(off)
	m.WithinTolerance = float64(within) / float64(m.Rows)
	return m
}

func sortedMean(xs []float64) float64 {
	sort.Float64s(xs)
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Power is the fraction of rows whose incidence and offset incidence are
// within tolerance. The Mean row itself is not counted.
func Power(report *models.IncidenceReport) float64 {
	return report.Mean.WithinTolerance
}

// Verdict describes a power value in words. It does not affect any computation.
func Verdict(power float64) string {
	switch {
	case power > 0.5:
		return "great"
	case power > 0.25:
		return "ok"
	case power > 0:
		return "not well"
	default:
		return "not well, increase sample size"
	}
}
