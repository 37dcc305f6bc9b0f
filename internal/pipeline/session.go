package pipeline

import (
	"errors"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/rewired-gh/tickerpulse/internal/align"
	"github.com/rewired-gh/tickerpulse/internal/incidence"
	"github.com/rewired-gh/tickerpulse/internal/logger"
	"github.com/rewired-gh/tickerpulse/internal/matrix"
	"github.com/rewired-gh/tickerpulse/internal/models"
	"github.com/rewired-gh/tickerpulse/internal/timeseries"
)

// SessionOptions configures an analysis session.
type SessionOptions struct {
	Cutoff    time.Time // zero disables the cutoff
	Tolerance float64
	Fallback  *rand.Rand
}

// Session is one analysis over a fixed record set and volume table.
type Session struct {
	records []models.RawRecord
	matrix  *matrix.Matrix
	volume  *timeseries.Table
	engine  *incidence.Engine
}

// NewSession builds the mention matrix and the incidence engine.
func NewSession(records []models.RawRecord, volume *timeseries.Table, opts SessionOptions) (*Session, error) {
	if volume == nil {
		return nil, errors.New("volume table is required")
	}
	m := matrix.Build(records, matrix.Options{Cutoff: opts.Cutoff})
	// Raw volume gaps are filled before percent changes so that one missing
	// day does not void its neighbours.
	engine := incidence.New(volume.Interpolate(), m.Table(), incidence.Config{
		Tolerance: opts.Tolerance,
		Fallback:  opts.Fallback,
	})
	logger.Info("Session: %d records, %d days, %d mentioned tickers, %d shared with volume",
		len(records), m.Rows(), len(m.Tickers()), len(engine.Tickers()))
	return &Session{records: records, matrix: m, volume: volume, engine: engine}, nil
}

// Matrix returns the day-by-ticker mention matrix.
func (s *Session) Matrix() *matrix.Matrix {
	return s.matrix
}

// Engine returns the incidence engine.
func (s *Session) Engine() *incidence.Engine {
	return s.engine
}

// Report computes the incidence report for tickers (all shared tickers when
// empty).
func (s *Session) Report(tickers []string, offsetMentions, offsetVolume int) (*models.IncidenceReport, error) {
	return s.engine.Report(tickers, offsetMentions, offsetVolume)
}

// Power computes the report and returns it with its power.
func (s *Session) Power(tickers []string, offsetMentions, offsetVolume int) (*models.IncidenceReport, float64, error) {
	report, err := s.Report(tickers, offsetMentions, offsetVolume)
	if err != nil {
		return nil, 0, err
	}
	return report, incidence.Power(report), nil
}

// Summary describes the record set and its matrix.
func (s *Session) Summary(topN int) matrix.Summary {
	return matrix.Summarize(s.records, s.matrix, topN)
}

// TickerTotal is a shared ticker's total mentions and total traded volume.
type TickerTotal struct {
	Ticker   string
	Mentions int
	Volume   float64
}

// Totals ranks the tickers shared by both tables by total mentions, then by
// volume. topN <= 0 keeps every ticker.
func (s *Session) Totals(topN int) []TickerTotal {
	_, shared := align.IntersectColumns(s.volume, s.matrix.Table())
	out := make([]TickerTotal, 0, len(shared.Columns()))
	for _, t := range shared.Columns() {
		out = append(out, TickerTotal{Ticker: t, Mentions: s.matrix.Total(t), Volume: s.volume.Sum(t)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mentions != out[j].Mentions {
			return out[i].Mentions > out[j].Mentions
		}
		if out[i].Volume != out[j].Volume {
			return out[i].Volume > out[j].Volume
		}
		return out[i].Ticker < out[j].Ticker
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}
