package incidence

import (
	"errors"
	"math"
	"time"

	"github.com/rewired-gh/tickerpulse/internal/align"
)

// ErrEmptyComparisonSet is returned when no position survives offsetting and
// missing-value exclusion.
var ErrEmptyComparisonSet = errors.New("no comparable days")

// Direction is the sign of a day-over-day change.
type Direction int8

const (
	Down Direction = -1
	Flat Direction = 0
	Up   Direction = 1
	// Unknown marks a change that involved a missing value.
	Unknown Direction = math.MinInt8
)

// Known reports whether d can take part in a comparison.
func (d Direction) Known() bool {
	return d != Unknown
}

func (d Direction) String() string {
	switch d {
	case Down:
		return "-1"
	case Flat:
		return "0"
	case Up:
		return "+1"
	}
	return "?"
}

// DirectionOf takes the day-over-day difference of values and returns its
// sign. The result is one shorter than values: the first day has no prior day.
func DirectionOf(values []float64) []Direction {
	if len(values) < 2 {
		return nil
	}
	out := make([]Direction, len(values)-1)
	for i := 1; i < len(values); i++ {
		diff := values[i] - values[i-1]
		switch {
		case math.IsNaN(diff):
			out[i-1] = Unknown
		case diff > 0:
			out[i-1] = Up
		case diff < 0:
			out[i-1] = Down
		default:
			out[i-1] = Flat
		}
	}
	return out
}

// Series pairs the mention and volume directions of one ticker.
type Series struct {
	Ticker  string
	Dates   []time.Time
	Mention []Direction
	Volume  []Direction
}

// Len returns the number of direction positions.
func (s Series) Len() int {
	return len(s.Mention)
}

// Directions converts aligned percent changes into direction series.
func Directions(s align.Series) Series {
	out := Series{
		Ticker:  s.Ticker,
		Mention: DirectionOf(s.MentionPctChange),
		Volume:  DirectionOf(s.VolumePctChange),
	}
	if len(s.Dates) > 1 {
		out.Dates = append([]time.Time(nil), s.Dates[1:]...)
	}
	return out
}

// Rate returns the fraction of positions where both sides are known and
// agree. Equivalent to RateOffset(s, 0, 0).
func Rate(s Series) (float64, error) {
	return RateOffset(s, 0, 0)
}

// RateOffset compares Mention[t+offsetMentions] with Volume[t+offsetVolume]
// for every t in [0, Len). Positions falling outside either series, or where
// either side is Unknown, are skipped rather than counted as disagreement.
// Offsets are positions in the aligned series, not calendar days.
func RateOffset(s Series, offsetMentions, offsetVolume int) (float64, error) {
	var agree, total int
	for t := 0; t < len(s.Mention); t++ {
		i, j := t+offsetMentions, t+offsetVolume
		if i < 0 || i >= len(s.Mention) || j < 0 || j >= len(s.Volume) {
			continue
		}
		m, v := s.Mention[i], s.Volume[j]
		if !m.Known() || !v.Known() {
			continue
		}
		total++
		if m == v {
			agree++
		}
	}
	if total == 0 {
		return 0, ErrEmptyComparisonSet
	}
	return float64(agree) / float64(total), nil
}

// Correlation returns the Pearson coefficient of the known direction pairs.
func Correlation(s Series) (float64, error) {
	var xs, ys []float64
	for i := range s.Mention {
		if i >= len(s.Volume) || !s.Mention[i].Known() || !s.Volume[i].Known() {
			continue
		}
		xs = append(xs, float64(s.Mention[i]))
		ys = append(ys, float64(s.Volume[i]))
	}
	if len(xs) < 2 {
		return 0, ErrEmptyComparisonSet
	}
	return pearson(xs, ys)
}

// ErrConstantSeries is returned when a correlation is asked of a series with no variance.
var ErrConstantSeries = errors.New("series has zero variance")

func pearson(xs, ys []float64) (float64, error) {
	n := float64(len(xs))
	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= n
	my /= n

	var sxy, sxx, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0, ErrConstantSeries
	}
	return sxy / math.Sqrt(sxx*syy), nil
}
