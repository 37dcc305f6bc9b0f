package models

import "time"

// RowStatus tells how an IncidenceRow was obtained.
type RowStatus int

const (
	// RowMeasured rows carry real agreement rates.
	RowMeasured RowStatus = iota
	// RowSynthetic rows hold random placeholder values for a ticker missing
	// from a source table. They are not signal.
	RowSynthetic
	// RowEmpty rows had no comparable days; they carry no values and are
	// excluded from the Mean row.
	RowEmpty
)

func (s RowStatus) String() string {
	switch s {
	case RowMeasured:
		return "measured"
	case RowSynthetic:
		return "synthetic"
	case RowEmpty:
		return "empty"
	}
	return "unknown"
}

// IncidenceRow holds the agreement rates for one ticker.
type IncidenceRow struct {
	Ticker          string
	Incidence       float64
	IncidenceOffset float64
	WithinTolerance bool
	Status          RowStatus
	Reason          string
}

// MeanRow averages a report's usable rows.
type MeanRow struct {
	Incidence       float64
	IncidenceOffset float64
	WithinTolerance float64
	Rows            int
	SyntheticRows   int
}

// IncidenceReport is built fresh per query and never persisted.
type IncidenceReport struct {
	OffsetMentions int
	OffsetVolume   int
	Tolerance      float64
	Rows           []IncidenceRow
	Mean           MeanRow
	GeneratedAt    time.Time
}

// Lead is how many positions the mention side is compared ahead of the volume side.
func (r *IncidenceReport) Lead() int {
	return r.OffsetVolume - r.OffsetMentions
}

// Row finds the row for ticker.
func (r *IncidenceReport) Row(ticker string) (IncidenceRow, bool) {
	for _, row := range r.Rows {
		if row.Ticker == ticker {
			return row, true
		}
	}
	return IncidenceRow{}, false
}
