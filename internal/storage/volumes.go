package storage

import (
	"fmt"
	"time"

	"github.com/rewired-gh/tickerpulse/internal/timeseries"
)

// SaveVolumeTable upserts every present cell of t. Missing cells are not
// stored, so earlier values for the same day and ticker survive.
func (s *Storage) SaveVolumeTable(t *timeseries.Table) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO volumes (date, ticker, volume) VALUES (?,?,?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	dates := t.Dates()
	saved := 0
	for _, ticker := range t.Columns() {
		for r, d := range dates {
			v, _ := t.Value(r, ticker)
			if timeseries.Missing(v) {
				continue
			}
			if _, err := stmt.Exec(d.Format(dateLayout), ticker, v); err != nil {
				return 0, fmt.Errorf("failed to save volume %s %s: %w", ticker, d.Format(dateLayout), err)
			}
			saved++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit volumes: %w", err)
	}
	return saved, nil
}

// LoadVolumeTable rebuilds the volume table from every stored cell.
// It returns ErrNotFound when no volumes are stored.
func (s *Storage) LoadVolumeTable() (*timeseries.Table, error) {
	rows, err := s.db.Query(`SELECT date, ticker, volume FROM volumes ORDER BY ticker, date`)
	if err != nil {
		return nil, fmt.Errorf("failed to query volumes: %w", err)
	}
	defer rows.Close()

	columns := make(map[string]timeseries.Series)
	for rows.Next() {
		var raw, ticker string
		var v float64
		if err := rows.Scan(&raw, &ticker, &v); err != nil {
			return nil, fmt.Errorf("failed to scan volume: %w", err)
		}
		d, err := time.ParseInLocation(dateLayout, raw, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("invalid volume date %q: %w", raw, err)
		}
		s := columns[ticker]
		s.Dates = append(s.Dates, d)
		s.Values = append(s.Values, v)
		columns[ticker] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("volume table: %w", ErrNotFound)
	}
	return timeseries.FromSeries(columns), nil
}
