package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rewired-gh/tickerpulse/internal/models"
	"github.com/rewired-gh/tickerpulse/internal/timeseries"
)

// AddRecords stores records under the snapshot taken on snapshotDate.
// A record already present in the same snapshot is left untouched; the same
// record in another snapshot is kept as a separate row.
func (s *Storage) AddRecords(snapshotDate time.Time, records []models.RawRecord) (int, error) {
	date := timeseries.Day(snapshotDate).Format(dateLayout)

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO records
			(snapshot_date, kind, record_id, post_id, source, created_at, text, tickers)
		VALUES (?,?,?,?,?,?,?,?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range records {
		r := &records[i]
		if err := r.Validate(); err != nil {
			return 0, fmt.Errorf("invalid record %d: %w", i, err)
		}
		id := r.RecordID
		if id == "" {
			id = r.ParentPostID
		}
		tickersJSON, err := json.Marshal(nonNil(r.Tickers))
		if err != nil {
			return 0, fmt.Errorf("failed to marshal tickers: %w", err)
		}
		res, err := stmt.Exec(date, string(r.Kind), id, r.ParentPostID, r.Source,
			r.Timestamp.UnixNano(), r.Text, string(tickersJSON))
		if err != nil {
			return 0, fmt.Errorf("failed to insert record: %w", err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit records: %w", err)
	}
	return inserted, nil
}

// LoadRecords returns every stored record across all snapshots, oldest
// snapshot first.
func (s *Storage) LoadRecords() ([]models.RawRecord, error) {
	rows, err := s.db.Query(`SELECT ` + recordCols + ` FROM records
		ORDER BY snapshot_date, created_at, kind, record_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := []models.RawRecord{}
	for rows.Next() {
		r, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

// CountRecords returns the number of stored rows, duplicates included.
func (s *Storage) CountRecords() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// SnapshotDates lists the distinct snapshot dates, oldest first.
func (s *Storage) SnapshotDates() ([]time.Time, error) {
	rows, err := s.db.Query(`SELECT DISTINCT snapshot_date FROM records ORDER BY snapshot_date`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot date: %w", err)
		}
		d, err := time.ParseInLocation(dateLayout, raw, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("invalid snapshot date %q: %w", raw, err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// RotateSnapshots keeps the newest keep snapshots and deletes older ones.
// keep <= 0 keeps everything.
func (s *Storage) RotateSnapshots(keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := s.db.Exec(`
		DELETE FROM records WHERE snapshot_date NOT IN (
			SELECT DISTINCT snapshot_date FROM records ORDER BY snapshot_date DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to rotate snapshots: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

const recordCols = `kind, record_id, post_id, source, created_at, text, tickers`

func scanRecord(scan func(...any) error) (*models.RawRecord, error) {
	var r models.RawRecord
	var kind, tickersJSON string
	var createdAtNano int64
	if err := scan(&kind, &r.RecordID, &r.ParentPostID, &r.Source, &createdAtNano, &r.Text, &tickersJSON); err != nil {
		return nil, err
	}
	k, err := models.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	r.Kind = k
	if err := json.Unmarshal([]byte(tickersJSON), &r.Tickers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tickers: %w", err)
	}
	if len(r.Tickers) == 0 {
		r.Tickers = nil
	}
	r.Timestamp = time.Unix(0, createdAtNano).UTC()
	return &r, nil
}

func nonNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}
