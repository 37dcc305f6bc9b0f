package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/tickerpulse/internal/models"
	"github.com/rewired-gh/tickerpulse/internal/timeseries"
)

// StartRun records the start of a scrape run and returns it with a fresh id.
func (s *Storage) StartRun(snapshotDate time.Time, sources []string) (*models.ScrapeRun, error) {
	run := &models.ScrapeRun{
		ID:           uuid.NewString(),
		SnapshotDate: timeseries.Day(snapshotDate),
		StartedAt:    time.Now().UTC(),
		Sources:      append([]string(nil), sources...),
	}
	sourcesJSON, err := json.Marshal(nonNil(run.Sources))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sources: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO scrape_runs (id, snapshot_date, started_at, sources)
		VALUES (?,?,?,?)`,
		run.ID, run.SnapshotDate.Format(dateLayout), run.StartedAt.UnixNano(), string(sourcesJSON),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert scrape run: %w", err)
	}
	return run, nil
}

// FinishRun stamps the run as finished with its record count and error.
func (s *Storage) FinishRun(run *models.ScrapeRun, records int, runErr error) error {
	run.FinishedAt = time.Now().UTC()
	run.Records = records
	run.Error = ""
	if runErr != nil {
		run.Error = runErr.Error()
	}
	res, err := s.db.Exec(`
		UPDATE scrape_runs SET finished_at=?, records=?, error=? WHERE id=?`,
		run.FinishedAt.UnixNano(), run.Records, run.Error, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update scrape run: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("scrape run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

// GetRun loads one scrape run by id.
func (s *Storage) GetRun(id string) (*models.ScrapeRun, error) {
	row := s.db.QueryRow(`SELECT `+runCols+` FROM scrape_runs WHERE id = ?`, id)
	run, err := scanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scrape run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scrape run: %w", err)
	}
	return run, nil
}

// RecentRuns returns up to n runs, newest first.
func (s *Storage) RecentRuns(n int) ([]models.ScrapeRun, error) {
	rows, err := s.db.Query(`SELECT `+runCols+` FROM scrape_runs ORDER BY started_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query scrape runs: %w", err)
	}
	defer rows.Close()

	var runs []models.ScrapeRun
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scrape run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

const runCols = `id, snapshot_date, started_at, finished_at, records, sources, error`

func scanRun(scan func(...any) error) (*models.ScrapeRun, error) {
	var run models.ScrapeRun
	var date, sourcesJSON string
	var startedAtNano, finishedAtNano int64
	err := scan(&run.ID, &date, &startedAtNano, &finishedAtNano, &run.Records, &sourcesJSON, &run.Error)
	if err != nil {
		return nil, err
	}
	d, err := time.ParseInLocation(dateLayout, date, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot date %q: %w", date, err)
	}
	run.SnapshotDate = d
	if err := json.Unmarshal([]byte(sourcesJSON), &run.Sources); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
	}
	run.StartedAt = time.Unix(0, startedAtNano).UTC()
	if finishedAtNano != 0 {
		run.FinishedAt = time.Unix(0, finishedAtNano).UTC()
	}
	return &run, nil
}
