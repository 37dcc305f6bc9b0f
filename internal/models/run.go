package models

import (
	"time"
)

// ScrapeRun records one execution of the scrape job.
type ScrapeRun struct {
	ID           string
	SnapshotDate time.Time
	StartedAt    time.Time
	FinishedAt   time.Time
	Records      int
	Sources      []string
	Error        string
}

// Succeeded reports whether the run finished without error.
func (r *ScrapeRun) Succeeded() bool {
	return !r.FinishedAt.IsZero() && r.Error == ""
}

// Duration returns how long the run took, or zero if it has not finished.
func (r *ScrapeRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
