// Package pipeline wires the scrape job and the analysis session out of the
// fetch, tagging, storage and incidence packages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rewired-gh/tickerpulse/internal/logger"
	"github.com/rewired-gh/tickerpulse/internal/models"
	"github.com/rewired-gh/tickerpulse/internal/snapshot"
	"github.com/rewired-gh/tickerpulse/internal/timeseries"
)

// Fetcher returns the raw records of one subreddit.
type Fetcher interface {
	Fetch(ctx context.Context, subreddit string, postLimit, commentLimit int) ([]models.RawRecord, error)
}

// Tagger finds the tickers mentioned in a text.
type Tagger interface {
	Match(text string) []string
}

// RecordStore persists scrape output.
type RecordStore interface {
	StartRun(snapshotDate time.Time, sources []string) (*models.ScrapeRun, error)
	FinishRun(run *models.ScrapeRun, records int, runErr error) error
	AddRecords(snapshotDate time.Time, records []models.RawRecord) (int, error)
	RotateSnapshots(keep int) (int, error)
}

// Notifier is told about the first failure of a streak and the recovery
// that ends it.
type Notifier interface {
	SendError(err error) error
	SendRecovery(failureCount int) error
}

// ScrapeConfig holds the scrape job parameters.
type ScrapeConfig struct {
	Subreddits   []string
	PostLimit    int
	CommentLimit int
	SnapshotDir  string // empty disables the CSV snapshot
	MaxSnapshots int    // 0 keeps every snapshot
}

// Scraper runs the daily scrape: fetch, tag, store, snapshot.
type Scraper struct {
	fetcher  Fetcher
	tagger   Tagger
	store    RecordStore
	notifier Notifier
	cfg      ScrapeConfig
	now      func() time.Time

	consecutiveFailures int
}

// NewScraper creates a scraper. notifier may be nil.
func NewScraper(fetcher Fetcher, tagger Tagger, store RecordStore, notifier Notifier, cfg ScrapeConfig) *Scraper {
	return &Scraper{
		fetcher:  fetcher,
		tagger:   tagger,
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Run performs one scrape. A subreddit that fails is logged and skipped;
// the run fails when every subreddit fails or the records cannot be stored.
func (s *Scraper) Run(ctx context.Context) (*models.ScrapeRun, error) {
	day := timeseries.Day(s.now())
	run, err := s.store.StartRun(day, s.cfg.Subreddits)
	if err != nil {
		return nil, err
	}

	n, runErr := s.scrape(ctx, day)
	if err := s.store.FinishRun(run, n, runErr); err != nil {
		logger.Warn("Failed to record scrape run %s: %v", run.ID, err)
	}
	s.notify(runErr)
	if runErr != nil {
		return run, runErr
	}

	logger.Info("Scrape run %s stored %d records in %v", run.ID, n, run.Duration().Round(time.Millisecond))
	return run, nil
}

func (s *Scraper) scrape(ctx context.Context, day time.Time) (int, error) {
	var records []models.RawRecord
	var errs []error
	for _, sub := range s.cfg.Subreddits {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		fetched, err := s.fetcher.Fetch(ctx, sub, s.cfg.PostLimit, s.cfg.CommentLimit)
		if err != nil {
			logger.Warn("Skipping r/%s: %v", sub, err)
			errs = append(errs, fmt.Errorf("r/%s: %w", sub, err))
			continue
		}
		records = append(records, fetched...)
	}
	if len(errs) == len(s.cfg.Subreddits) {
		return 0, fmt.Errorf("every subreddit failed: %w", errors.Join(errs...))
	}

	tagged := 0
	for i := range records {
		records[i].Tickers = s.tagger.Match(records[i].Text)
		if len(records[i].Tickers) > 0 {
			tagged++
		}
	}
	logger.Debug("Tagged %d of %d records with tickers", tagged, len(records))

	n, err := s.store.AddRecords(day, records)
	if err != nil {
		return 0, fmt.Errorf("failed to store records: %w", err)
	}

	if s.cfg.SnapshotDir != "" {
		path, err := snapshot.WriteFile(s.cfg.SnapshotDir, day, records)
		if err != nil {
			logger.Warn("Failed to write CSV snapshot: %v", err)
		} else {
			logger.Debug("Wrote snapshot %s", path)
		}
	}

	if removed, err := s.store.RotateSnapshots(s.cfg.MaxSnapshots); err != nil {
		logger.Warn("Failed to rotate snapshots: %v", err)
	} else if removed > 0 {
		logger.Info("Rotated out %d old records", removed)
	}
	return n, nil
}

func (s *Scraper) notify(err error) {
	if err != nil {
		s.consecutiveFailures++
		if s.consecutiveFailures == 1 && s.notifier != nil {
			if sendErr := s.notifier.SendError(err); sendErr != nil {
				logger.Warn("Failed to send error notification: %v", sendErr)
			}
		}
		return
	}
	if s.consecutiveFailures > 0 && s.notifier != nil {
		if sendErr := s.notifier.SendRecovery(s.consecutiveFailures); sendErr != nil {
			logger.Warn("Failed to send recovery notification: %v", sendErr)
		}
	}
	s.consecutiveFailures = 0
}
