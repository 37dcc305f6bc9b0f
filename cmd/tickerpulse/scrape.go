package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rewired-gh/tickerpulse/internal/logger"
	"github.com/rewired-gh/tickerpulse/internal/pipeline"
	"github.com/rewired-gh/tickerpulse/internal/reddit"
	"github.com/rewired-gh/tickerpulse/internal/scheduler"
	"github.com/rewired-gh/tickerpulse/internal/tickers"
)

const scrapeJob = "scrape"

// newScraper loads the ticker dictionary and wires the Reddit fetcher to
// storage.
func (a *app) newScraper(ctx context.Context) (*pipeline.Scraper, error) {
	cfg := a.cfg
	if !cfg.HasRedditCredentials() {
		return nil, errors.New("reddit credentials are not configured")
	}

	httpClient := &http.Client{Timeout: cfg.Reddit.Timeout}
	constituents, err := tickers.Load(ctx, httpClient, cfg.Tickers.SourceURL, cfg.Tickers.CachePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticker list: %w", err)
	}
	dict, err := tickers.NewDictionary(constituents, tickers.DefaultCuration)
	if err != nil {
		return nil, fmt.Errorf("failed to build ticker dictionary: %w", err)
	}
	logger.Info("Ticker dictionary holds %d symbols", dict.Len())

	client := reddit.NewClient(
		reddit.Credentials{
			ClientID:     cfg.Reddit.ClientID,
			ClientSecret: cfg.Reddit.ClientSecret,
			Username:     cfg.Reddit.Username,
			Password:     cfg.Reddit.Password,
			UserAgent:    cfg.Reddit.UserAgent,
		},
		cfg.Reddit.Timeout,
		reddit.WithURLs(cfg.Reddit.AuthURL, cfg.Reddit.APIURL),
		reddit.WithRateLimit(cfg.Reddit.RequestsPerMinute),
		reddit.WithRetries(cfg.Reddit.MaxRetries, time.Second),
	)

	// A nil *telegram.Client must not end up in a non-nil interface.
	var notifier pipeline.Notifier
	if a.telegram != nil {
		notifier = a.telegram
	}

	return pipeline.NewScraper(client, dict, a.store, notifier, pipeline.ScrapeConfig{
		Subreddits:   cfg.Reddit.Subreddits,
		PostLimit:    cfg.Reddit.PostLimit,
		CommentLimit: cfg.Reddit.CommentLimit,
		SnapshotDir:  cfg.Storage.SnapshotDir,
		MaxSnapshots: cfg.Storage.MaxSnapshots,
	}), nil
}

func (a *app) scrape(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("scrape", flag.ExitOnError)
	if err := flags.Parse(args); err != nil {
		return err
	}

	scraper, err := a.newScraper(ctx)
	if err != nil {
		return err
	}
	run, err := scraper.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Stored %d records for %s (run %s)\n", run.Records, run.SnapshotDate.Format(time.DateOnly), run.ID)
	return nil
}

func (a *app) serve(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	runOnStart := flags.Bool("run-on-start", a.cfg.Scheduler.RunOnStart, "Run the scrape job once before waiting for the schedule")
	if err := flags.Parse(args); err != nil {
		return err
	}

	scraper, err := a.newScraper(ctx)
	if err != nil {
		return err
	}
	sched, err := scheduler.New(a.cfg.Scheduler.Timezone, a.cfg.Scheduler.JobTimeout)
	if err != nil {
		return err
	}
	err = sched.AddJob(scrapeJob, a.cfg.Scheduler.ScrapeSchedule, func(ctx context.Context) error {
		_, err := scraper.Run(ctx)
		return err
	})
	if err != nil {
		return err
	}

	if a.telegram != nil {
		a.telegram.ListenForCommands(ctx, func() string { return a.status(sched) })
	}

	if *runOnStart {
		logger.Debug("Running initial scrape")
		if err := sched.RunNow(scrapeJob); err != nil {
			logger.Error("Initial scrape failed: %v", err)
		}
	}

	sched.Start()
	for _, job := range sched.ListJobs() {
		logger.Info("Job %s (%s) next runs at %s", job.Name, job.Schedule, job.NextRun.Format(time.RFC3339))
	}

	<-ctx.Done()
	<-sched.Stop().Done()
	logger.Info("Service stopped")
	return nil
}

// status answers the /status bot command.
func (a *app) status(sched *scheduler.Scheduler) string {
	var b strings.Builder
	for _, job := range sched.ListJobs() {
		fmt.Fprintf(&b, "Next %s: %s\n", job.Name, humanize.Time(job.NextRun))
	}
	runs, err := a.store.RecentRuns(1)
	switch {
	case err != nil:
		fmt.Fprintf(&b, "Last run: unavailable (%v)", err)
	case len(runs) == 0:
		b.WriteString("No scrape has run yet")
	case runs[0].Error != "":
		fmt.Fprintf(&b, "Last run %s failed: %s", humanize.Time(runs[0].StartedAt), runs[0].Error)
	default:
		fmt.Fprintf(&b, "Last run %s stored %s records", humanize.Time(runs[0].StartedAt), humanize.Comma(int64(runs[0].Records)))
	}
	return b.String()
}
