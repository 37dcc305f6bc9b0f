package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rewired-gh/tickerpulse/internal/config"
	"github.com/rewired-gh/tickerpulse/internal/logger"
	"github.com/rewired-gh/tickerpulse/internal/matrix"
	"github.com/rewired-gh/tickerpulse/internal/models"
	"github.com/rewired-gh/tickerpulse/internal/pipeline"
	"github.com/rewired-gh/tickerpulse/internal/report"
	"github.com/rewired-gh/tickerpulse/internal/snapshot"
	"github.com/rewired-gh/tickerpulse/internal/tickers"
	"github.com/rewired-gh/tickerpulse/internal/timeseries"
	"github.com/rewired-gh/tickerpulse/internal/volume"
)

// yahooInterval spaces out history page requests.
const yahooInterval = 2 * time.Second

func (a *app) importFiles(args []string) error {
	flags := flag.NewFlagSet("import", flag.ExitOnError)
	dir := flags.String("snapshots", "", "Directory of daily CSV snapshots (DD_MM_YY.csv)")
	volumePath := flags.String("volume", "", "Volume CSV with a Date column and one column per ticker")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *dir == "" && *volumePath == "" {
		return errors.New("nothing to import: pass -snapshots and/or -volume")
	}

	if *dir != "" {
		files, err := snapshot.List(*dir)
		if err != nil {
			return err
		}
		total := 0
		for _, f := range files {
			records, err := snapshot.ReadFile(f.Path)
			if err != nil {
				return err
			}
			n, err := a.store.AddRecords(f.Day, records)
			if err != nil {
				return fmt.Errorf("%s: %w", f.Path, err)
			}
			logger.Debug("Imported %d of %d records from %s", n, len(records), f.Path)
			total += n
		}
		fmt.Printf("Imported %d records from %d snapshots\n", total, len(files))
	}

	if *volumePath != "" {
		t, err := readVolumeCSV(*volumePath)
		if err != nil {
			return err
		}
		n, err := a.store.SaveVolumeTable(t)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d volume cells for %d tickers\n", n, len(t.Columns()))
	}
	return nil
}

func readVolumeCSV(path string) (*timeseries.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := volume.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// loadVolume returns the volume table from the configured source. Stored
// volumes are used when the CSV file is absent or Yahoo cannot be reached.
func (a *app) loadVolume(ctx context.Context, symbols []string) (*timeseries.Table, error) {
	cfg := a.cfg.Volume
	switch cfg.Source {
	case "csv":
		t, err := readVolumeCSV(cfg.CSVPath)
		if errors.Is(err, fs.ErrNotExist) {
			logger.Info("Volume CSV %s not found, using stored volumes", cfg.CSVPath)
			return a.store.LoadVolumeTable()
		}
		return t, err
	case "yahoo":
		start, err := time.ParseInLocation(config.DateLayout, cfg.Start, time.UTC)
		if err != nil {
			return nil, err
		}
		client := volume.NewYahooClient(cfg.YahooURL, cfg.Timeout, yahooInterval)
		t, err := client.FetchTable(ctx, symbols, start, timeseries.Day(time.Now()))
		if err != nil {
			logger.Warn("Yahoo volumes unavailable, using stored volumes: %v", err)
			return a.store.LoadVolumeTable()
		}
		if _, err := a.store.SaveVolumeTable(t); err != nil {
			logger.Warn("Failed to store volumes: %v", err)
		}
		return t, nil
	}
	return nil, fmt.Errorf("unknown volume source %q", cfg.Source)
}

// universe returns the reference ticker list, preferring the local cache.
// It returns nil when neither the cache nor the source is available, which
// leaves the analysis unbounded.
func (a *app) universe(ctx context.Context) []string {
	list, err := tickers.LoadCache(a.cfg.Tickers.CachePath)
	if err != nil {
		client := &http.Client{Timeout: a.cfg.Reddit.Timeout}
		list, err = tickers.Load(ctx, client, a.cfg.Tickers.SourceURL, a.cfg.Tickers.CachePath)
	}
	if err != nil {
		logger.Warn("Ticker universe unavailable, analysis is not bounded: %v", err)
		return nil
	}
	return tickers.Universe(list)
}

// newSession loads every stored record and the volume table for the
// mentioned tickers that belong to the ticker universe. It also returns the
// default analysis tickers: the configured list, or the universe tickers
// present in both tables.
func (a *app) newSession(ctx context.Context) (*pipeline.Session, []string, error) {
	records, err := a.store.LoadRecords()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, errors.New("no records stored: run scrape or import first")
	}
	cutoff, err := a.cfg.Analysis.Cutoff()
	if err != nil {
		return nil, nil, err
	}

	universe := a.universe(ctx)
	want := a.cfg.Analysis.Tickers
	if len(want) == 0 {
		want = tickers.Bound(matrix.Build(records, matrix.Options{Cutoff: cutoff}).Tickers(), universe)
	}
	vol, err := a.loadVolume(ctx, want)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load volumes: %w", err)
	}

	session, err := pipeline.NewSession(records, vol, pipeline.SessionOptions{
		Cutoff:    cutoff,
		Tolerance: a.cfg.Analysis.Tolerance,
	})
	if err != nil {
		return nil, nil, err
	}
	defaults := a.cfg.Analysis.Tickers
	if len(defaults) == 0 {
		defaults = tickers.Bound(session.Engine().Tickers(), universe)
		logger.Info("Analyzing %d universe tickers of %d shared", len(defaults), len(session.Engine().Tickers()))
	}
	return session, defaults, nil
}

func parseTickers(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func (a *app) analyze(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("analyze", flag.ExitOnError)
	tickerList := flags.String("tickers", strings.Join(a.cfg.Analysis.Tickers, ","), "Comma-separated tickers (default: every universe ticker in both tables)")
	offsetMentions := flags.Int("offset-mentions", a.cfg.Analysis.OffsetMentions, "Positions the mention directions are shifted by (may be negative)")
	offsetVolume := flags.Int("offset-volume", a.cfg.Analysis.OffsetVolume, "Positions the volume directions are shifted by (may be negative)")
	notify := flags.Bool("notify", a.telegram != nil, "Send the power summary to Telegram")
	if err := flags.Parse(args); err != nil {
		return err
	}

	session, defaults, err := a.newSession(ctx)
	if err != nil {
		return err
	}
	requested := parseTickers(*tickerList)
	if len(requested) == 0 {
		requested = defaults
	}
	if len(requested) == 0 {
		return errors.New("no ticker from the universe is present in both tables")
	}
	r, power, err := session.Power(requested, *offsetMentions, *offsetVolume)
	if err != nil {
		return err
	}
	logger.Info("Power %s over %d tickers (%s)", report.Percent(power), len(r.Rows), report.VerdictSentence(power))

	if err := report.WritePower(os.Stdout, r); err != nil {
		return err
	}
	if *notify {
		a.sendReport(r)
	}
	return nil
}

func (a *app) sendReport(r *models.IncidenceReport) {
	if a.telegram == nil {
		logger.Warn("Telegram is not enabled, report not sent")
		return
	}
	if err := a.telegram.SendReport(r); err != nil {
		logger.Error("Failed to send Telegram report: %v", err)
		return
	}
	logger.Info("Sent report to Telegram")
}

func (a *app) summary(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("summary", flag.ExitOnError)
	topN := flags.Int("top", a.cfg.Analysis.TopN, "Length of the ranked lists")
	runs := flags.Int("runs", 5, "Number of recent scrape runs to list")
	if err := flags.Parse(args); err != nil {
		return err
	}

	session, _, err := a.newSession(ctx)
	if err != nil {
		return err
	}
	if err := report.WriteSummary(os.Stdout, session.Summary(*topN)); err != nil {
		return err
	}
	fmt.Println()
	if err := report.WriteTotals(os.Stdout, session.Totals(*topN)); err != nil {
		return err
	}

	if *runs > 0 {
		recent, err := a.store.RecentRuns(*runs)
		if err != nil {
			return err
		}
		if len(recent) > 0 {
			fmt.Println()
			return report.WriteRuns(os.Stdout, recent)
		}
	}
	return nil
}
