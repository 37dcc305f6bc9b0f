// Package report renders analysis results as plain text.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rewired-gh/tickerpulse/internal/incidence"
	"github.com/rewired-gh/tickerpulse/internal/matrix"
	"github.com/rewired-gh/tickerpulse/internal/models"
	"github.com/rewired-gh/tickerpulse/internal/pipeline"
)

// Percent formats a fraction as a percentage with two decimals.
func Percent(f float64) string {
	return fmt.Sprintf("%.2f%%", f*100)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
}

// WriteIncidence writes one line per row followed by the Mean row.
func WriteIncidence(w io.Writer, r *models.IncidenceReport) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "Ticker\tIncidence\tOffset (%d/%d)\tWithin %s\tStatus\t\n",
		r.OffsetMentions, r.OffsetVolume, Percent(r.Tolerance))
	for _, row := range r.Rows {
		if row.Status == models.RowEmpty {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t%s\t\n", row.Ticker, row.Status)
			continue
		}
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%s\t%s\t\n",
			row.Ticker, row.Incidence, row.IncidenceOffset, yesNo(row.WithinTolerance), row.Status)
	}
	fmt.Fprintf(tw, "Mean\t%.4f\t%.4f\t%.4f\t%d rows\t\n",
		r.Mean.Incidence, r.Mean.IncidenceOffset, r.Mean.WithinTolerance, r.Mean.Rows)
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// VerdictSentence describes power in a full sentence.
func VerdictSentence(power float64) string {
	switch incidence.Verdict(power) {
	case "great":
		return "Reddit did a great job this time."
	case "ok":
		return "Reddit did an OK job this time."
	case "not well":
		return "Reddit did not do well this time."
	default:
		return "Reddit did not do well this time. Maybe try increasing the number of stocks analyzed."
	}
}

// OffsetSentence explains what the power means for the report's offsets.
func OffsetSentence(lead int, power float64) string {
	p := Percent(power)
	switch {
	case lead < -1:
		return fmt.Sprintf("The trend in its stock mentions compared to the stock movement %d days ago was the same in %s of cases.", -lead, p)
	case lead == -1:
		return fmt.Sprintf("The trend in its stock mentions compared to the stock movement 1 day ago was the same in %s of cases.", p)
	case lead == 0:
		return fmt.Sprintf("Its stock mentions coincided with stock movement on the same day in %s of cases.", p)
	case lead == 1:
		return fmt.Sprintf("It was able to predict volume of traded stocks 1 day ahead in %s of cases.", p)
	default:
		return fmt.Sprintf("It was able to predict volume of traded stocks %d days ahead in %s of cases.", lead, p)
	}
}

// PowerText is the verdict, offset sentence and ticker count for a report.
func PowerText(r *models.IncidenceReport) string {
	power := incidence.Power(r)
	var b strings.Builder
	b.WriteString(VerdictSentence(power))
	b.WriteString("\n")
	b.WriteString(OffsetSentence(r.Lead(), power))
	b.WriteString("\n")
	fmt.Fprintf(&b, "The total number of stocks analyzed was %d.", len(r.Rows))
	if r.Mean.SyntheticRows > 0 {
		fmt.Fprintf(&b, "\n%d of them had no data and were filled with random placeholder values.", r.Mean.SyntheticRows)
	}
	return b.String()
}

// WritePower writes the full report: table, then PowerText.
func WritePower(w io.Writer, r *models.IncidenceReport) error {
	if err := WriteIncidence(w, r); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%s\n", PowerText(r))
	return err
}

// WriteSummary writes dataset statistics.
func WriteSummary(w io.Writer, s matrix.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Records:\t%s\n", humanize.Comma(int64(s.Records)))
	fmt.Fprintf(tw, "With a ticker mention:\t%s\n", humanize.Comma(int64(s.WithTickers)))
	if !s.FirstDay.IsZero() {
		fmt.Fprintf(tw, "Days:\t%s to %s\n", s.FirstDay.Format(time.DateOnly), s.LastDay.Format(time.DateOnly))
	}
	writeRanked(tw, "By subreddit", s.BySource)
	writeRanked(tw, "By kind", s.ByKind)
	writeRanked(tw, "Top ticker mentions in one day", s.TopTickerDays)
	writeRanked(tw, "Top days", s.TopDays)
	return tw.Flush()
}

func writeRanked(w io.Writer, title string, items []matrix.Ranked) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\t\n", title)
	for _, it := range items {
		fmt.Fprintf(w, "  %s\t%s\n", it.Label, humanize.Comma(int64(it.Count)))
	}
}

// WriteTotals ranks tickers by mentions alongside their traded volume.
func WriteTotals(w io.Writer, totals []pipeline.TickerTotal) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "Ticker\tMentions\tVolume\t\n")
	for _, t := range totals {
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", t.Ticker, humanize.Comma(int64(t.Mentions)), strings.TrimSpace(humanize.SIWithDigits(t.Volume, 2, "")))
	}
	return tw.Flush()
}

// WriteRuns lists scrape runs, newest first.
func WriteRuns(w io.Writer, runs []models.ScrapeRun) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Started\tSnapshot\tRecords\tDuration\tResult\n")
	for _, r := range runs {
		result := "ok"
		switch {
		case r.FinishedAt.IsZero():
			result = "running"
		case r.Error != "":
			result = "failed: " + r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%s\n",
			humanize.Time(r.StartedAt), r.SnapshotDate.Format(time.DateOnly),
			humanize.Comma(int64(r.Records)), r.Duration().Round(time.Millisecond), result)
	}
	return tw.Flush()
}
