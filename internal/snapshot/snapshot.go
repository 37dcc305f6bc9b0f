// Package snapshot reads and writes the daily CSV snapshot of scraped records.
package snapshot

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rewired-gh/tickerpulse/internal/logger"
	"github.com/rewired-gh/tickerpulse/internal/models"
)

// Columns is the snapshot header, in file order.
var Columns = []string{"post_id", "comment_id", "subreddit", "text_type", "epoch_time", "text", "tickers"}

const fileLayout = "02_01_06"

var tickerPattern = regexp.MustCompile(`'([A-Z][A-Z0-9.\-]*)'`)

// FileName returns the snapshot file name for day, e.g. 17_03_21.csv.
func FileName(day time.Time) string {
	return day.UTC().Format(fileLayout) + ".csv"
}

// ParseFileName recovers the snapshot day from a file name.
func ParseFileName(name string) (time.Time, error) {
	base := strings.TrimSuffix(filepath.Base(name), ".csv")
	return time.ParseInLocation(fileLayout, base, time.UTC)
}

// FormatTickers renders tickers as a list literal: ['AAPL', 'TSLA'].
// An empty list renders as an empty cell.
func FormatTickers(tickers []string) string {
	if len(tickers) == 0 {
		return ""
	}
	quoted := make([]string, len(tickers))
	for i, t := range tickers {
		quoted[i] = "'" + t + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// ParseTickers extracts the quoted symbols of a list literal.
func ParseTickers(cell string) []string {
	matches := tickerPattern.FindAllStringSubmatch(cell, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m[1]
	}
	return out
}

// Write encodes records as a snapshot.
func Write(w io.Writer, records []models.RawRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.ParentPostID,
			r.CommentID(),
			r.Source,
			string(r.Kind),
			strconv.FormatInt(r.Timestamp.Unix(), 10),
			r.Text,
			FormatTickers(r.Tickers),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read decodes a snapshot. Rows whose text_type is neither post nor comment
// are skipped and counted.
func Read(r io.Reader) (records []models.RawRecord, skipped int, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read snapshot header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, name := range []string{"post_id", "text_type", "epoch_time"} {
		if _, ok := col[name]; !ok {
			return nil, 0, fmt.Errorf("snapshot is missing column %q", name)
		}
	}
	cell := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, skipped, fmt.Errorf("line %d: %w", line, err)
		}

		kind, err := models.ParseKind(cell(row, "text_type"))
		if err != nil {
			skipped++
			continue
		}
		// epoch_time may carry a fractional part
		secs, err := strconv.ParseFloat(cell(row, "epoch_time"), 64)
		if err != nil {
			return nil, skipped, fmt.Errorf("line %d: invalid epoch_time: %w", line, err)
		}
		ts := time.Unix(int64(secs), 0).UTC()
		postID := cell(row, "post_id")
		source := cell(row, "subreddit")
		text := cell(row, "text")

		var rec models.RawRecord
		if kind == models.KindPost {
			rec = models.NewPost(postID, source, ts, text)
		} else {
			rec = models.NewComment(cell(row, "comment_id"), postID, source, ts, text)
		}
		rec.Tickers = ParseTickers(cell(row, "tickers"))
		if err := rec.Validate(); err != nil {
			return nil, skipped, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

// WriteFile writes the snapshot for day into dir and returns its path.
func WriteFile(dir string, day time.Time, records []models.RawRecord) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	path := filepath.Join(dir, FileName(day))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create snapshot: %w", err)
	}
	if err := Write(f, records); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	return path, f.Close()
}

// ReadFile reads one snapshot file.
func ReadFile(path string) ([]models.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	records, skipped, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if skipped > 0 {
		logger.Warn("Skipped %d malformed rows in %s", skipped, path)
	}
	return records, nil
}

// File is a snapshot file found on disk.
type File struct {
	Path string
	Day  time.Time
}

// List returns the snapshot files in dir, oldest first. Files whose names
// are not snapshot dates are ignored.
func List(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []File
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".csv" {
			continue
		}
		d, err := ParseFileName(e.Name())
		if err != nil {
			continue
		}
		files = append(files, File{Path: filepath.Join(dir, e.Name()), Day: d})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Day.Before(files[j].Day) })
	return files, nil
}
