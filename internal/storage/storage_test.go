package storage

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rewired-gh/tickerpulse/internal/models"
	"github.com/rewired-gh/tickerpulse/internal/timeseries"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func day(d int) time.Time {
	return time.Date(2021, 4, d, 0, 0, 0, 0, time.UTC)
}

func testRecords(ts time.Time) []models.RawRecord {
	post := models.NewPost("p1", "stocks", ts, "AAPL to the moon")
	post.Tickers = []string{"AAPL"}
	comment := models.NewComment("c1", "p1", "stocks", ts.Add(time.Minute), "agreed")
	return []models.RawRecord{post, comment}
}

func TestStorage_AddAndLoadRecords(t *testing.T) {
	s := newTestStorage(t)
	ts := day(1).Add(15 * time.Hour)

	n, err := s.AddRecords(day(1), testRecords(ts))
	if err != nil {
		t.Fatalf("AddRecords: %v", err)
	}
	if n != 2 {
		t.Errorf("inserted %d, want 2", n)
	}

	got, err := s.LoadRecords()
	if err != nil {
		t.Fatalf("LoadRecords: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("loaded %d records, want 2", len(got))
	}
	if got[0].Kind != models.KindPost || got[0].RecordID != "p1" {
		t.Errorf("unexpected first record: %+v", got[0])
	}
	if len(got[0].Tickers) != 1 || got[0].Tickers[0] != "AAPL" {
		t.Errorf("tickers not round-tripped: %v", got[0].Tickers)
	}
	if got[1].Tickers != nil {
		t.Errorf("expected nil tickers for untagged comment, got %v", got[1].Tickers)
	}
	if !got[0].Timestamp.Equal(ts) {
		t.Errorf("timestamp %v, want %v", got[0].Timestamp, ts)
	}
	if got[1].ParentPostID != "p1" || got[1].CommentID() != "c1" {
		t.Errorf("comment identity lost: %+v", got[1])
	}
}

func TestStorage_AddRecords_DuplicatesPerSnapshot(t *testing.T) {
	s := newTestStorage(t)
	ts := day(1).Add(time.Hour)

	if _, err := s.AddRecords(day(1), testRecords(ts)); err != nil {
		t.Fatalf("AddRecords: %v", err)
	}
	n, err := s.AddRecords(day(1), testRecords(ts))
	if err != nil {
		t.Fatalf("AddRecords again: %v", err)
	}
	if n != 0 {
		t.Errorf("same snapshot re-insert stored %d rows, want 0", n)
	}

	// The next day's snapshot sees the same hot post again.
	if _, err := s.AddRecords(day(2), testRecords(ts)); err != nil {
		t.Fatalf("AddRecords next day: %v", err)
	}
	count, err := s.CountRecords()
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	if count != 4 {
		t.Errorf("count %d, want 4", count)
	}

	dates, err := s.SnapshotDates()
	if err != nil {
		t.Fatalf("SnapshotDates: %v", err)
	}
	if len(dates) != 2 || !dates[0].Equal(day(1)) || !dates[1].Equal(day(2)) {
		t.Errorf("unexpected snapshot dates: %v", dates)
	}
}

func TestStorage_AddRecords_Invalid(t *testing.T) {
	s := newTestStorage(t)
	bad := models.RawRecord{Kind: models.KindComment, ParentPostID: "p1", Timestamp: day(1)}
	if _, err := s.AddRecords(day(1), []models.RawRecord{bad}); err == nil {
		t.Error("expected error for comment without id")
	}
	count, _ := s.CountRecords()
	if count != 0 {
		t.Errorf("invalid batch left %d rows", count)
	}
}

func TestStorage_RotateSnapshots(t *testing.T) {
	s := newTestStorage(t)
	for d := 1; d <= 4; d++ {
		if _, err := s.AddRecords(day(d), testRecords(day(d))); err != nil {
			t.Fatalf("AddRecords: %v", err)
		}
	}

	if n, err := s.RotateSnapshots(0); err != nil || n != 0 {
		t.Errorf("RotateSnapshots(0) = %d, %v", n, err)
	}
	n, err := s.RotateSnapshots(2)
	if err != nil {
		t.Fatalf("RotateSnapshots: %v", err)
	}
	if n != 4 {
		t.Errorf("deleted %d rows, want 4", n)
	}
	dates, _ := s.SnapshotDates()
	if len(dates) != 2 || !dates[0].Equal(day(3)) {
		t.Errorf("unexpected remaining snapshots: %v", dates)
	}
}

func TestStorage_VolumeTable(t *testing.T) {
	s := newTestStorage(t)

	if _, err := s.LoadVolumeTable(); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on empty store, got %v", err)
	}

	nan := math.NaN()
	tbl, err := timeseries.NewTable(
		[]time.Time{day(1), day(2), day(3)},
		[]string{"AAPL", "TSLA"},
		[][]float64{{100, nan, 300}, {10, 20, nan}},
	)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	saved, err := s.SaveVolumeTable(tbl)
	if err != nil {
		t.Fatalf("SaveVolumeTable: %v", err)
	}
	if saved != 4 {
		t.Errorf("saved %d cells, want 4", saved)
	}

	got, err := s.LoadVolumeTable()
	if err != nil {
		t.Fatalf("LoadVolumeTable: %v", err)
	}
	if got.Len() != 3 {
		t.Fatalf("rows %d, want 3", got.Len())
	}
	if v, _ := got.Value(2, "AAPL"); v != 300 {
		t.Errorf("AAPL day 3 = %v, want 300", v)
	}
	if v, _ := got.Value(1, "AAPL"); !timeseries.Missing(v) {
		t.Errorf("AAPL day 2 = %v, want missing", v)
	}
	if v, _ := got.Value(1, "TSLA"); v != 20 {
		t.Errorf("TSLA day 2 = %v, want 20", v)
	}

	// A later save without a value keeps the stored one.
	update, _ := timeseries.NewTable([]time.Time{day(2)}, []string{"AAPL"}, [][]float64{{150}})
	if _, err := s.SaveVolumeTable(update); err != nil {
		t.Fatalf("SaveVolumeTable update: %v", err)
	}
	got, _ = s.LoadVolumeTable()
	if v, _ := got.Value(1, "AAPL"); v != 150 {
		t.Errorf("AAPL day 2 after update = %v, want 150", v)
	}
	if v, _ := got.Value(0, "AAPL"); v != 100 {
		t.Errorf("AAPL day 1 after update = %v, want 100", v)
	}
}

func TestStorage_Runs(t *testing.T) {
	s := newTestStorage(t)

	run, err := s.StartRun(day(5).Add(6*time.Hour), []string{"stocks", "investing"})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if run.ID == "" {
		t.Fatal("run ID not assigned")
	}
	if !run.SnapshotDate.Equal(day(5)) {
		t.Errorf("snapshot date %v, want %v", run.SnapshotDate, day(5))
	}

	got, err := s.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Succeeded() {
		t.Error("unfinished run reported as succeeded")
	}

	if err := s.FinishRun(run, 42, nil); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	failed, _ := s.StartRun(day(6), []string{"stocks"})
	if err := s.FinishRun(failed, 0, errors.New("reddit unavailable")); err != nil {
		t.Fatalf("FinishRun failed run: %v", err)
	}

	runs, err := s.RecentRuns(10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != failed.ID || runs[0].Error != "reddit unavailable" || runs[0].Succeeded() {
		t.Errorf("unexpected newest run: %+v", runs[0])
	}
	if runs[1].Records != 42 || !runs[1].Succeeded() || len(runs[1].Sources) != 2 {
		t.Errorf("unexpected older run: %+v", runs[1])
	}
}

func TestStorage_RunNotFound(t *testing.T) {
	s := newTestStorage(t)
	if _, err := s.GetRun("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	ghost := &models.ScrapeRun{ID: "ghost"}
	if err := s.FinishRun(ghost, 0, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
