// Package scheduler runs named jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rewired-gh/tickerpulse/internal/logger"
)

// Job represents a scheduled task
type Job func(ctx context.Context) error

type entry struct {
	id       cron.EntryID
	schedule string
	job      Job
}

// Scheduler manages periodic tasks. A job never overlaps with itself: a
// tick that fires while the previous run is still going is skipped.
type Scheduler struct {
	cron     *cron.Cron
	timeout  time.Duration
	timezone *time.Location

	mu   sync.Mutex
	jobs map[string]entry
}

// New creates a scheduler in the given timezone. Each run gets a context
// that expires after timeout.
func New(timezone string, timeout time.Duration) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	return &Scheduler{
		cron:     c,
		timeout:  timeout,
		timezone: loc,
		jobs:     make(map[string]entry),
	}, nil
}

// AddJob adds a job with a standard five-field cron schedule,
// e.g. "0 6 * * *" for 06:00 daily. Adding a name twice replaces the job.
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	id, err := s.cron.AddFunc(schedule, func() {
		if err := s.run(name, job); err != nil {
			logger.Error("Job %s failed: %v", name, err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.mu.Lock()
	if old, ok := s.jobs[name]; ok {
		s.cron.Remove(old.id)
	}
	s.jobs[name] = entry{id: id, schedule: schedule, job: job}
	s.mu.Unlock()

	logger.Info("Added job: %s (schedule: %s, timezone: %s)", name, schedule, s.timezone)
	return nil
}

// RemoveJob removes a scheduled job
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.jobs[name]; ok {
		s.cron.Remove(e.id)
		delete(s.jobs, name)
		logger.Info("Removed job: %s", name)
	}
}

func (s *Scheduler) run(name string, job Job) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	logger.Info("Starting job: %s", name)
	start := time.Now()
	if err := job(ctx); err != nil {
		return err
	}
	logger.Info("Job %s completed in %v", name, time.Since(start).Round(time.Millisecond))
	return nil
}

// RunNow immediately executes a registered job outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	e, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %s", name)
	}
	return s.run(name, e.job)
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	logger.Info("Starting scheduler")
	s.cron.Start()
}

// Stop halts the scheduler. The returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	logger.Info("Stopping scheduler")
	return s.cron.Stop()
}

// JobInfo contains information about a scheduled job
type JobInfo struct {
	Name     string
	Schedule string
	NextRun  time.Time
	LastRun  time.Time
}

// ListJobs returns the scheduled jobs sorted by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, e := range s.jobs {
		ce := s.cron.Entry(e.id)
		infos = append(infos, JobInfo{
			Name:     name,
			Schedule: e.schedule,
			NextRun:  ce.Next,
			LastRun:  ce.Prev,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}
