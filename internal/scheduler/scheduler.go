// Package scheduler runs ReelPipe housekeeping on cron expressions.
package scheduler

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps a cron runner with a standard 5-field parser.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler. Panics inside jobs are
// recovered and logged.
func NewScheduler() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	slog.Debug("Scheduler started")
	return &Scheduler{cron: c}
}

// AddJob schedules task on expr and returns an id usable with RemoveJob.
func (s *Scheduler) AddJob(name, expr string, task func()) (int, error) {
	id, err := s.cron.AddFunc(expr, func() {
		slog.Debug("Scheduler running job", "job", name)
		task()
	})
	if err != nil {
		return 0, fmt.Errorf("schedule %s on %q: %w", name, expr, err)
	}
	slog.Info("Scheduler job added", "job", name, "expr", expr, "id", int(id))
	return int(id), nil
}

// RemoveJob unschedules a job. Unknown ids are ignored.
func (s *Scheduler) RemoveJob(id int) {
	s.cron.Remove(cron.EntryID(id))
	slog.Debug("Scheduler job removed", "id", id)
}

// Len returns the number of scheduled jobs.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Debug("Scheduler stopped")
}
