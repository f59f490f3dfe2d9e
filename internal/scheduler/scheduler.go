// Package scheduler fires recurring synchronization cycles on cron
// schedules. A firing that would overlap a still-running cycle of the same
// job is skipped, never queued.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one schedulable cycle. Exactly one invocation per firing; the
// context carries the per-cycle timeout.
type Job func(ctx context.Context) error

// Scheduler wraps a cron runner with per-job overlap guards.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
}

// New creates a scheduler in the given location. timeout bounds each cycle;
// zero means no bound.
func New(loc *time.Location, timeout time.Duration) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		timeout: timeout,
	}
}

// Register adds a job under a cron spec. The guard is per registration:
// two different jobs may overlap, two firings of the same job may not.
func (s *Scheduler) Register(spec, name string, job Job) error {
	var running sync.Mutex

	_, err := s.cron.AddFunc(spec, func() {
		if !running.TryLock() {
			log.Printf("scheduler: %s is still running, skipping this firing", name)
			return
		}
		defer running.Unlock()

		ctx := context.Background()
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}

		started := time.Now()
		if err := job(ctx); err != nil {
			log.Printf("scheduler: %s failed after %s: %v", name, time.Since(started).Round(time.Millisecond), err)
			return
		}
		log.Printf("scheduler: %s completed in %s", name, time.Since(started).Round(time.Millisecond))
	})
	return err
}

// Start begins firing registered jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the cron runner and returns once in-flight jobs finished.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
