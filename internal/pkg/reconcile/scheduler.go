package reconcile

import (
	"context"
	"time"

	"github.com/erpeaz/siteboard/internal/pkg/env"
	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"
)

const defaultCronSpec = "*/5 * * * *"

// Scheduler runs the reconcile job on a cron interval.
type Scheduler struct {
	job  *Job
	cron *cron.Cron
}

// NewScheduler wraps a job in a cron scheduler. The schedule comes from
// RECONCILE_CRON (standard 5-field cron syntax, default every 5 minutes).
func NewScheduler(job *Job) (*Scheduler, error) {
	spec := env.GetEnv("RECONCILE_CRON", defaultCronSpec)

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if err := job.RunTick(ctx); err != nil {
			// Tick errors are logged and retried on the next schedule; the
			// scheduler loop itself must never die.
			log.Errorf("[Reconcile] tick failed: %v", err)
		}
	})
	if err != nil {
		return nil, err
	}

	return &Scheduler{job: job, cron: c}, nil
}

// Start begins scheduling ticks.
func (s *Scheduler) Start() {
	log.Infof("[Reconcile] scheduler starting (spec %q)", env.GetEnv("RECONCILE_CRON", defaultCronSpec))
	s.cron.Start()
}

// Stop halts scheduling and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("[Reconcile] scheduler stopped")
}

// Job returns the underlying job, used by the admin force-run route.
func (s *Scheduler) Job() *Job {
	return s.job
}
