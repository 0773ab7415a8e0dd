// Package scheduler runs the background jobs of the admission service on
// cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/college-admission/internal/logger"
)

// Job is a named task run on a six-field (seconds first) cron spec.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context)
}

// Scheduler wraps a cron runner in UTC.
type Scheduler struct {
	cron    *cron.Cron
	log     *logrus.Entry
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
}

// New registers jobs. A job with an empty spec is disabled; an invalid
// spec is an error.
func New(timeout time.Duration, jobs ...Job) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC), cron.WithSeconds()),
		log:     logger.WithService("scheduler"),
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, j := range jobs {
		if j.Spec == "" {
			s.log.WithField("job", j.Name).Info("job disabled")
			continue
		}
		if _, err := s.cron.AddFunc(j.Spec, s.wrap(j)); err != nil {
			cancel()
			return nil, fmt.Errorf("register job %s: %w", j.Name, err)
		}
		s.log.WithFields(logrus.Fields{"job": j.Name, "spec": j.Spec}).Info("job registered")
	}
	return s, nil
}

func (s *Scheduler) wrap(j Job) func() {
	return func() {
		ctx := s.ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				s.log.WithFields(logrus.Fields{"job": j.Name, "panic": r}).Error("job panicked")
			}
		}()
		j.Run(ctx)
		s.log.WithFields(logrus.Fields{"job": j.Name, "duration": time.Since(start).String()}).Debug("job finished")
	}
}

// Jobs reports how many jobs are registered.
func (s *Scheduler) Jobs() int { return len(s.cron.Entries()) }

// Run starts the scheduler and blocks until ctx is done, then waits for
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	<-ctx.Done()
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}
