// Package scheduler pkg/scheduler/scheduler.go runs named recurring jobs.
// The scheduler is constructed once at process start and injected into the
// components that need background work; nothing here is global state.
package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"
)

var errAlreadyStarted = errors.New("scheduler already started")

// Job is one scheduled unit of work. Errors are logged, never propagated:
// one bad cycle must not halt the schedule.
type Job func(ctx context.Context) error

// Trigger computes the next firing time after a given instant.
type Trigger interface {
	Next(after time.Time) time.Time
}

// IntervalTrigger fires at a fixed period.
type IntervalTrigger time.Duration

func (t IntervalTrigger) Next(after time.Time) time.Time {
	return after.Add(time.Duration(t))
}

// CronTrigger fires on cron-expression boundaries, evaluated in UTC.
type CronTrigger struct {
	expr *cronexpr.Expression
}

// NewCronTrigger parses a standard cron expression.
func NewCronTrigger(spec string) (*CronTrigger, error) {
	expr, err := cronexpr.Parse(spec)
	if err != nil {
		return nil, err
	}

	return &CronTrigger{expr: expr}, nil
}

func (t *CronTrigger) Next(after time.Time) time.Time {
	return t.expr.Next(after.UTC())
}

type job struct {
	name    string
	trigger Trigger
	fn      Job
}

// Scheduler holds a table of named jobs and runs each on its own trigger.
type Scheduler struct {
	mu      sync.Mutex
	jobs    []job
	started bool
	wg      sync.WaitGroup
}

func New() *Scheduler {
	return &Scheduler{}
}

// AddJob registers a named job. Registration after Start is rejected.
func (s *Scheduler) AddJob(name string, trigger Trigger, fn Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errAlreadyStarted
	}

	s.jobs = append(s.jobs, job{name: name, trigger: trigger, fn: fn})

	return nil
}

// Start launches one goroutine per job. Jobs run until ctx is canceled; a
// job that overlaps its next trigger is allowed to (rollups are idempotent,
// polls are self-contained).
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}

	s.started = true

	for _, j := range s.jobs {
		s.wg.Add(1)

		go s.run(ctx, j)
	}
}

// Stop waits for all job goroutines to observe cancellation.
func (s *Scheduler) Stop() {
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, j job) {
	defer s.wg.Done()

	log.Printf("Scheduled job %q starting", j.name)

	for {
		now := time.Now()

		timer := time.NewTimer(time.Until(j.trigger.Next(now)))

		select {
		case <-ctx.Done():
			timer.Stop()
			log.Printf("Scheduled job %q stopping", j.name)

			return
		case <-timer.C:
			if err := j.fn(ctx); err != nil {
				log.Printf("Scheduled job %q failed: %v", j.name, err)
			}
		}
	}
}
