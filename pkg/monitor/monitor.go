// Package monitor pkg/monitor/monitor.go owns the poll→ingest→aggregate→prune
// pipeline. The scheduler is constructed at process start and injected here
// rather than referenced as ambient state.
package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mfreeman451/netmon/pkg/collector"
	"github.com/mfreeman451/netmon/pkg/config"
	"github.com/mfreeman451/netmon/pkg/db"
	"github.com/mfreeman451/netmon/pkg/scheduler"
)

// SnapshotListener receives each snapshot after it is durably stored. It
// must not block; the websocket hub fans out from here.
type SnapshotListener func(snapshot db.StatusSnapshot)

// Service drives the monitoring pipeline against a single remote device.
type Service struct {
	store         db.Service
	client        *collector.Client
	sched         *scheduler.Scheduler
	pollInterval  time.Duration
	retentionDays int

	mu       sync.RWMutex
	listener SnapshotListener
}

// NewService wires the pipeline's jobs into the provided scheduler: the
// interval poll, the hourly rollup of the hour that just completed, and the
// daily prune at the configured UTC hour.
func NewService(store db.Service, client *collector.Client, cfg *config.Config, sched *scheduler.Scheduler) (*Service, error) {
	s := &Service{
		store:         store,
		client:        client,
		sched:         sched,
		pollInterval:  time.Duration(cfg.PollInterval),
		retentionDays: cfg.RetentionDays,
	}

	if err := sched.AddJob("fetch_data", scheduler.IntervalTrigger(s.pollInterval), s.pollJob); err != nil {
		return nil, err
	}

	hourly, err := scheduler.NewCronTrigger("0 * * * *")
	if err != nil {
		return nil, err
	}

	if err := sched.AddJob("hourly_rollup", hourly, s.rollupJob); err != nil {
		return nil, err
	}

	daily, err := scheduler.NewCronTrigger(fmt.Sprintf("0 %d * * *", cfg.CleanupHour))
	if err != nil {
		return nil, err
	}

	if err := sched.AddJob("cleanup", daily, s.pruneJob); err != nil {
		return nil, err
	}

	return s, nil
}

// SetSnapshotListener registers the post-ingest callback.
func (s *Service) SetSnapshotListener(fn SnapshotListener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listener = fn
}

func (s *Service) notify(snapshot db.StatusSnapshot) {
	s.mu.RLock()
	fn := s.listener
	s.mu.RUnlock()

	if fn != nil {
		fn(snapshot)
	}
}

// Start performs one immediate poll so the dashboard has data right away,
// then starts the scheduler that drives the recurring jobs.
func (s *Service) Start(ctx context.Context) error {
	log.Printf("Starting monitor with poll interval %v", s.pollInterval)

	if err := s.pollJob(ctx); err != nil {
		log.Printf("Error during initial poll: %v", err)
	}

	s.sched.Start(ctx)

	return nil
}

// Stop waits for any in-flight scheduled job to finish.
func (s *Service) Stop(context.Context) error {
	s.sched.Stop()

	return nil
}

// FetchNow runs one synchronous poll+ingest cycle and returns the fetched
// payload. It is the on-demand counterpart of the scheduled poll job.
func (s *Service) FetchNow(ctx context.Context) (*collector.Payload, error) {
	payload, err := s.client.Poll(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.Ingest(payload, time.Now()); err != nil {
		return nil, err
	}

	return payload, nil
}

// pollJob is the scheduled fetch: a source failure writes nothing and the
// schedule continues.
func (s *Service) pollJob(ctx context.Context) error {
	log.Printf("Executing scheduled data fetch...")

	payload, err := s.client.Poll(ctx)
	if err != nil {
		return err
	}

	return s.Ingest(payload, time.Now())
}

// rollupJob summarizes the hour that just completed, on UTC boundaries.
func (s *Service) rollupJob(context.Context) error {
	hourStart := time.Now().UTC().Truncate(time.Hour).Add(-time.Hour)

	return s.RollupHour(hourStart)
}

func (s *Service) pruneJob(context.Context) error {
	return s.Prune(time.Now())
}
