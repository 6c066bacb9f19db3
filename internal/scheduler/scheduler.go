// Package scheduler runs the usage rollup jobs in-process when no external
// scheduler triggers the aggregation endpoints.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/omniflow/quotad/internal/usagetrack"
	log "github.com/sirupsen/logrus"
)

const (
	hourlyInterval = time.Hour
	dailyInterval  = 24 * time.Hour
)

// Scheduler ticks the hourly and daily aggregation jobs.
type Scheduler struct {
	usage *usagetrack.Service
	mu    sync.Mutex // one rollup at a time, ticks never overlap
}

// New constructs a Scheduler.
func New(usage *usagetrack.Service) *Scheduler {
	return &Scheduler{usage: usage}
}

// Start launches the tick loops. They stop when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.usage == nil {
		return
	}
	go s.loop(ctx, hourlyInterval, s.runHourly)
	go s.loop(ctx, dailyInterval, s.runDaily)
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, job func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job(ctx)
		}
	}
}

func (s *Scheduler) runHourly(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	processed, errRun := s.usage.AggregateHourlyUsage(ctx)
	if errRun != nil {
		log.WithError(errRun).Warn("scheduled hourly aggregation failed")
		return
	}
	log.WithField("processed", processed).Debug("hourly aggregation done")
}

func (s *Scheduler) runDaily(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	processed, errRun := s.usage.AggregateDailyUsage(ctx)
	if errRun != nil {
		log.WithError(errRun).Warn("scheduled daily aggregation failed")
		return
	}
	log.WithField("processed", processed).Debug("daily aggregation done")
}
