package runner

import (
	"context"
	"log"
	"time"

	"github.com/jonboulle/clockwork"
)

// Scheduler drives periodic processing runs. The interval is coarse because
// the climatology only changes once per day; intermediate runs just refresh
// today's extremes and percentile.
type Scheduler struct {
	runner   *Runner
	clock    clockwork.Clock
	interval time.Duration
}

func NewScheduler(runner *Runner, clock clockwork.Clock, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{runner: runner, clock: clock, interval: interval}
}

// Run processes all stations immediately, then again every interval until the
// context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	if err := s.runner.ProcessAll(ctx); err != nil {
		log.Printf("scheduler: run: %v", err)
	}

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: shutting down")
			return
		case <-ticker.Chan():
			if err := s.runner.ProcessAll(ctx); err != nil {
				log.Printf("scheduler: run: %v", err)
			}
		}
	}
}
