package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler drives scheduled poll cycles at a fixed interval. The interval
// can be swapped at runtime when the settings file changes.
type Scheduler struct {
	runner Runner

	mu       sync.Mutex
	interval time.Duration
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewScheduler(runner Runner, interval time.Duration) *Scheduler {
	return &Scheduler{runner: runner, interval: interval}
}

// Start launches the polling loop with an immediate first cycle.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}
	s.start(true)
}

// SetInterval restarts the loop on the new interval. The next cycle runs one
// full interval from now; a settings edit alone is no reason to hit the
// upstream server.
func (s *Scheduler) SetInterval(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if interval == s.interval {
		return
	}
	s.interval = interval

	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.start(false)

	slog.Info("Poll interval changed", "interval", interval.String())
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.cancel = nil
}

// start launches the loop goroutine. The caller holds the mutex.
func (s *Scheduler) start(immediate bool) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(ctx, s.interval, immediate)
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, immediate bool) {
	defer s.wg.Done()

	if immediate {
		s.runner.RunScheduled(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runner.RunScheduled(ctx)
		}
	}
}
