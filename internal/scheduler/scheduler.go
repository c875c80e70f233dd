package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/a9lim/shannon/internal/bus"
)

const cronTick = 30 * time.Second

// Publisher is the subset of *bus.Bus the scheduler needs. Accepting an
// interface keeps this package testable without a real bus.
type Publisher interface {
	Publish(kind bus.Kind, payload any) bus.Event
}

// Scheduler owns the heartbeat and cron loops described in C5. Both are
// started and stopped together.
type Scheduler struct {
	store             *Store
	bus               Publisher
	heartbeatInterval time.Duration
	heartbeatPath     string

	now func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Scheduler. heartbeatPath may be empty to disable the
// heartbeat loop (used in embedded/test configurations).
func New(store *Store, publisher Publisher, heartbeatInterval time.Duration, heartbeatPath string) *Scheduler {
	if heartbeatInterval <= 0 {
		heartbeatInterval = 30 * time.Second
	}
	return &Scheduler{
		store:             store,
		bus:               publisher,
		heartbeatInterval: heartbeatInterval,
		heartbeatPath:     heartbeatPath,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// Start launches the heartbeat and cron goroutines. Calling Start twice
// without an intervening Stop is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if s.heartbeatPath != "" {
		s.checkStaleHeartbeat()
		s.wg.Add(1)
		go s.runHeartbeatLoop(runCtx)
	}

	s.wg.Add(1)
	go s.runCronLoop(runCtx)
}

// Stop cancels both loops and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
}

func (s *Scheduler) runCronLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(cronTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatchDueJobs(ctx)
		}
	}
}

// dispatchDueJobs enumerates enabled jobs and fires any whose next
// cron-computed tick is at or before now, updating last_run atomically so
// a job fires at most once per logical tick even if this loop is delayed.
func (s *Scheduler) dispatchDueJobs(ctx context.Context) {
	jobs, err := s.store.listEnabled(ctx)
	if err != nil {
		slog.Error("scheduler: list enabled jobs failed", "error", err)
		return
	}

	g := gronx.New()
	now := s.now()
	for _, job := range jobs {
		reference := now
		if job.LastRun != nil {
			reference = *job.LastRun
		}

		next, err := g.NextTickAfter(job.Expr, reference, job.LastRun == nil)
		if err != nil {
			slog.Error("scheduler: compute next tick failed", "job", job.Name, "expr", job.Expr, "error", err)
			continue
		}
		if next.After(now) {
			continue
		}

		ok, err := s.store.markRun(ctx, job.ID, job.LastRun, now)
		if err != nil {
			slog.Error("scheduler: mark run failed", "job", job.Name, "error", err)
			continue
		}
		if !ok {
			// Another tick (or another process) already claimed this fire.
			continue
		}

		s.bus.Publish(bus.KindSchedulerTrigger, bus.SchedulerTrigger{
			JobID:      job.ID,
			JobName:    job.Name,
			Expression: job.Expr,
			Action:     job.Action,
		})
		slog.Info("scheduler: job fired", "job", job.Name, "expr", job.Expr)
	}
}

// AddJob, RemoveJob, and ListJobs delegate to the store; exported here so
// callers (command dispatcher) only need a single scheduler handle.
func (s *Scheduler) AddJob(ctx context.Context, name, expr, action string) (*Job, error) {
	return s.store.AddJob(ctx, name, expr, action)
}

func (s *Scheduler) RemoveJob(ctx context.Context, name string) (bool, error) {
	return s.store.RemoveJob(ctx, name)
}

func (s *Scheduler) ListJobs(ctx context.Context) ([]Job, error) {
	return s.store.ListJobs(ctx)
}
