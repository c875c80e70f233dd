package pause

import (
	"log/slog"
	"sync"
	"time"

	"github.com/a9lim/shannon/internal/bus"
)

// Gate is a process-wide suspend/resume flag with a buffer of deferred
// event envelopes. Direct human messages bypass the gate entirely — only
// autonomous triggers (scheduler, webhooks) are routed through
// QueueEvent while paused.
type Gate struct {
	mu          sync.Mutex
	paused      bool
	queued      []bus.Event
	resumeTimer *time.Timer
}

// New creates an unpaused Gate.
func New() *Gate {
	return &Gate{}
}

// IsPaused reports the current suspend state.
func (g *Gate) IsPaused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Pause sets the flag. If duration > 0, an auto-resume is scheduled.
func (g *Gate) Pause(duration time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.paused = true
	if g.resumeTimer != nil {
		g.resumeTimer.Stop()
		g.resumeTimer = nil
	}
	if duration > 0 {
		g.resumeTimer = time.AfterFunc(duration, func() {
			n := g.Resume()
			slog.Info("pause: auto-resumed", "queued_events", n)
		})
	}
	slog.Info("pause: paused", "duration", duration)
}

// Resume clears the flag, cancels any pending auto-resume, and returns
// the number of events that had been buffered while paused.
func (g *Gate) Resume() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.resumeTimer != nil {
		g.resumeTimer.Stop()
		g.resumeTimer = nil
	}
	g.paused = false
	n := len(g.queued)
	slog.Info("pause: resumed", "queued_events", n)
	return n
}

// QueueEvent appends an envelope to the deferred buffer. Intended for
// autonomous triggers observed while paused.
func (g *Gate) QueueEvent(ev bus.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queued = append(g.queued, ev)
}

// DrainQueue returns and clears the buffered events.
func (g *Gate) DrainQueue() []bus.Event {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := g.queued
	g.queued = nil
	return out
}

// QueuedCount reports the current buffer size without draining it.
func (g *Gate) QueuedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queued)
}
