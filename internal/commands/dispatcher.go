// Package commands implements the slash-command dispatcher (C12): parsing
// "/<verb> <args>" and routing to the context store, scheduler, auth
// ledger, memory store, and pause gate.
package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/a9lim/shannon/internal/auth"
	"github.com/a9lim/shannon/internal/bus"
	"github.com/a9lim/shannon/internal/convostore"
	"github.com/a9lim/shannon/internal/memory"
	"github.com/a9lim/shannon/internal/pause"
	"github.com/a9lim/shannon/internal/scheduler"
)

// SendFunc delivers text back to (platform, channel).
type SendFunc func(platform, channel, content string) error

// Publisher is the subset of *bus.Bus the dispatcher needs to replay
// events deferred by the pause gate.
type Publisher interface {
	Publish(kind bus.Kind, payload any) bus.Event
}

// Dispatcher parses and runs slash commands.
type Dispatcher struct {
	context   *convostore.Store
	scheduler *scheduler.Scheduler
	ledger    *auth.Ledger
	memory    *memory.Store
	gate      *pause.Gate
	bus       Publisher
	send      SendFunc
}

// New builds a Dispatcher wired to every subsystem a command might touch.
// bus may be nil, in which case /resume reports the queued count but
// cannot replay deferred events.
func New(contextStore *convostore.Store, sched *scheduler.Scheduler, ledger *auth.Ledger, memStore *memory.Store, gate *pause.Gate, publisher Publisher, send SendFunc) *Dispatcher {
	return &Dispatcher{context: contextStore, scheduler: sched, ledger: ledger, memory: memStore, gate: gate, bus: publisher, send: send}
}

// Handle parses content as "/<verb> <args>" and dispatches it. transport
// is the bus/auth transport name (e.g. "discord"); channel and userID
// identify the reply target and caller.
func (d *Dispatcher) Handle(ctx context.Context, transport, channel, userID, content string) error {
	parts := strings.SplitN(strings.TrimSpace(content), " ", 2)
	verb := strings.ToLower(parts[0])
	args := ""
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}

	switch verb {
	case "/forget":
		return d.handleForget(ctx, transport, channel)
	case "/context":
		return d.handleContext(ctx, transport, channel)
	case "/summarize":
		return d.handleSummarize(ctx, transport, channel)
	case "/jobs":
		return d.handleJobs(ctx, transport, channel)
	case "/sudo":
		return d.handleSudo(ctx, transport, channel, userID, args)
	case "/memory":
		return d.handleMemory(ctx, transport, channel, userID, args)
	case "/pause":
		return d.handlePause(ctx, transport, channel, userID, args)
	case "/resume":
		return d.handleResume(ctx, transport, channel, userID)
	case "/status":
		return d.handleStatus(ctx, transport, channel)
	case "/help":
		return d.send(transport, channel, "Commands: /forget, /context, /summarize, /jobs, /sudo, /memory, /pause, /resume, /status, /help")
	default:
		return d.send(transport, channel, fmt.Sprintf("Unknown command: %s", verb))
	}
}

func (d *Dispatcher) handleForget(ctx context.Context, transport, channel string) error {
	count, err := d.context.Forget(ctx, transport, channel)
	if err != nil {
		return err
	}
	return d.send(transport, channel, fmt.Sprintf("Cleared %d messages from context.", count))
}

func (d *Dispatcher) handleContext(ctx context.Context, transport, channel string) error {
	stats, err := d.context.Stats(ctx, transport, channel)
	if err != nil {
		return err
	}
	return d.send(transport, channel, fmt.Sprintf("Context: %d messages, %d chars", stats.Count, stats.TotalChars))
}

func (d *Dispatcher) handleSummarize(ctx context.Context, transport, channel string) error {
	summary, err := d.context.Summarize(ctx, transport, channel)
	if err != nil {
		return err
	}
	if summary == "" {
		return d.send(transport, channel, "No context to summarize.")
	}
	return d.send(transport, channel, "Summary:\n"+summary)
}

func (d *Dispatcher) handleJobs(ctx context.Context, transport, channel string) error {
	jobs, err := d.scheduler.ListJobs(ctx)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return d.send(transport, channel, "No scheduled jobs.")
	}
	lines := make([]string, 0, len(jobs))
	for _, j := range jobs {
		lines = append(lines, fmt.Sprintf("%s — `%s` — %s", j.Name, j.Expr, j.Action))
	}
	return d.send(transport, channel, strings.Join(lines, "\n"))
}
