package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/a9lim/shannon/internal/auth"
	"github.com/a9lim/shannon/internal/pause"
)

// memoryListTokenBudget bounds how much stored memory "/memory" (with no
// sub-verb) renders back into chat at once.
const memoryListTokenBudget = 500

func (d *Dispatcher) handleSudo(ctx context.Context, transport, channel, userID, args string) error {
	switch {
	case args == "":
		if !d.ledger.Check(transport, userID, auth.Admin) {
			return d.send(transport, channel, "Admin access required to view sudo requests.")
		}
		pending := d.ledger.ListPending()
		if len(pending) == 0 {
			return d.send(transport, channel, "No pending sudo requests.")
		}
		lines := make([]string, 0, len(pending))
		for _, p := range pending {
			lines = append(lines, fmt.Sprintf("`%s` — %s:%s -> %s — %s", p.ID, p.Transport, p.UserID, p.Requested, p.Action))
		}
		return d.send(transport, channel, "Pending sudo requests:\n"+strings.Join(lines, "\n"))

	case strings.HasPrefix(args, "approve "):
		requestID := strings.Fields(args)[1]
		if d.ledger.ApproveSudo(requestID, transport, userID) {
			return d.send(transport, channel, fmt.Sprintf("Sudo request `%s` approved.", requestID))
		}
		return d.send(transport, channel, "Failed to approve. Check request ID and your permissions.")

	case strings.HasPrefix(args, "deny "):
		requestID := strings.Fields(args)[1]
		if d.ledger.DenySudo(requestID) {
			return d.send(transport, channel, fmt.Sprintf("Sudo request `%s` denied.", requestID))
		}
		return d.send(transport, channel, fmt.Sprintf("Request `%s` not found.", requestID))

	default:
		requestID := d.ledger.RequestSudo(transport, userID, args, auth.Admin)
		return d.send(transport, channel, fmt.Sprintf("Sudo requested (`%s`). An admin must approve with `/sudo approve %s`.", requestID, requestID))
	}
}

func (d *Dispatcher) handleMemory(ctx context.Context, transport, channel, userID, args string) error {
	switch {
	case args == "":
		exported, err := d.memory.ExportContext(ctx, memoryListTokenBudget)
		if err != nil {
			return err
		}
		if exported == "" {
			return d.send(transport, channel, "No memories stored.")
		}
		return d.send(transport, channel, exported)

	case strings.HasPrefix(args, "search "):
		query := strings.TrimPrefix(args, "search ")
		entries, err := d.memory.Search(ctx, query)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return d.send(transport, channel, fmt.Sprintf("No memories found matching: %s", query))
		}
		lines := make([]string, 0, len(entries))
		for _, e := range entries {
			lines = append(lines, fmt.Sprintf("[%s] %s: %s", e.Category, e.Key, e.Value))
		}
		return d.send(transport, channel, strings.Join(lines, "\n"))

	case args == "clear":
		if !d.ledger.Check(transport, userID, auth.Admin) {
			return d.send(transport, channel, "Admin access required to clear memory.")
		}
		count, err := d.memory.Clear(ctx)
		if err != nil {
			return err
		}
		return d.send(transport, channel, fmt.Sprintf("Cleared %d memory entries.", count))

	default:
		return d.send(transport, channel, "Usage: /memory search <query> | /memory clear")
	}
}

func (d *Dispatcher) handlePause(ctx context.Context, transport, channel, userID, args string) error {
	if !d.ledger.Check(transport, userID, auth.Operator) {
		return d.send(transport, channel, "Operator access required to pause.")
	}
	var duration string
	if args != "" {
		dur, ok := pause.ParseDuration(args)
		if !ok {
			return d.send(transport, channel, fmt.Sprintf("Invalid duration: %s", args))
		}
		d.gate.Pause(dur)
		duration = fmt.Sprintf(" for %s", dur)
	} else {
		d.gate.Pause(0)
	}
	return d.send(transport, channel, "Paused"+duration+".")
}

func (d *Dispatcher) handleResume(ctx context.Context, transport, channel, userID string) error {
	if !d.ledger.Check(transport, userID, auth.Operator) {
		return d.send(transport, channel, "Operator access required to resume.")
	}
	d.gate.Resume()
	deferred := d.gate.DrainQueue()
	if d.bus != nil {
		for _, ev := range deferred {
			d.bus.Publish(ev.Kind, ev.Payload)
		}
	}
	return d.send(transport, channel, fmt.Sprintf("Resumed. %d queued event(s) released.", len(deferred)))
}

func (d *Dispatcher) handleStatus(ctx context.Context, transport, channel string) error {
	state := "Active"
	if d.gate.IsPaused() {
		state = "Paused"
	}
	return d.send(transport, channel, fmt.Sprintf("Status: %s, %d queued event(s).", state, d.gate.QueuedCount()))
}
