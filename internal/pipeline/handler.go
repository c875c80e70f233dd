// Package pipeline implements the per-message orchestrator (C11): the
// single handler subscribed to message.incoming that runs every inbound
// message through rate limiting, command dispatch, auth, context
// persistence, and the tool-use reasoning loop before publishing a reply.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/a9lim/shannon/internal/auth"
	"github.com/a9lim/shannon/internal/bus"
	"github.com/a9lim/shannon/internal/commands"
	"github.com/a9lim/shannon/internal/convostore"
	"github.com/a9lim/shannon/internal/executor"
	"github.com/a9lim/shannon/internal/llmprovider"
	"github.com/a9lim/shannon/internal/memory"
	"github.com/a9lim/shannon/internal/pause"
	"github.com/a9lim/shannon/internal/toolkit"
)

// memoryExportTokenBudget bounds how much of C4's stored memory is folded
// into the system prompt as the "current memory" block.
const memoryExportTokenBudget = 400

// dryRunPreviewChars bounds the echoed content length in dry-run mode.
const dryRunPreviewChars = 100

// Publisher is the subset of *bus.Bus the pipeline needs to emit replies.
type Publisher interface {
	Publish(kind bus.Kind, payload any) bus.Event
}

// Handler wires together every subsystem a single inbound message touches.
type Handler struct {
	auth     *auth.Ledger
	context  *convostore.Store
	memory   *memory.Store // optional; nil disables the "current memory" block
	executor *executor.Executor
	registry *toolkit.Registry
	commands *commands.Dispatcher
	gate     *pause.Gate
	bus      Publisher
	dryRun   bool

	// controlTransport/controlChannel name the single reply destination
	// for autonomous triggers (C5 scheduler.trigger, C8 webhook.received),
	// neither of which carries a full (transport, channel) pair of its own.
	controlTransport string
	controlChannel    string
}

// Config carries everything Handle needs to construct a Handler.
type Config struct {
	Auth              *auth.Ledger
	Context           *convostore.Store
	Memory            *memory.Store
	Executor          *executor.Executor
	Registry          *toolkit.Registry
	Commands          *commands.Dispatcher
	Gate              *pause.Gate
	Bus               Publisher
	DryRun            bool
	ControlTransport  string
	ControlChannel    string
}

// New builds a Handler from cfg.
func New(cfg Config) *Handler {
	return &Handler{
		auth:              cfg.Auth,
		context:           cfg.Context,
		memory:            cfg.Memory,
		executor:          cfg.Executor,
		registry:          cfg.Registry,
		commands:          cfg.Commands,
		gate:              cfg.Gate,
		bus:               cfg.Bus,
		dryRun:            cfg.DryRun,
		controlTransport:  cfg.ControlTransport,
		controlChannel:    cfg.ControlChannel,
	}
}

// Handle processes one bus.Event carrying a bus.IncomingMessage payload.
// It never returns an error to the caller; failures are logged, since the
// bus dispatches this as a fire-and-forget subscriber.
func (h *Handler) Handle(ev bus.Event) {
	msg, ok := ev.Payload.(bus.IncomingMessage)
	if !ok {
		slog.Error("pipeline: unexpected payload type", "kind", ev.Kind)
		return
	}
	if err := h.process(context.Background(), msg); err != nil {
		slog.Error("pipeline: processing failed", "transport", msg.Transport, "channel", msg.Channel, "err", err)
	}
}

// HandleSchedulerTrigger processes one bus.Event carrying a
// bus.SchedulerTrigger payload (C5), folding it into a synthetic prompt.
// While the pause gate is engaged, the event is deferred rather than
// dropped (§4.6) — human messages never go through this path.
func (h *Handler) HandleSchedulerTrigger(ev bus.Event) {
	trig, ok := ev.Payload.(bus.SchedulerTrigger)
	if !ok {
		slog.Error("pipeline: unexpected payload type", "kind", ev.Kind)
		return
	}
	if h.gate != nil && h.gate.IsPaused() {
		h.gate.QueueEvent(ev)
		return
	}
	content := fmt.Sprintf("[Scheduled job %q fired: %s]", trig.JobName, trig.Action)
	h.runAutonomous(h.controlChannel, content)
}

// HandleWebhookReceived processes one bus.Event carrying a
// bus.WebhookReceived payload (C8), likewise deferring while paused.
func (h *Handler) HandleWebhookReceived(ev bus.Event) {
	wh, ok := ev.Payload.(bus.WebhookReceived)
	if !ok {
		slog.Error("pipeline: unexpected payload type", "kind", ev.Kind)
		return
	}
	if h.gate != nil && h.gate.IsPaused() {
		h.gate.QueueEvent(ev)
		return
	}
	channel := wh.TargetChannel
	if channel == "" {
		channel = h.controlChannel
	}
	content := fmt.Sprintf("[Webhook from %s (%s)]: %s", wh.Source, wh.EventType, wh.Summary)
	h.runAutonomous(channel, content)
}

// runAutonomous feeds a synthetic, non-slash-command prompt through the
// same context/executor path as a real message, attributed to a "system"
// user on the control transport.
func (h *Handler) runAutonomous(channel, content string) {
	if channel == "" {
		slog.Warn("pipeline: autonomous trigger has no destination channel, dropping", "content", content)
		return
	}
	msg := bus.IncomingMessage{
		Transport: h.controlTransport,
		Channel:   channel,
		UserID:    "system",
		Content:   content,
	}
	if err := h.process(context.Background(), msg); err != nil {
		slog.Error("pipeline: autonomous trigger failed", "channel", channel, "err", err)
	}
}

func (h *Handler) process(ctx context.Context, msg bus.IncomingMessage) error {
	transport, channel, userID, content := msg.Transport, msg.Channel, msg.UserID, msg.Content

	slog.Info("message received", "transport", transport, "channel", channel, "user", userID)

	if !h.auth.AllowRate(transport, userID) {
		return h.send(transport, channel, "You're sending messages too quickly. Please slow down.", "")
	}

	if len(content) > 0 && content[0] == '/' {
		return h.commands.Handle(ctx, transport, channel, userID, content)
	}

	level := h.auth.Level(transport, userID)
	if level < auth.Public {
		return nil
	}

	if err := h.context.Append(ctx, transport, channel, userID, convostore.RoleUser, content); err != nil {
		return fmt.Errorf("pipeline: append user turn: %w", err)
	}

	if h.dryRun {
		preview := content
		if len(preview) > dryRunPreviewChars {
			preview = preview[:dryRunPreviewChars]
		}
		return h.send(transport, channel, "[DRY RUN] Would process: "+preview, msg.MessageID)
	}

	history, err := h.context.Get(ctx, transport, channel)
	if err != nil {
		return fmt.Errorf("pipeline: load context: %w", err)
	}

	allowed := h.registry.Allowed(level)
	memoryBlock := ""
	if h.memory != nil {
		memoryBlock, err = h.memory.ExportContext(ctx, memoryExportTokenBudget)
		if err != nil {
			slog.Warn("pipeline: memory export failed", "err", err)
			memoryBlock = ""
		}
	}
	system := buildSystemPrompt(allowed, memoryBlock)

	schemas := make([]llmprovider.ToolSchema, 0, len(allowed))
	for _, t := range allowed {
		schemas = append(schemas, toolkit.Schema(t))
	}

	messages := toProviderMessages(history)
	response, err := h.executor.Run(ctx, messages, executor.Options{
		System:    system,
		Tools:     schemas,
		UserLevel: level,
	})
	if err != nil {
		return fmt.Errorf("pipeline: reasoning loop: %w", err)
	}

	if response == "" {
		return nil
	}

	if err := h.context.Append(ctx, transport, channel, userID, convostore.RoleAssistant, response); err != nil {
		return fmt.Errorf("pipeline: append assistant turn: %w", err)
	}
	return h.send(transport, channel, response, msg.MessageID)
}

func (h *Handler) send(transport, channel, content, replyTo string) error {
	h.bus.Publish(bus.KindMessageOutgoing, bus.OutgoingMessage{
		Transport: transport,
		Channel:   channel,
		Content:   content,
		ReplyToID: replyTo,
	})
	return nil
}

func toProviderMessages(history []convostore.Message) []llmprovider.Message {
	out := make([]llmprovider.Message, 0, len(history))
	for _, m := range history {
		role := llmprovider.RoleUser
		switch m.Role {
		case convostore.RoleAssistant:
			role = llmprovider.RoleAssistant
		case convostore.RoleSystem:
			role = llmprovider.RoleSystem
		}
		out = append(out, llmprovider.TextMessage(role, m.Content))
	}
	return out
}
