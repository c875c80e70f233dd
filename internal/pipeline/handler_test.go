package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a9lim/shannon/internal/auth"
	"github.com/a9lim/shannon/internal/bus"
	"github.com/a9lim/shannon/internal/commands"
	"github.com/a9lim/shannon/internal/convostore"
	"github.com/a9lim/shannon/internal/executor"
	"github.com/a9lim/shannon/internal/llmprovider"
	"github.com/a9lim/shannon/internal/memory"
	"github.com/a9lim/shannon/internal/pause"
	"github.com/a9lim/shannon/internal/scheduler"
	"github.com/a9lim/shannon/internal/toolkit"
)

type fakeProvider struct {
	response llmprovider.Response
}

func (p *fakeProvider) Complete(ctx context.Context, req llmprovider.CompletionRequest) (llmprovider.Response, error) {
	return p.response, nil
}
func (p *fakeProvider) Stream(ctx context.Context, req llmprovider.CompletionRequest, onChunk func(llmprovider.StreamChunk)) error {
	return nil
}
func (p *fakeProvider) CountTokens(text string) int { return len(text) / 4 }
func (p *fakeProvider) Close() error                { return nil }

type fakeBus struct {
	published []bus.Event
}

func (b *fakeBus) Publish(kind bus.Kind, payload any) bus.Event {
	ev := bus.Event{Kind: kind, Payload: payload}
	b.published = append(b.published, ev)
	return ev
}

type noopSchedPublisher struct{}

func (noopSchedPublisher) Publish(kind bus.Kind, payload any) bus.Event {
	return bus.Event{Kind: kind, Payload: payload}
}

type testDeps struct {
	handler *Handler
	ledger  *auth.Ledger
	context *convostore.Store
	bus     *fakeBus
	gate    *pause.Gate
}

func newTestHandler(t *testing.T, llm llmprovider.Provider, cfg auth.Config, dryRun bool) *testDeps {
	t.Helper()
	dir := t.TempDir()

	convo, err := convostore.Open(filepath.Join(dir, "convo.db"), convostore.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { convo.Close() })

	schedStore, err := scheduler.OpenStore(filepath.Join(dir, "sched.db"))
	require.NoError(t, err)
	t.Cleanup(func() { schedStore.Close() })
	sched := scheduler.New(schedStore, noopSchedPublisher{}, 0, "")

	memStore, err := memory.Open(filepath.Join(dir, "mem.db"))
	require.NoError(t, err)
	t.Cleanup(func() { memStore.Close() })

	ledger := auth.NewLedger(cfg)
	gate := pause.New()
	fb := &fakeBus{}

	disp := commands.New(convo, sched, ledger, memStore, gate, fb, func(platform, channel, content string) error {
		fb.Publish(bus.KindMessageOutgoing, bus.OutgoingMessage{Transport: platform, Channel: channel, Content: content})
		return nil
	})

	registry := toolkit.NewRegistry()
	exec := executor.New(llm, registry)

	h := New(Config{
		Auth:             ledger,
		Context:          convo,
		Memory:           memStore,
		Executor:         exec,
		Registry:         registry,
		Commands:         disp,
		Gate:             gate,
		Bus:              fb,
		DryRun:           dryRun,
		ControlTransport: "discord",
		ControlChannel:   "control-channel",
	})

	return &testDeps{handler: h, ledger: ledger, context: convo, bus: fb, gate: gate}
}

func incoming(transport, channel, userID, content string) bus.Event {
	return bus.Event{Kind: bus.KindMessageIncoming, Payload: bus.IncomingMessage{
		Transport: transport, Channel: channel, UserID: userID, Content: content, MessageID: "m1",
	}}
}

func TestHandleRateLimitedSendsApology(t *testing.T) {
	deps := newTestHandler(t, &fakeProvider{response: llmprovider.Response{Text: "hi"}}, auth.Config{RateLimitPerMinute: 1}, false)

	deps.handler.Handle(incoming("discord", "ch1", "user1", "first"))
	deps.bus.published = nil
	deps.handler.Handle(incoming("discord", "ch1", "user1", "second"))

	require.Len(t, deps.bus.published, 1)
	out := deps.bus.published[0].Payload.(bus.OutgoingMessage)
	assert.Contains(t, out.Content, "too quickly")
}

func TestHandleSlashCommandDelegatesToDispatcher(t *testing.T) {
	deps := newTestHandler(t, &fakeProvider{}, auth.Config{}, false)

	deps.handler.Handle(incoming("discord", "ch1", "user1", "/help"))

	require.Len(t, deps.bus.published, 1)
	out := deps.bus.published[0].Payload.(bus.OutgoingMessage)
	assert.Contains(t, out.Content, "/forget")
}

func TestHandleDryRunEchoesPreview(t *testing.T) {
	deps := newTestHandler(t, &fakeProvider{}, auth.Config{}, true)

	deps.handler.Handle(incoming("discord", "ch1", "user1", "do the thing"))

	require.Len(t, deps.bus.published, 1)
	out := deps.bus.published[0].Payload.(bus.OutgoingMessage)
	assert.Contains(t, out.Content, "[DRY RUN] Would process: do the thing")
}

func TestHandleNormalMessageRunsExecutorAndReplies(t *testing.T) {
	deps := newTestHandler(t, &fakeProvider{response: llmprovider.Response{Text: "the answer"}}, auth.Config{}, false)

	deps.handler.Handle(incoming("discord", "ch1", "user1", "what is the answer"))

	require.Len(t, deps.bus.published, 1)
	out := deps.bus.published[0].Payload.(bus.OutgoingMessage)
	assert.Equal(t, "the answer", out.Content)
	assert.Equal(t, "m1", out.ReplyToID)

	history, err := deps.context.Get(context.Background(), "discord", "ch1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, convostore.RoleUser, history[0].Role)
	assert.Equal(t, convostore.RoleAssistant, history[1].Role)
}

func TestHandleEmptyResponseSendsNothing(t *testing.T) {
	deps := newTestHandler(t, &fakeProvider{response: llmprovider.Response{Text: ""}}, auth.Config{}, false)

	deps.handler.Handle(incoming("discord", "ch1", "user1", "hello"))

	assert.Empty(t, deps.bus.published)
}

func TestHandleSchedulerTriggerRunsAndReplies(t *testing.T) {
	deps := newTestHandler(t, &fakeProvider{response: llmprovider.Response{Text: "job done"}}, auth.Config{}, false)

	deps.handler.HandleSchedulerTrigger(bus.Event{
		Kind:    bus.KindSchedulerTrigger,
		Payload: bus.SchedulerTrigger{JobID: "j1", JobName: "nightly", Action: "summarize logs"},
	})

	require.Len(t, deps.bus.published, 1)
	out := deps.bus.published[0].Payload.(bus.OutgoingMessage)
	assert.Equal(t, "control-channel", out.Channel)
	assert.Equal(t, "job done", out.Content)
}

func TestHandleSchedulerTriggerDeferredWhilePaused(t *testing.T) {
	deps := newTestHandler(t, &fakeProvider{response: llmprovider.Response{Text: "job done"}}, auth.Config{}, false)
	deps.gate.Pause(0)

	deps.handler.HandleSchedulerTrigger(bus.Event{
		Kind:    bus.KindSchedulerTrigger,
		Payload: bus.SchedulerTrigger{JobID: "j1", JobName: "nightly", Action: "summarize logs"},
	})

	assert.Empty(t, deps.bus.published)
	assert.Equal(t, 1, deps.gate.QueuedCount())
}

func TestHandleWebhookReceivedUsesTargetChannel(t *testing.T) {
	deps := newTestHandler(t, &fakeProvider{response: llmprovider.Response{Text: "noted"}}, auth.Config{}, false)

	deps.handler.HandleWebhookReceived(bus.Event{
		Kind: bus.KindWebhookReceived,
		Payload: bus.WebhookReceived{
			Source: "github", EventType: "push", Summary: "pushed 3 commits", TargetChannel: "ch-deploys",
		},
	})

	require.Len(t, deps.bus.published, 1)
	out := deps.bus.published[0].Payload.(bus.OutgoingMessage)
	assert.Equal(t, "ch-deploys", out.Channel)
	assert.Equal(t, "noted", out.Content)
}
