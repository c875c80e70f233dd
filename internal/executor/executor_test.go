package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a9lim/shannon/internal/auth"
	"github.com/a9lim/shannon/internal/llmprovider"
	"github.com/a9lim/shannon/internal/toolkit"
)

// scriptedProvider returns queued responses in order, and records the
// messages it was called with for assertions.
type scriptedProvider struct {
	responses []llmprovider.Response
	calls     int
	seen      [][]llmprovider.Message
}

func (p *scriptedProvider) Complete(ctx context.Context, req llmprovider.CompletionRequest) (llmprovider.Response, error) {
	p.seen = append(p.seen, req.Messages)
	if p.calls >= len(p.responses) {
		return llmprovider.Response{}, nil
	}
	resp := p.responses[p.calls]
	p.calls++
	return resp, nil
}
func (p *scriptedProvider) Stream(ctx context.Context, req llmprovider.CompletionRequest, onChunk func(llmprovider.StreamChunk)) error {
	return nil
}
func (p *scriptedProvider) CountTokens(text string) int { return len(text) / 4 }
func (p *scriptedProvider) Close() error                { return nil }

type echoTool struct {
	level auth.Level
}

func (t *echoTool) Name() string              { return "echo" }
func (t *echoTool) Description() string       { return "echoes input" }
func (t *echoTool) Parameters() map[string]any { return map[string]any{} }
func (t *echoTool) RequiredPermission() auth.Level { return t.level }
func (t *echoTool) Execute(ctx context.Context, args map[string]any) toolkit.Result {
	msg, _ := args["message"].(string)
	return toolkit.OK("echo: " + msg)
}

func TestRunReturnsTextWhenNoToolCalls(t *testing.T) {
	llm := &scriptedProvider{responses: []llmprovider.Response{{Text: "final answer"}}}
	e := New(llm, toolkit.NewRegistry())

	text, err := e.Run(context.Background(), []llmprovider.Message{llmprovider.TextMessage(llmprovider.RoleUser, "hi")}, Options{UserLevel: auth.Public})
	require.NoError(t, err)
	assert.Equal(t, "final answer", text)
}

func TestRunDispatchesToolCallAndFeedsBackResult(t *testing.T) {
	llm := &scriptedProvider{responses: []llmprovider.Response{
		{ToolCalls: []llmprovider.ToolCall{{ID: "t1", Name: "echo", Arguments: map[string]any{"message": "hello"}}}},
		{Text: "done"},
	}}
	registry := toolkit.NewRegistry()
	registry.Register(&echoTool{level: auth.Public})
	e := New(llm, registry)

	text, err := e.Run(context.Background(), []llmprovider.Message{llmprovider.TextMessage(llmprovider.RoleUser, "hi")}, Options{UserLevel: auth.Public})
	require.NoError(t, err)
	assert.Equal(t, "done", text)

	require.Len(t, llm.seen, 2)
	secondCallMessages := llm.seen[1]
	require.Len(t, secondCallMessages, 3) // user, assistant tool_use, user tool_result
	resultBlock := secondCallMessages[2].Blocks[0]
	assert.Equal(t, llmprovider.BlockToolResult, resultBlock.Type)
	assert.Contains(t, resultBlock.ToolResult, "echo: hello")
	assert.False(t, resultBlock.IsError)
}

func TestRunUnknownToolProducesErrorResult(t *testing.T) {
	llm := &scriptedProvider{responses: []llmprovider.Response{
		{ToolCalls: []llmprovider.ToolCall{{ID: "t1", Name: "nonexistent", Arguments: map[string]any{}}}},
		{Text: "done"},
	}}
	e := New(llm, toolkit.NewRegistry())

	_, err := e.Run(context.Background(), []llmprovider.Message{llmprovider.TextMessage(llmprovider.RoleUser, "hi")}, Options{UserLevel: auth.Admin})
	require.NoError(t, err)

	secondCallMessages := llm.seen[1]
	resultBlock := secondCallMessages[2].Blocks[0]
	assert.True(t, resultBlock.IsError)
	assert.Contains(t, resultBlock.ToolResult, "Unknown tool")
}

func TestRunPermissionDeniedProducesErrorResult(t *testing.T) {
	llm := &scriptedProvider{responses: []llmprovider.Response{
		{ToolCalls: []llmprovider.ToolCall{{ID: "t1", Name: "echo", Arguments: map[string]any{"message": "x"}}}},
		{Text: "done"},
	}}
	registry := toolkit.NewRegistry()
	registry.Register(&echoTool{level: auth.Admin})
	e := New(llm, registry)

	_, err := e.Run(context.Background(), []llmprovider.Message{llmprovider.TextMessage(llmprovider.RoleUser, "hi")}, Options{UserLevel: auth.Public})
	require.NoError(t, err)

	secondCallMessages := llm.seen[1]
	resultBlock := secondCallMessages[2].Blocks[0]
	assert.True(t, resultBlock.IsError)
	assert.Contains(t, resultBlock.ToolResult, "Permission denied")
}

func TestRunStopsAtMaxIterationsAndReturnsLastText(t *testing.T) {
	llm := &scriptedProvider{responses: []llmprovider.Response{
		{Text: "thinking", ToolCalls: []llmprovider.ToolCall{{ID: "t1", Name: "echo", Arguments: map[string]any{"message": "x"}}}},
		{Text: "thinking again", ToolCalls: []llmprovider.ToolCall{{ID: "t2", Name: "echo", Arguments: map[string]any{"message": "y"}}}},
	}}
	registry := toolkit.NewRegistry()
	registry.Register(&echoTool{level: auth.Public})
	e := New(llm, registry)

	text, err := e.Run(context.Background(), []llmprovider.Message{llmprovider.TextMessage(llmprovider.RoleUser, "hi")}, Options{UserLevel: auth.Public, MaxIterations: 2})
	require.NoError(t, err)
	assert.Equal(t, "thinking again", text)
	assert.Len(t, llm.seen, 2)
}
