// Package executor implements the tool-use reasoning loop (C9): call the
// LLM with the current message list and available tools, dispatch any
// tool calls under the caller's permission level, feed results back, and
// repeat until the model stops calling tools or the iteration budget runs
// out.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/a9lim/shannon/internal/auth"
	"github.com/a9lim/shannon/internal/llmprovider"
	"github.com/a9lim/shannon/internal/toolkit"
)

const defaultMaxIterations = 10

// Executor runs the reason-act loop against a provider and tool registry.
type Executor struct {
	llm      llmprovider.Provider
	registry *toolkit.Registry
}

// New builds an Executor.
func New(llm llmprovider.Provider, registry *toolkit.Registry) *Executor {
	return &Executor{llm: llm, registry: registry}
}

// Options configures one Run call.
type Options struct {
	System        string
	Tools         []llmprovider.ToolSchema
	UserLevel     auth.Level
	MaxIterations int // 0 = defaultMaxIterations
}

// Run executes the loop and returns the model's final text.
func (e *Executor) Run(ctx context.Context, messages []llmprovider.Message, opts Options) (string, error) {
	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	current := append([]llmprovider.Message(nil), messages...)
	var lastResponse llmprovider.Response

	for i := 0; i < maxIterations; i++ {
		resp, err := e.llm.Complete(ctx, llmprovider.CompletionRequest{
			Messages: current,
			System:   opts.System,
			Tools:    opts.Tools,
		})
		if err != nil {
			return "", fmt.Errorf("executor: complete: %w", err)
		}
		lastResponse = resp

		if len(resp.ToolCalls) == 0 {
			return resp.Text, nil
		}

		assistantBlocks := make([]llmprovider.ContentBlock, 0, len(resp.ToolCalls)+1)
		if resp.Text != "" {
			assistantBlocks = append(assistantBlocks, llmprovider.ContentBlock{Type: llmprovider.BlockText, Text: resp.Text})
		}
		for _, tc := range resp.ToolCalls {
			assistantBlocks = append(assistantBlocks, llmprovider.ContentBlock{
				Type: llmprovider.BlockToolUse, ToolUseID: tc.ID, ToolName: tc.Name, ToolInput: tc.Arguments,
			})
		}
		current = append(current, llmprovider.Message{Role: llmprovider.RoleAssistant, Blocks: assistantBlocks})

		resultBlocks := make([]llmprovider.ContentBlock, 0, len(resp.ToolCalls))
		for _, tc := range resp.ToolCalls {
			resultBlocks = append(resultBlocks, e.dispatch(ctx, tc, opts.UserLevel))
		}
		current = append(current, llmprovider.Message{Role: llmprovider.RoleUser, Blocks: resultBlocks})
	}

	return lastResponse.Text, nil
}

func (e *Executor) dispatch(ctx context.Context, tc llmprovider.ToolCall, userLevel auth.Level) llmprovider.ContentBlock {
	tool, ok := e.registry.Get(tc.Name)
	if !ok {
		return errorResult(tc.ID, fmt.Sprintf("Error: Unknown tool '%s'", tc.Name))
	}
	if userLevel < tool.RequiredPermission() {
		return errorResult(tc.ID, fmt.Sprintf("Permission denied. Tool '%s' requires %s level.", tc.Name, tool.RequiredPermission()))
	}

	slog.Info("tool executing", "tool", tc.Name)
	result := tool.Execute(ctx, tc.Arguments)

	if result.Success {
		return llmprovider.ContentBlock{Type: llmprovider.BlockToolResult, ToolUseID: tc.ID, ToolResult: result.Output}
	}
	return errorResult(tc.ID, fmt.Sprintf("Error: %s", result.Err))
}

func errorResult(toolUseID, message string) llmprovider.ContentBlock {
	return llmprovider.ContentBlock{Type: llmprovider.BlockToolResult, ToolUseID: toolUseID, ToolResult: message, IsError: true}
}
