package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/a9lim/shannon/internal/auth"
	"github.com/a9lim/shannon/internal/llmprovider"
	"github.com/a9lim/shannon/internal/toolkit"
)

const (
	maxToolInvocations = 15
	maxSteps           = 8
)

const createPlanPrompt = `Decompose the following goal into 2-8 concrete steps. Each step should be a single action. For steps that use a tool, specify the tool name. For reasoning/analysis steps, set tool to null.

Available tools: %s

Respond with ONLY a JSON object:
{"steps": [{"description": "...", "tool": "tool_name_or_null"}]}

Goal: %s

Context: %s
`

const failurePrompt = `Step %d failed with error: %s

Current plan state:
%s

Should we retry this step, skip it, or abort the plan?
Respond with ONLY a JSON object: {"action": "retry" | "skip" | "abort"}
`

// ReportFunc streams a progress line to (platform, channel) while a plan
// executes.
type ReportFunc func(platform, channel, line string) error

// Engine creates and runs plans against a tool registry and LLM provider.
type Engine struct {
	llm      llmprovider.Provider
	registry *toolkit.Registry
	store    *store
}

// Open builds an Engine backed by a single-file plans database at path.
func Open(path string, llm llmprovider.Provider, registry *toolkit.Registry) (*Engine, error) {
	s, err := openStore(path)
	if err != nil {
		return nil, err
	}
	return &Engine{llm: llm, registry: registry, store: s}, nil
}

// Close releases the underlying database handle.
func (e *Engine) Close() error { return e.store.Close() }

// Load reconstructs a persisted plan by id.
func (e *Engine) Load(ctx context.Context, id string) (*Plan, error) {
	return e.store.Load(ctx, id)
}

// Create asks the provider to decompose goal into steps and persists the
// resulting plan with status "planning".
func (e *Engine) Create(ctx context.Context, goal, channel, planContext string) (*Plan, error) {
	names := make([]string, 0)
	for _, t := range e.registry.List() {
		names = append(names, t.Name())
	}
	toolList := "none"
	if len(names) > 0 {
		toolList = strings.Join(names, ", ")
	}
	if planContext == "" {
		planContext = "No additional context."
	}

	prompt := fmt.Sprintf(createPlanPrompt, toolList, goal, planContext)
	temp := 0.3
	resp, err := e.llm.Complete(ctx, llmprovider.CompletionRequest{
		Messages:    []llmprovider.Message{llmprovider.TextMessage(llmprovider.RoleUser, prompt)},
		MaxTokens:   1024,
		Temperature: &temp,
	})
	if err != nil {
		return nil, fmt.Errorf("planner: create: %w", err)
	}

	now := time.Now().UTC()
	plan := &Plan{
		ID:        uuid.NewString()[:12],
		Goal:      goal,
		Steps:     parseSteps(resp.Text),
		Status:    StatusPlanning,
		Channel:   channel,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.Save(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func parseSteps(content string) []Step {
	text := strings.TrimSpace(content)
	if idx := strings.Index(text, "```"); idx >= 0 {
		start := idx + 3
		if strings.HasPrefix(text[start:], "json") {
			start += 4
		}
		end := strings.Index(text[start:], "```")
		if end >= 0 {
			text = strings.TrimSpace(text[start : start+end])
		}
	}

	var parsed struct {
		Steps []struct {
			Description string `json:"description"`
			Tool        *string `json:"tool"`
		} `json:"steps"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		slog.Warn("plan parse failed", "content", truncate(content, 200))
		return []Step{{ID: 1, Description: "Execute the goal directly", Status: StepPending}}
	}

	steps := make([]Step, 0, len(parsed.Steps))
	for i, raw := range parsed.Steps {
		if i >= maxSteps {
			break
		}
		tool := ""
		if raw.Tool != nil && *raw.Tool != "null" {
			tool = *raw.Tool
		}
		desc := raw.Description
		if desc == "" {
			desc = fmt.Sprintf("Step %d", i+1)
		}
		steps = append(steps, Step{ID: i + 1, Description: desc, Tool: tool, Status: StepPending})
	}
	if len(steps) == 0 {
		return []Step{{ID: 1, Description: "Execute the goal directly", Status: StepPending}}
	}
	return steps
}

// Execute runs plan to completion, persisting after each step and
// invoking report (if non-nil) with a progress line per step.
func (e *Engine) Execute(ctx context.Context, plan *Plan, userLevel auth.Level, report ReportFunc) (*Plan, error) {
	plan.Status = StatusExecuting
	toolInvocations := 0

	for i := range plan.Steps {
		step := &plan.Steps[i]

		if toolInvocations >= maxToolInvocations {
			step.Status = StepSkipped
			step.Error = "tool invocation cap reached"
			continue
		}

		step.Status = StepRunning
		plan.UpdatedAt = time.Now().UTC()
		if err := e.store.Save(ctx, plan); err != nil {
			return plan, err
		}

		if step.Tool != "" {
			toolInvocations += e.runToolStep(ctx, plan, step, userLevel)
		} else {
			e.runReasoningStep(ctx, plan, step)
		}

		if plan.Status == StatusFailed {
			break
		}
		e.reportProgress(plan, step, report)
	}

	if plan.Status != StatusFailed {
		plan.Status = StatusCompleted
	}
	plan.UpdatedAt = time.Now().UTC()
	if err := e.store.Save(ctx, plan); err != nil {
		return plan, err
	}
	return plan, nil
}

// runToolStep executes a tool-backed step and returns 1 if it consumed a
// tool invocation, 0 otherwise (permission/lookup failures don't count
// against the budget).
func (e *Engine) runToolStep(ctx context.Context, plan *Plan, step *Step, userLevel auth.Level) int {
	tool, ok := e.registry.Get(step.Tool)
	if !ok {
		step.Status = StepFailed
		step.Error = fmt.Sprintf("unknown tool: %s", step.Tool)
		e.handleFailure(ctx, plan, step)
		return 0
	}
	if userLevel < tool.RequiredPermission() {
		step.Status = StepFailed
		step.Error = fmt.Sprintf("permission denied for %s", step.Tool)
		e.handleFailure(ctx, plan, step)
		return 0
	}

	result := tool.Execute(ctx, map[string]any{"command": step.Description})
	if result.Success {
		step.Status = StepDone
		step.Result = result.Output
	} else {
		step.Status = StepFailed
		step.Error = result.Err
		e.handleFailure(ctx, plan, step)
	}
	return 1
}

func (e *Engine) runReasoningStep(ctx context.Context, plan *Plan, step *Step) {
	prompt := fmt.Sprintf("Plan goal: %s\nCurrent step: %s\nPrevious results: %s",
		plan.Goal, step.Description, summarizeResults(plan))
	temp := 0.5
	resp, err := e.llm.Complete(ctx, llmprovider.CompletionRequest{
		Messages:    []llmprovider.Message{llmprovider.TextMessage(llmprovider.RoleUser, prompt)},
		MaxTokens:   512,
		Temperature: &temp,
	})
	if err != nil {
		step.Status = StepFailed
		step.Error = err.Error()
		return
	}
	step.Status = StepDone
	step.Result = resp.Text
}

// handleFailure asks the provider whether to retry, skip, or abort, then
// applies the verdict to step/plan status. "retry" re-runs the step once;
// anything else (including a malformed verdict) defaults to skip.
func (e *Engine) handleFailure(ctx context.Context, plan *Plan, step *Step) {
	var state strings.Builder
	for _, s := range plan.Steps {
		fmt.Fprintf(&state, "  %d. [%s] %s\n", s.ID, s.Status, s.Description)
	}
	prompt := fmt.Sprintf(failurePrompt, step.ID, step.Error, state.String())
	temp := 0.1

	action := "skip"
	resp, err := e.llm.Complete(ctx, llmprovider.CompletionRequest{
		Messages:    []llmprovider.Message{llmprovider.TextMessage(llmprovider.RoleUser, prompt)},
		MaxTokens:   64,
		Temperature: &temp,
	})
	if err == nil {
		var decoded struct {
			Action string `json:"action"`
		}
		if jsonErr := json.Unmarshal([]byte(strings.TrimSpace(resp.Text)), &decoded); jsonErr == nil && decoded.Action != "" {
			action = decoded.Action
		}
	}

	switch action {
	case "abort":
		plan.Status = StatusFailed
	case "retry":
		retryResult := e.retryStep(ctx, plan, step)
		if !retryResult {
			step.Status = StepSkipped
		}
	default:
		step.Status = StepSkipped
	}
}

// retryStep re-executes a failed tool step once. Returns true on success.
func (e *Engine) retryStep(ctx context.Context, plan *Plan, step *Step) bool {
	tool, ok := e.registry.Get(step.Tool)
	if !ok {
		return false
	}
	result := tool.Execute(ctx, map[string]any{"command": step.Description})
	if result.Success {
		step.Status = StepDone
		step.Result = result.Output
		step.Error = ""
		return true
	}
	step.Error = result.Err
	return false
}

func summarizeResults(plan *Plan) string {
	var parts []string
	for _, s := range plan.Steps {
		if s.Status == StepDone && s.Result != "" {
			parts = append(parts, fmt.Sprintf("Step %d: %s", s.ID, truncate(s.Result, 200)))
		}
	}
	if len(parts) == 0 {
		return "No results yet."
	}
	return strings.Join(parts, "\n")
}

func (e *Engine) reportProgress(plan *Plan, step *Step, report ReportFunc) {
	if report == nil || plan.Channel == "" {
		return
	}
	parts := strings.SplitN(plan.Channel, ":", 2)
	if len(parts) != 2 {
		return
	}
	total := len(plan.Steps)
	icon := "~"
	switch step.Status {
	case StepDone:
		icon = "+"
	case StepFailed:
		icon = "x"
	}
	line := fmt.Sprintf("Step %d/%d %s: %s [%s]", step.ID, total, step.Status, step.Description, icon)
	if err := report(parts[0], parts[1], line); err != nil {
		slog.Warn("plan progress report failed", "error", err)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
