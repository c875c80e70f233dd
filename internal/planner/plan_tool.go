package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/a9lim/shannon/internal/auth"
	"github.com/a9lim/shannon/internal/toolkit"
)

// Tool exposes the plan engine itself as a tool the model can invoke: a
// single "plan" call that creates and immediately executes a goal
// decomposition, returning a rendered progress report.
type Tool struct {
	engine *Engine
}

// NewTool builds a Tool over engine.
func NewTool(engine *Engine) *Tool { return &Tool{engine: engine} }

func (t *Tool) Name() string { return "plan" }
func (t *Tool) Description() string {
	return "Create and execute a multi-step plan for a complex goal. Decomposes into steps, executes sequentially, reports progress."
}
func (t *Tool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"goal": map[string]any{"type": "string", "description": "The goal to accomplish."},
		},
		"required": []string{"goal"},
	}
}

// RequiredPermission matches the original PlanTool's OPERATOR gate — plans
// can invoke operator-level tools, so creating one requires that level too.
func (t *Tool) RequiredPermission() auth.Level { return auth.Operator }

func (t *Tool) Execute(ctx context.Context, args map[string]any) toolkit.Result {
	goal, _ := args["goal"].(string)
	if goal == "" {
		return toolkit.Failed("goal is required")
	}

	plan, err := t.engine.Create(ctx, goal, "", "")
	if err != nil {
		return toolkit.Failed(err.Error())
	}
	plan, err = t.engine.Execute(ctx, plan, auth.Operator, nil)
	if err != nil {
		return toolkit.Failed(err.Error())
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Plan: %s [%s]", plan.Goal, plan.Status))
	for _, step := range plan.Steps {
		icon := "?"
		switch step.Status {
		case StepDone:
			icon = "+"
		case StepFailed:
			icon = "x"
		case StepSkipped:
			icon = "~"
		}
		lines = append(lines, fmt.Sprintf("  [%s] %s", icon, step.Description))
		if step.Result != "" {
			lines = append(lines, fmt.Sprintf("      Result: %s", truncate(step.Result, 200)))
		}
		if step.Error != "" {
			lines = append(lines, fmt.Sprintf("      Error: %s", truncate(step.Error, 200)))
		}
	}
	result := toolkit.OK(strings.Join(lines, "\n"))
	if plan.Status == StatusFailed {
		result = toolkit.Failed(strings.Join(lines, "\n"))
	}
	return result
}
