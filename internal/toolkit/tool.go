// Package toolkit defines the tool interface the reasoning loop (C9) and
// plan engine (C10) dispatch against: a name, a JSON Schema parameter
// description, a minimum permission level, and an executor function.
package toolkit

import (
	"context"

	"github.com/a9lim/shannon/internal/auth"
	"github.com/a9lim/shannon/internal/llmprovider"
)

// Result is a tool's outcome. Success is carried separately from Output so
// callers can format "Error: <output>" without string-sniffing.
type Result struct {
	Success bool
	Output  string
	Err     string
}

// OK builds a successful result.
func OK(output string) Result { return Result{Success: true, Output: output} }

// Failed builds a failed result.
func Failed(errMsg string) Result { return Result{Success: false, Err: errMsg} }

// Tool is one host-side capability the model can invoke.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	RequiredPermission() auth.Level
	Execute(ctx context.Context, args map[string]any) Result
}

// Schema converts a Tool to the provider-agnostic schema the LLM sees.
func Schema(t Tool) llmprovider.ToolSchema {
	return llmprovider.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Parameters(),
	}
}
