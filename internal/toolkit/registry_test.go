package toolkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a9lim/shannon/internal/auth"
)

type stubTool struct {
	name  string
	level auth.Level
}

func (s stubTool) Name() string                  { return s.name }
func (s stubTool) Description() string           { return "stub tool " + s.name }
func (s stubTool) Parameters() map[string]any     { return map[string]any{"type": "object"} }
func (s stubTool) RequiredPermission() auth.Level { return s.level }
func (s stubTool) Execute(context.Context, map[string]any) Result {
	return OK("stub")
}

func TestRegistryGetRoundTrip(t *testing.T) {
	r := NewRegistry()
	r.Register(stubTool{name: "echo", level: auth.Public})

	tool, ok := r.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", tool.Name())

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistryRegisterReplaces(t *testing.T) {
	r := NewRegistry()
	r.Register(stubTool{name: "echo", level: auth.Public})
	r.Register(stubTool{name: "echo", level: auth.Admin})

	tool, ok := r.Get("echo")
	require.True(t, ok)
	assert.Equal(t, auth.Admin, tool.RequiredPermission())
	assert.Len(t, r.List(), 1)
}

func TestRegistryListSortedByName(t *testing.T) {
	r := NewRegistry()
	r.Register(stubTool{name: "zeta", level: auth.Public})
	r.Register(stubTool{name: "alpha", level: auth.Public})
	r.Register(stubTool{name: "mid", level: auth.Public})

	names := make([]string, 0, 3)
	for _, tool := range r.List() {
		names = append(names, tool.Name())
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestRegistryAllowedFiltersByLevel(t *testing.T) {
	r := NewRegistry()
	r.Register(stubTool{name: "public_tool", level: auth.Public})
	r.Register(stubTool{name: "trusted_tool", level: auth.Trusted})
	r.Register(stubTool{name: "admin_tool", level: auth.Admin})

	allowed := r.Allowed(auth.Trusted)
	names := make([]string, 0, len(allowed))
	for _, tool := range allowed {
		names = append(names, tool.Name())
	}
	assert.ElementsMatch(t, []string{"public_tool", "trusted_tool"}, names)
}

func TestRegistryAllowedEmptyForNoTools(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.Allowed(auth.Admin))
}
