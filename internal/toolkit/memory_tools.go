package toolkit

import (
	"context"
	"fmt"
	"strings"

	"github.com/a9lim/shannon/internal/auth"
	"github.com/a9lim/shannon/internal/memory"
)

// MemorySetTool stores a key/value fact in the C4 memory store.
type MemorySetTool struct {
	store *memory.Store
}

// NewMemorySetTool builds a MemorySetTool over store.
func NewMemorySetTool(store *memory.Store) *MemorySetTool { return &MemorySetTool{store: store} }

func (t *MemorySetTool) Name() string { return "memory_set" }
func (t *MemorySetTool) Description() string {
	return "Store a key-value pair in persistent memory. Survives restarts."
}
func (t *MemorySetTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"key":      map[string]any{"type": "string", "description": "The key to store the value under."},
			"value":    map[string]any{"type": "string", "description": "The value to store."},
			"category": map[string]any{"type": "string", "description": "Category for organizing memories."},
		},
		"required": []string{"key", "value"},
	}
}
func (t *MemorySetTool) RequiredPermission() auth.Level { return auth.Trusted }

func (t *MemorySetTool) Execute(ctx context.Context, args map[string]any) Result {
	key, _ := args["key"].(string)
	value, _ := args["value"].(string)
	category, _ := args["category"].(string)
	if key == "" || value == "" {
		return Failed("both 'key' and 'value' are required")
	}
	if err := t.store.Set(ctx, key, value, category, "llm_tool"); err != nil {
		return Failed(err.Error())
	}
	return OK(fmt.Sprintf("Stored: %s = %s", key, value))
}

// MemoryGetTool retrieves a memory by exact key or searches by substring.
type MemoryGetTool struct {
	store *memory.Store
}

// NewMemoryGetTool builds a MemoryGetTool over store.
func NewMemoryGetTool(store *memory.Store) *MemoryGetTool { return &MemoryGetTool{store: store} }

func (t *MemoryGetTool) Name() string { return "memory_get" }
func (t *MemoryGetTool) Description() string {
	return "Retrieve a memory by key, or search memories by query."
}
func (t *MemoryGetTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"key":   map[string]any{"type": "string", "description": "Exact key to look up."},
			"query": map[string]any{"type": "string", "description": "Search term to find matching memories."},
		},
	}
}
func (t *MemoryGetTool) RequiredPermission() auth.Level { return auth.Trusted }

func (t *MemoryGetTool) Execute(ctx context.Context, args map[string]any) Result {
	key, _ := args["key"].(string)
	query, _ := args["query"].(string)
	if key == "" && query == "" {
		return Failed("provide either 'key' or 'query' parameter")
	}

	if key != "" {
		entry, err := t.store.Get(ctx, key)
		if err != nil {
			return Failed(err.Error())
		}
		if entry == nil {
			return OK(fmt.Sprintf("No memory found for key: %s", key))
		}
		return OK(fmt.Sprintf("[%s] %s: %s", entry.Category, entry.Key, entry.Value))
	}

	entries, err := t.store.Search(ctx, query)
	if err != nil {
		return Failed(err.Error())
	}
	if len(entries) == 0 {
		return OK(fmt.Sprintf("No memories found matching: %s", query))
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", e.Category, e.Key, e.Value))
	}
	return OK(strings.Join(lines, "\n"))
}

// MemoryDeleteTool removes a memory entry by key.
type MemoryDeleteTool struct {
	store *memory.Store
}

// NewMemoryDeleteTool builds a MemoryDeleteTool over store.
func NewMemoryDeleteTool(store *memory.Store) *MemoryDeleteTool {
	return &MemoryDeleteTool{store: store}
}

func (t *MemoryDeleteTool) Name() string { return "memory_delete" }
func (t *MemoryDeleteTool) Description() string {
	return "Delete a memory entry by key."
}
func (t *MemoryDeleteTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"key": map[string]any{"type": "string", "description": "The key of the memory to delete."},
		},
		"required": []string{"key"},
	}
}
func (t *MemoryDeleteTool) RequiredPermission() auth.Level { return auth.Operator }

func (t *MemoryDeleteTool) Execute(ctx context.Context, args map[string]any) Result {
	key, _ := args["key"].(string)
	if key == "" {
		return Failed("key is required")
	}
	deleted, err := t.store.Delete(ctx, key)
	if err != nil {
		return Failed(err.Error())
	}
	if !deleted {
		return Failed(fmt.Sprintf("no memory found for key: %s", key))
	}
	return OK(fmt.Sprintf("Deleted memory: %s", key))
}
