package llmprovider

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// reactActionPattern extracts "Action: <name>\nAction Input: <json>" that a
// model without native tool calling emits in its plain-text response.
var reactActionPattern = regexp.MustCompile(`(?s)Action:\s*(\w+)\s*\nAction Input:\s*(\{.*?\})`)

// buildReactSystemPrompt appends tool instructions to the system prompt for
// models that don't support native tool calling.
func buildReactSystemPrompt(system string, tools []ToolSchema) string {
	if len(tools) == 0 {
		return system
	}
	var b strings.Builder
	if system != "" {
		b.WriteString(system)
		b.WriteString("\n\n")
	}
	b.WriteString("## Tools\nYou have the following tools. To use one, respond with:\n\n")
	b.WriteString("Thought: <your reasoning>\nAction: <tool_name>\nAction Input: <json arguments>\n\n")
	b.WriteString("When you have a final answer, respond normally without Action/Action Input.\n\n")
	for _, t := range tools {
		schema, _ := json.MarshalIndent(t.Parameters, "", "  ")
		fmt.Fprintf(&b, "### %s\n%s\nParameters: %s\n\n", t.Name, t.Description, schema)
	}
	return b.String()
}

// parseReactResponse splits model text into the prose before the first
// Action line and any tool call it requested.
func parseReactResponse(text string) (string, []ToolCall) {
	match := reactActionPattern.FindStringSubmatchIndex(text)
	if match == nil {
		return text, nil
	}

	name := text[match[2]:match[3]]
	argsJSON := text[match[4]:match[5]]
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		args = map[string]any{}
	}

	content := strings.TrimSpace(text[:match[0]])
	return content, []ToolCall{{ID: uuid.NewString(), Name: name, Arguments: args}}
}
