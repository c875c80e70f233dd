package llmprovider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// LocalConfig configures LocalProvider, an OpenAI-compatible chat
// completions client (ollama, llama.cpp, vLLM, etc).
type LocalConfig struct {
	Endpoint    string
	Model       string
	MaxTokens   int
	Temperature float64
	HTTPClient  *http.Client
}

// LocalProvider speaks the OpenAI chat-completions shape and falls back to
// ReAct-style textual tool parsing when the endpoint returns no native
// tool_calls in its response.
type LocalProvider struct {
	cfg    LocalConfig
	client *http.Client
}

// NewLocal builds a LocalProvider.
func NewLocal(cfg LocalConfig) *LocalProvider {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 120 * time.Second}
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &LocalProvider{cfg: cfg, client: cfg.HTTPClient}
}

func (p *LocalProvider) Close() error { return nil }

func (p *LocalProvider) CountTokens(text string) int { return estimateTokens(text) }

func (p *LocalProvider) Complete(ctx context.Context, req CompletionRequest) (Response, error) {
	body := p.buildBody(req, false)

	raw, err := backoff.Retry(ctx, func() ([]byte, error) {
		return p.post(ctx, "/chat/completions", body)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(3))
	if err != nil {
		return Response{}, err
	}

	return p.parseResponse(raw, req.Tools)
}

func (p *LocalProvider) Stream(ctx context.Context, req CompletionRequest, onChunk func(StreamChunk)) error {
	body := p.buildBody(req, true)
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("llmprovider: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("llmprovider: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("llmprovider: stream request: %w", err)
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if strings.TrimSpace(payload) == "[DONE]" {
			break
		}
		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			onChunk(StreamChunk{Text: chunk.Choices[0].Delta.Content})
		}
	}
	onChunk(StreamChunk{Done: true})
	return scanner.Err()
}

func (p *LocalProvider) post(ctx context.Context, path string, body map[string]any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("llmprovider: marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("llmprovider: build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llmprovider: request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("llmprovider: read response: %w", err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("llmprovider: transient status %d: %s", resp.StatusCode, string(respBody))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, backoff.Permanent(fmt.Errorf("llmprovider: status %d: %s", resp.StatusCode, string(respBody)))
	}
	return respBody, nil
}

func (p *LocalProvider) buildBody(req CompletionRequest, stream bool) map[string]any {
	messages := make([]map[string]any, 0, len(req.Messages)+1)

	// Native tool declarations go in the "tools" field below, the way any
	// OpenAI-compatible server expects. The ReAct instructions are appended
	// to the system prompt only as a textual fallback for servers that
	// ignore "tools" entirely; parseResponse prefers native tool_calls and
	// only parses the ReAct text format when the response carries none.
	effectiveSystem := req.System
	if len(req.Tools) > 0 {
		effectiveSystem = buildReactSystemPrompt(req.System, req.Tools)
	}
	if effectiveSystem != "" {
		messages = append(messages, map[string]any{"role": "system", "content": effectiveSystem})
	}
	for _, m := range req.Messages {
		messages = append(messages, map[string]any{"role": string(m.Role), "content": flattenBlocks(m.Blocks)})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.cfg.MaxTokens
	}
	temperature := p.cfg.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	body := map[string]any{
		"model":       p.cfg.Model,
		"messages":    messages,
		"max_tokens":  maxTokens,
		"temperature": temperature,
	}
	if len(req.Tools) > 0 {
		body["tools"] = toolsToOpenAI(req.Tools)
	}
	if stream {
		body["stream"] = true
	}
	return body
}

// toolsToOpenAI renders tool schemas in the OpenAI chat-completions
// function-calling shape so a genuinely tool-capable endpoint can return
// native tool_calls instead of falling through to ReAct text parsing.
func toolsToOpenAI(tools []ToolSchema) []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return out
}

// flattenBlocks renders structured content blocks as plain text, since
// most local inference servers accept only a string content field.
func flattenBlocks(blocks []ContentBlock) string {
	var parts []string
	for _, b := range blocks {
		switch b.Type {
		case BlockText:
			parts = append(parts, b.Text)
		case BlockToolResult:
			parts = append(parts, "[Tool Result]: "+b.ToolResult)
		case BlockToolUse:
			argsJSON, _ := json.Marshal(b.ToolInput)
			parts = append(parts, fmt.Sprintf("Action: %s\nAction Input: %s", b.ToolName, argsJSON))
		}
	}
	return strings.Join(parts, "\n")
}

func (p *LocalProvider) parseResponse(raw []byte, tools []ToolSchema) (Response, error) {
	var decoded struct {
		Choices []struct {
			FinishReason string `json:"finish_reason"`
			Message      struct {
				Content   string `json:"content"`
				ToolCalls []struct {
					ID       string `json:"id"`
					Function struct {
						Name      string          `json:"name"`
						Arguments json.RawMessage `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Response{}, fmt.Errorf("llmprovider: parse response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return Response{}, fmt.Errorf("llmprovider: empty choices in response")
	}
	choice := decoded.Choices[0]

	result := Response{
		Text:         choice.Message.Content,
		StopReason:   choice.FinishReason,
		InputTokens:  decoded.Usage.PromptTokens,
		OutputTokens: decoded.Usage.CompletionTokens,
	}

	if len(choice.Message.ToolCalls) > 0 {
		for _, tc := range choice.Message.ToolCalls {
			var args map[string]any
			_ = json.Unmarshal(tc.Function.Arguments, &args)
			result.ToolCalls = append(result.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
		}
	} else if len(tools) > 0 {
		content, calls := parseReactResponse(choice.Message.Content)
		result.Text = content
		result.ToolCalls = calls
	}

	return result, nil
}
