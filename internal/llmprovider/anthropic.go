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
	"golang.org/x/time/rate"
)

const anthropicAPIVersion = "2023-06-01"

// anthropicAPIBaseOverride lets tests point the provider at an httptest
// server; production code never assigns it.
var anthropicAPIBaseOverride string

func anthropicAPIBase() string {
	if anthropicAPIBaseOverride != "" {
		return anthropicAPIBaseOverride
	}
	return "https://api.anthropic.com/v1/messages"
}

// AnthropicConfig configures AnthropicProvider.
type AnthropicConfig struct {
	APIKey       string
	Model        string
	MaxTokens    int
	Temperature  float64
	RateLimitRPM int
	HTTPClient   *http.Client
}

// AnthropicProvider speaks the Anthropic Messages API directly.
type AnthropicProvider struct {
	cfg     AnthropicConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewAnthropic builds an AnthropicProvider.
func NewAnthropic(cfg AnthropicConfig) *AnthropicProvider {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 120 * time.Second}
	}
	rpm := cfg.RateLimitRPM
	if rpm <= 0 {
		rpm = 50
	}
	return &AnthropicProvider{
		cfg:     cfg,
		client:  cfg.HTTPClient,
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), maxInt(1, rpm/10)),
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (p *AnthropicProvider) Close() error { return nil }

func (p *AnthropicProvider) CountTokens(text string) int { return estimateTokens(text) }

// Complete sends req and retries on rate-limit (429) or server (5xx)
// responses with exponential backoff, mirroring the provider's own retry
// policy for transient failures.
func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (Response, error) {
	body := p.buildRequestBody(req, false)

	result, err := backoff.Retry(ctx, func() (Response, error) {
		return p.doRequest(ctx, body)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(4))
	if err != nil {
		return Response{}, err
	}
	return result, nil
}

func (p *AnthropicProvider) doRequest(ctx context.Context, body map[string]any) (Response, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return Response{}, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, backoff.Permanent(fmt.Errorf("llmprovider: marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicAPIBase(), bytes.NewReader(payload))
	if err != nil {
		return Response{}, backoff.Permanent(fmt.Errorf("llmprovider: build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("llmprovider: request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("llmprovider: read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return Response{}, fmt.Errorf("llmprovider: transient status %d: %s", resp.StatusCode, string(respBody))
	}
	if resp.StatusCode != http.StatusOK {
		return Response{}, backoff.Permanent(fmt.Errorf("llmprovider: status %d: %s", resp.StatusCode, string(respBody)))
	}

	return parseAnthropicResponse(respBody)
}

// Stream issues a streaming completion and invokes onChunk for each text
// delta. No retry is attempted mid-stream: once content has started
// flowing, resending the prompt would duplicate output for the user.
func (p *AnthropicProvider) Stream(ctx context.Context, req CompletionRequest, onChunk func(StreamChunk)) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	body := p.buildRequestBody(req, true)
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("llmprovider: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicAPIBase(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("llmprovider: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("llmprovider: stream request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("llmprovider: stream status %d: %s", resp.StatusCode, string(respBody))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event struct {
			Type  string `json:"type"`
			Delta struct {
				Text string `json:"text"`
			} `json:"delta"`
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			continue
		}
		if event.Type == "content_block_delta" && event.Delta.Text != "" {
			onChunk(StreamChunk{Text: event.Delta.Text})
		}
	}
	onChunk(StreamChunk{Done: true})
	return scanner.Err()
}

func (p *AnthropicProvider) buildRequestBody(req CompletionRequest, stream bool) map[string]any {
	messages := make([]map[string]any, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, map[string]any{
			"role":    string(m.Role),
			"content": blocksToAPI(m.Blocks),
		})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.cfg.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = 4096
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
	if req.System != "" {
		body["system"] = req.System
	}
	if len(req.Tools) > 0 {
		tools := make([]map[string]any, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, map[string]any{
				"name":         t.Name,
				"description":  t.Description,
				"input_schema": t.Parameters,
			})
		}
		body["tools"] = tools
	}
	if stream {
		body["stream"] = true
	}
	return body
}

func blocksToAPI(blocks []ContentBlock) any {
	if len(blocks) == 1 && blocks[0].Type == BlockText {
		return blocks[0].Text
	}
	out := make([]map[string]any, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case BlockText:
			out = append(out, map[string]any{"type": "text", "text": b.Text})
		case BlockToolUse:
			out = append(out, map[string]any{
				"type": "tool_use", "id": b.ToolUseID, "name": b.ToolName, "input": b.ToolInput,
			})
		case BlockToolResult:
			block := map[string]any{"type": "tool_result", "tool_use_id": b.ToolUseID, "content": b.ToolResult}
			if b.IsError {
				block["is_error"] = true
			}
			out = append(out, block)
		}
	}
	return out
}

func parseAnthropicResponse(raw []byte) (Response, error) {
	var decoded struct {
		StopReason string `json:"stop_reason"`
		Usage      struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
		Content []struct {
			Type  string         `json:"type"`
			Text  string         `json:"text"`
			ID    string         `json:"id"`
			Name  string         `json:"name"`
			Input map[string]any `json:"input"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Response{}, backoff.Permanent(fmt.Errorf("llmprovider: parse response: %w", err))
	}

	result := Response{
		StopReason:   decoded.StopReason,
		InputTokens:  decoded.Usage.InputTokens,
		OutputTokens: decoded.Usage.OutputTokens,
	}
	for _, block := range decoded.Content {
		switch block.Type {
		case "text":
			result.Text += block.Text
		case "tool_use":
			result.ToolCalls = append(result.ToolCalls, ToolCall{ID: block.ID, Name: block.Name, Arguments: block.Input})
		}
	}
	return result, nil
}
