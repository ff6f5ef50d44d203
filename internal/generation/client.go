// Package generation wraps a synchronous chat-completion call against a
// local (or remote) OpenAI-compatible endpoint, reduced to the single
// request shape the pipeline needs.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"yt-studio/internal/pipeline"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client issues chat-completion requests against one resolved endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// New resolves baseURL into a full /chat/completions endpoint and builds a
// Client bound to the given timeout.
func New(baseURL string, timeoutSec int) *Client {
	return &Client{
		baseURL: resolveEndpoint(baseURL),
		http:    &http.Client{Timeout: time.Duration(max(10, timeoutSec)) * time.Second},
	}
}

func resolveEndpoint(baseURL string) string {
	url := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if url == "" {
		url = "http://127.0.0.1:1234"
	}
	switch {
	case strings.HasSuffix(url, "/chat/completions"):
		return url
	case strings.HasSuffix(url, "/v1"):
		return url + "/chat/completions"
	default:
		return url + "/v1/chat/completions"
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Complete sends one chat-completion request and returns the assistant's
// content string. Every failure path raises *pipeline.Failure with code
// LLM_REQUEST_FAILED so the stage caller never has to inspect a raw error.
func (c *Client) Complete(ctx context.Context, model, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	if temperature < 0 {
		temperature = 0
	}
	if temperature > 1 {
		temperature = 1
	}
	if maxTokens < 64 {
		maxTokens = 64
	}

	payload := chatRequest{
		Model:       model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", pipeline.NewFailure(pipeline.CodeLLMRequestFailed, "Failed to encode generation request.").WithDetail("reason", err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", pipeline.NewFailure(pipeline.CodeLLMRequestFailed, "Failed to build generation request.").WithDetail("reason", err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", pipeline.NewFailure(pipeline.CodeLLMRequestFailed, "Generation endpoint unreachable.").WithDetail("reason", err.Error())
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", pipeline.NewFailure(pipeline.CodeLLMRequestFailed, fmt.Sprintf("Generation endpoint returned status %d.", resp.StatusCode)).
			WithDetail("statusCode", resp.StatusCode).
			WithDetail("responseBody", truncate(string(respBody), 2000))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", pipeline.NewFailure(pipeline.CodeLLMRequestFailed, "Generation endpoint returned an unparseable response.").
			WithDetail("responseBody", truncate(string(respBody), 2000))
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", pipeline.NewFailure(pipeline.CodeLLMRequestFailed, "Generation endpoint returned no content.").
			WithDetail("responseBody", truncate(string(respBody), 2000))
	}
	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
