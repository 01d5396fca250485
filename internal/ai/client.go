// Package ai implements the client for the external summarization gateway.
// The gateway speaks the OpenAI chat-completions dialect; this client always
// forces a tool call against the create_summary schema so the model can only
// answer with structured output, never free text.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Sentinel errors used to classify upstream failures. Handlers map these to
// 429, 402, and 500 respectively; none of them are retried here.
var (
	// ErrRateLimited indicates the gateway rejected the call as over-quota.
	ErrRateLimited = errors.New("ai gateway rate limit exceeded")

	// ErrPaymentRequired indicates the gateway account has no credits left.
	ErrPaymentRequired = errors.New("ai credits exhausted")

	// ErrUnexpectedFormat indicates a 2xx response that did not contain the
	// forced tool call (the model escaped the schema).
	ErrUnexpectedFormat = errors.New("ai returned unexpected format")
)

// Summarizer produces a raw structured-summary payload for a transcript.
// Implementations must return the undecoded tool arguments; schema validation
// belongs to the caller so that a stub and the real gateway are checked the
// same way.
type Summarizer interface {
	Summarize(ctx context.Context, systemPrompt, userPrompt string) (json.RawMessage, error)
}

// GatewayClient calls an OpenAI-compatible chat-completions endpoint with a
// forced create_summary tool. The zero value is not usable; construct with
// NewGatewayClient.
type GatewayClient struct {
	baseURL string
	apiKey  string
	model   string
	httpc   *http.Client
}

// NewGatewayClient constructs a client for the given endpoint and model. The
// timeout bounds a hung upstream call; when it elapses the error surfaces as
// a generic upstream failure (no retry).
func NewGatewayClient(baseURL, apiKey, model string, timeout time.Duration) *GatewayClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GatewayClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpc:   &http.Client{Timeout: timeout},
	}
}

// Model returns the model identifier recorded on persisted summaries.
func (c *GatewayClient) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model      string        `json:"model"`
	Messages   []chatMessage `json:"messages"`
	Tools      []tool        `json:"tools"`
	ToolChoice toolChoice    `json:"tool_choice"`
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type toolChoice struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// Summarize sends the prompt pair with the forced create_summary tool and
// returns the raw tool arguments. Upstream 429/402 are classified into the
// package sentinels; any other non-2xx status or a missing tool call is a
// generic error.
func (c *GatewayClient) Summarize(ctx context.Context, systemPrompt, userPrompt string) (json.RawMessage, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Tools: []tool{{
			Type: "function",
			Function: toolFunction{
				Name:        summaryToolName,
				Description: "Create a structured summary of the transcript",
				Parameters:  SummaryToolSchema,
			},
		}},
	}
	reqBody.ToolChoice.Type = "function"
	reqBody.ToolChoice.Function.Name = summaryToolName

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ai gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return nil, ErrRateLimited
	case resp.StatusCode == http.StatusPaymentRequired:
		io.Copy(io.Discard, resp.Body)
		return nil, ErrPaymentRequired
	case resp.StatusCode != http.StatusOK:
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ai gateway error: %s - %s", resp.Status, string(b))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode ai gateway response: %w", err)
	}
	if len(parsed.Choices) == 0 || len(parsed.Choices[0].Message.ToolCalls) == 0 {
		return nil, ErrUnexpectedFormat
	}
	args := parsed.Choices[0].Message.ToolCalls[0].Function.Arguments
	if args == "" {
		return nil, ErrUnexpectedFormat
	}
	return json.RawMessage(args), nil
}
