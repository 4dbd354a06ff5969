// Package openai adapts any OpenAI-compatible chat completions endpoint to
// the agent contract. The same adapter serves OpenAI itself and compatible
// gateways by overriding the base URL.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/moonhollow/moonhollow/pkg/agent"
)

const (
	providerName   = "openai"
	defaultBaseURL = "https://api.openai.com/v1"
)

// Adapter implements agent.Provider over the chat completions API.
type Adapter struct {
	apiKey  string
	baseURL string
	name    string
	client  *http.Client
}

// Option configures the adapter.
type Option func(*Adapter)

// WithBaseURL points the adapter at a compatible gateway.
func WithBaseURL(url string) Option {
	return func(a *Adapter) { a.baseURL = strings.TrimRight(url, "/") }
}

// WithName overrides the provider identifier reported in errors and usage,
// useful when the adapter fronts a non-OpenAI gateway.
func WithName(name string) Option {
	return func(a *Adapter) { a.name = name }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.client = c }
}

// New creates an OpenAI-compatible adapter.
func New(apiKey string, opts ...Option) *Adapter {
	a := &Adapter{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		name:    providerName,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the provider identifier.
func (a *Adapter) Name() string { return a.name }

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiRequest struct {
	Model    string       `json:"model"`
	Messages []apiMessage `json:"messages"`
}

type apiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Complete dispatches the history and maps the response.
func (a *Adapter) Complete(ctx context.Context, model string, history []agent.Message) (*agent.Reply, error) {
	req := apiRequest{Model: model}
	for _, m := range history {
		// Thinking traces are provider-private; only the visible text is
		// forwarded to a chat completions endpoint.
		req.Messages = append(req.Messages, apiMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, agent.NewError(agent.KindUnavailable, a.name, model, "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, agent.NewError(agent.KindUnavailable, a.name, model, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, agent.NewError(agent.KindUnavailable, a.name, model, "request failed", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, agent.NewError(agent.KindUnavailable, a.name, model, "read response", err)
	}

	var resp apiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, agent.NewError(agent.KindUnavailable, a.name, model,
			fmt.Sprintf("malformed response (status %d)", httpResp.StatusCode), err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, a.classify(httpResp, model, &resp)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, nil
	}

	reply := &agent.Reply{Text: resp.Choices[0].Message.Content}
	reply.Usage.InputTokens = resp.Usage.PromptTokens
	reply.Usage.OutputTokens = resp.Usage.CompletionTokens
	// The API supplies an authoritative total; trust it over the sum.
	reply.Usage.TotalTokens = resp.Usage.TotalTokens
	return reply, nil
}

func (a *Adapter) classify(httpResp *http.Response, model string, resp *apiResponse) error {
	message, code := "", ""
	if resp.Error != nil {
		message, code = resp.Error.Message, resp.Error.Code
	}

	switch {
	case code == "insufficient_quota":
		return agent.NewError(agent.KindQuotaExceeded, a.name, model, message, nil)
	case httpResp.StatusCode == http.StatusTooManyRequests:
		err := agent.NewError(agent.KindRateLimit, a.name, model, message, nil)
		if secs, parseErr := strconv.Atoi(httpResp.Header.Get("Retry-After")); parseErr == nil {
			err.RetryAfter = time.Duration(secs) * time.Second
		}
		return err
	case httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden:
		return agent.NewError(agent.KindAuthentication, a.name, model, message, nil)
	case httpResp.StatusCode == http.StatusServiceUnavailable || httpResp.StatusCode >= 500:
		return agent.NewError(agent.KindOverload, a.name, model, message, nil)
	default:
		return agent.NewError(agent.KindUnavailable, a.name, model,
			fmt.Sprintf("status %d: %s", httpResp.StatusCode, message), nil)
	}
}
