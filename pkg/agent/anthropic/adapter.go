// Package anthropic adapts the Anthropic Messages API to the agent
// contract. It is the only adapter with a reasoning channel: extended
// thinking blocks are returned alongside the answer together with their
// signature, and resubmitted verbatim when the signature is present.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/moonhollow/moonhollow/pkg/agent"
)

const (
	providerName   = "anthropic"
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
)

// Adapter implements agent.Provider over the Messages API.
type Adapter struct {
	apiKey    string
	baseURL   string
	client    *http.Client
	maxTokens int
	thinking  bool
}

// Option configures the adapter.
type Option func(*Adapter)

// WithBaseURL overrides the API endpoint (used by tests).
func WithBaseURL(url string) Option {
	return func(a *Adapter) { a.baseURL = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.client = c }
}

// WithMaxTokens caps reply length.
func WithMaxTokens(n int) Option {
	return func(a *Adapter) { a.maxTokens = n }
}

// WithThinking enables the extended thinking channel.
func WithThinking(enabled bool) Option {
	return func(a *Adapter) { a.thinking = enabled }
}

// New creates an Anthropic adapter.
func New(apiKey string, opts ...Option) *Adapter {
	a := &Adapter{
		apiKey:    apiKey,
		baseURL:   defaultBaseURL,
		client:    &http.Client{Timeout: 120 * time.Second},
		maxTokens: 2048,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the provider identifier.
func (a *Adapter) Name() string { return providerName }

type contentBlock struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`
}

type apiMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	System    string       `json:"system,omitempty"`
	Messages  []apiMessage `json:"messages"`
	Thinking  *struct {
		Type         string `json:"type"`
		BudgetTokens int    `json:"budget_tokens"`
	} `json:"thinking,omitempty"`
}

type apiResponse struct {
	Content []contentBlock `json:"content"`
	Usage   struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete dispatches the history and maps the response, or classifies the
// failure into the agent error taxonomy.
func (a *Adapter) Complete(ctx context.Context, model string, history []agent.Message) (*agent.Reply, error) {
	req := apiRequest{Model: model, MaxTokens: a.maxTokens}
	if a.thinking {
		req.Thinking = &struct {
			Type         string `json:"type"`
			BudgetTokens int    `json:"budget_tokens"`
		}{Type: "enabled", BudgetTokens: 1024}
	}

	for _, m := range history {
		switch m.Role {
		case agent.RoleSystem:
			if req.System != "" {
				req.System += "\n\n"
			}
			req.System += m.Content
		case agent.RoleUser:
			req.Messages = append(req.Messages, apiMessage{
				Role:    "user",
				Content: []contentBlock{{Type: "text", Text: m.Content}},
			})
		case agent.RoleAssistant:
			var blocks []contentBlock
			// A prior thinking block may only be replayed with its
			// signature; the abstraction guarantees unsigned traces were
			// already dropped.
			if m.Thinking != "" && m.Signature != "" {
				blocks = append(blocks, contentBlock{Type: "thinking", Thinking: m.Thinking, Signature: m.Signature})
			}
			blocks = append(blocks, contentBlock{Type: "text", Text: m.Content})
			req.Messages = append(req.Messages, apiMessage{Role: "assistant", Content: blocks})
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, agent.NewError(agent.KindUnavailable, providerName, model, "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, agent.NewError(agent.KindUnavailable, providerName, model, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, agent.NewError(agent.KindUnavailable, providerName, model, "request failed", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, agent.NewError(agent.KindUnavailable, providerName, model, "read response", err)
	}

	var resp apiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, agent.NewError(agent.KindUnavailable, providerName, model,
			fmt.Sprintf("malformed response (status %d)", httpResp.StatusCode), err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, a.classify(httpResp, model, &resp)
	}

	reply := &agent.Reply{}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			reply.Text += block.Text
		case "thinking":
			reply.Thinking = block.Thinking
			reply.Signature = block.Signature
		}
	}
	reply.Usage.InputTokens = resp.Usage.InputTokens
	reply.Usage.OutputTokens = resp.Usage.OutputTokens
	reply.Usage.TotalTokens = resp.Usage.InputTokens + resp.Usage.OutputTokens

	if reply.Text == "" && reply.Thinking == "" {
		return nil, nil
	}
	return reply, nil
}

func (a *Adapter) classify(httpResp *http.Response, model string, resp *apiResponse) error {
	message, errType := "", ""
	if resp.Error != nil {
		message, errType = resp.Error.Message, resp.Error.Type
	}

	switch {
	case errType == "overloaded_error" || httpResp.StatusCode == 529:
		return agent.NewError(agent.KindOverload, providerName, model, message, nil)
	case httpResp.StatusCode == http.StatusTooManyRequests:
		err := agent.NewError(agent.KindRateLimit, providerName, model, message, nil)
		if secs, parseErr := strconv.Atoi(httpResp.Header.Get("Retry-After")); parseErr == nil {
			err.RetryAfter = time.Duration(secs) * time.Second
		}
		return err
	case httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden:
		return agent.NewError(agent.KindAuthentication, providerName, model, message, nil)
	case errType == "billing_error":
		return agent.NewError(agent.KindQuotaExceeded, providerName, model, message, nil)
	default:
		return agent.NewError(agent.KindUnavailable, providerName, model,
			fmt.Sprintf("status %d: %s", httpResp.StatusCode, message), nil)
	}
}
