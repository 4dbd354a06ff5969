// Package gemini adapts the Gemini API to the agent contract via the
// official genai SDK.
package gemini

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"github.com/moonhollow/moonhollow/pkg/agent"
)

const providerName = "gemini"

// Adapter implements agent.Provider over the genai SDK.
type Adapter struct {
	client *genai.Client
}

// New creates a Gemini adapter.
func New(ctx context.Context, apiKey string) (*Adapter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, agent.NewError(agent.KindUnavailable, providerName, "", "create client", err)
	}
	return &Adapter{client: client}, nil
}

// NewFromClient wraps an existing genai client (used by tests).
func NewFromClient(client *genai.Client) *Adapter {
	return &Adapter{client: client}
}

// Name returns the provider identifier.
func (a *Adapter) Name() string { return providerName }

// Complete dispatches the history and maps the response.
func (a *Adapter) Complete(ctx context.Context, model string, history []agent.Message) (*agent.Reply, error) {
	var (
		system   strings.Builder
		contents []*genai.Content
	)

	for _, m := range history {
		switch m.Role {
		case agent.RoleSystem:
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(m.Content)
		case agent.RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		case agent.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		}
	}

	config := &genai.GenerateContentConfig{}
	if system.Len() > 0 {
		config.SystemInstruction = genai.NewContentFromText(system.String(), genai.RoleUser)
	}

	resp, err := a.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, classify(model, err)
	}

	text := resp.Text()
	if text == "" {
		return nil, nil
	}

	reply := &agent.Reply{Text: text}
	if u := resp.UsageMetadata; u != nil {
		reply.Usage.InputTokens = int64(u.PromptTokenCount)
		reply.Usage.OutputTokens = int64(u.CandidatesTokenCount)
		// Gemini's total includes thought tokens, so it is authoritative.
		reply.Usage.TotalTokens = int64(u.TotalTokenCount)
	}
	return reply, nil
}

func classify(model string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 429:
			if strings.Contains(strings.ToLower(apiErr.Message), "quota") {
				return agent.NewError(agent.KindQuotaExceeded, providerName, model, apiErr.Message, err)
			}
			return agent.NewError(agent.KindRateLimit, providerName, model, apiErr.Message, err)
		case 401, 403:
			return agent.NewError(agent.KindAuthentication, providerName, model, apiErr.Message, err)
		case 503:
			return agent.NewError(agent.KindOverload, providerName, model, apiErr.Message, err)
		}
		return agent.NewError(agent.KindUnavailable, providerName, model, apiErr.Message, err)
	}
	return agent.NewError(agent.KindUnavailable, providerName, model, "request failed", err)
}
