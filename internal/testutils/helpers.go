// Package testutils holds shared fakes for engine and adapter tests.
package testutils

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/moonhollow/moonhollow/pkg/agent"
	"github.com/moonhollow/moonhollow/pkg/domain"
)

// Call records one provider invocation.
type Call struct {
	Model   string
	History []agent.Message
}

// FakeProvider implements agent.Provider with a programmable handler and
// records every call. Safe for the engine's concurrent dispatch.
type FakeProvider struct {
	mu      sync.Mutex
	name    string
	handler func(model string, history []agent.Message) (*agent.Reply, error)
	calls   []Call
}

// NewFakeProvider creates a provider answering through handler. A nil
// handler answers every call with a plain acknowledgement.
func NewFakeProvider(name string, handler func(model string, history []agent.Message) (*agent.Reply, error)) *FakeProvider {
	if handler == nil {
		handler = func(string, []agent.Message) (*agent.Reply, error) {
			return TextReply("understood"), nil
		}
	}
	return &FakeProvider{name: name, handler: handler}
}

func (p *FakeProvider) Name() string { return p.name }

func (p *FakeProvider) Complete(_ context.Context, model string, history []agent.Message) (*agent.Reply, error) {
	p.mu.Lock()
	p.calls = append(p.calls, Call{Model: model, History: history})
	handler := p.handler
	p.mu.Unlock()
	return handler(model, history)
}

// Calls returns a copy of the recorded invocations.
func (p *FakeProvider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}

// Factory wraps the provider into an agent factory the scheduler accepts.
func Factory(p agent.Provider) func(sel domain.ModelSelector) (agent.Agent, error) {
	return func(sel domain.ModelSelector) (agent.Agent, error) {
		return agent.New(p, sel.Model), nil
	}
}

// TextReply builds a free-form reply with token usage attached, so cost
// accounting paths get exercised for free.
func TextReply(text string) *agent.Reply {
	return &agent.Reply{
		Text:  text,
		Usage: domain.TokenUsage{InputTokens: 10, OutputTokens: 5},
	}
}

// StructuredReply builds a reply whose text is the JSON encoding of fields,
// matching what AskWithSchema expects to parse.
func StructuredReply(fields map[string]any) *agent.Reply {
	raw, _ := json.Marshal(fields)
	return &agent.Reply{
		Text:  string(raw),
		Usage: domain.TokenUsage{InputTokens: 10, OutputTokens: 5},
	}
}

// TargetReply builds the vote/night-action shape the engine asks for.
func TargetReply(target, reasoning string) *agent.Reply {
	return StructuredReply(map[string]any{"target": target, "reasoning": reasoning})
}
