package agent

import (
	"context"
	"log/slog"

	"github.com/moonhollow/moonhollow/internal/logging"
	"github.com/moonhollow/moonhollow/pkg/domain"
	"github.com/moonhollow/moonhollow/pkg/schema"
)

// MessageRole tags a turn in the conversation history.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one turn of role-tagged history submitted to a provider.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`

	// Thinking is an optional internal reasoning trace returned by
	// providers that expose one. Signature is the opaque continuity token
	// required to resubmit the trace; a trace without its signature cannot
	// be replayed and is downgraded to text-only before dispatch.
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// Reply is a successful provider response.
type Reply struct {
	Text      string `json:"text"`
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`

	Usage domain.TokenUsage `json:"usage"`
}

// Provider is implemented by each provider adapter. Complete dispatches a
// full history to the named model and returns the reply, or a classified
// *Error. A nil reply with nil error means the provider returned no content.
//
// Adding a provider requires no change to the engine; it depends only on
// Agent.
type Provider interface {
	Name() string
	Complete(ctx context.Context, model string, history []Message) (*Reply, error)
}

// Agent is the uniform contract the engine drives bots through.
type Agent interface {
	// Ask requests a free-form reply. A nil reply with nil error means the
	// provider itself returned no content; that is not an error.
	Ask(ctx context.Context, history []Message) (*Reply, error)

	// AskWithSchema appends machine-readable instructions to the final
	// turn and returns a reply whose Fields parsed and validated against
	// the schema. It never returns a nil reply without an error: empty or
	// unparseable content is a KindSchemaValidation error after one
	// bounded retry with a reinforced instruction.
	AskWithSchema(ctx context.Context, s schema.Schema, history []Message) (*Reply, map[string]any, error)

	// Model returns the model identifier this agent is bound to.
	Model() domain.ModelSelector
}

// Client binds a Provider to a concrete model and pricing table,
// implementing Agent.
type Client struct {
	provider Provider
	model    string
	pricing  PriceFunc
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithPricing sets the cost function applied to each call's token counts.
func WithPricing(fn PriceFunc) Option {
	return func(c *Client) { c.pricing = fn }
}

// WithLogger sets a structured logger for call-level events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates an agent client for one provider+model pair.
func New(provider Provider, model string, opts ...Option) *Client {
	c := &Client{
		provider: provider,
		model:    model,
		pricing:  FreePricing,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the provider+model pair this client dispatches to.
func (c *Client) Model() domain.ModelSelector {
	return domain.ModelSelector{Provider: c.provider.Name(), Model: c.model}
}

// Ask dispatches the history and prices the reply.
func (c *Client) Ask(ctx context.Context, history []Message) (*Reply, error) {
	reply, err := c.provider.Complete(ctx, c.model, sanitize(history))
	if err != nil {
		return nil, err
	}
	if reply == nil {
		c.logger.Debug("provider returned no content", "provider", c.provider.Name(), "model", c.model)
		return nil, nil
	}
	c.price(reply)
	return reply, nil
}

// AskWithSchema dispatches the history with schema instructions appended and
// validates the reply. One retry with a reinforced instruction is attempted
// before the call fails with KindSchemaValidation.
func (c *Client) AskWithSchema(ctx context.Context, s schema.Schema, history []Message) (*Reply, map[string]any, error) {
	prompt := withInstruction(history, schema.Instructions(s))

	reply, err := c.Ask(ctx, prompt)
	if err != nil {
		return nil, nil, err
	}

	fields, parseErr := parseReply(s, reply)
	if parseErr == nil {
		return reply, fields, nil
	}

	c.logger.Warn("structured reply failed validation, retrying once",
		"provider", c.provider.Name(), "model", c.model, "err", parseErr)

	reinforced := withInstruction(history,
		"Your previous reply was not valid: "+parseErr.Error()+"\n"+schema.Instructions(s))
	retry, err := c.Ask(ctx, reinforced)
	if err != nil {
		return nil, nil, err
	}
	// Keep the usage of the failed attempt on the books: tokens were spent.
	if retry != nil && reply != nil {
		retry.Usage.Add(reply.Usage)
	}

	fields, parseErr = parseReply(s, retry)
	if parseErr != nil {
		return nil, nil, NewError(KindSchemaValidation, c.provider.Name(), c.model, parseErr.Error(), parseErr)
	}
	return retry, fields, nil
}

func (c *Client) price(reply *Reply) {
	if c.pricing == nil {
		return
	}
	reply.Usage.CostUSD = c.pricing(c.model, reply.Usage.InputTokens, reply.Usage.OutputTokens)
}

func parseReply(s schema.Schema, reply *Reply) (map[string]any, error) {
	if reply == nil || reply.Text == "" {
		return nil, &schema.ValidationError{Key: "reply", Reason: "empty content"}
	}
	return schema.Parse(s, reply.Text)
}

// withInstruction returns a copy of history with the instruction appended to
// the final user turn, or as a new user turn if the history ends elsewhere.
func withInstruction(history []Message, instruction string) []Message {
	out := make([]Message, len(history))
	copy(out, history)
	if n := len(out); n > 0 && out[n-1].Role == RoleUser {
		out[n-1].Content += "\n\n" + instruction
		return out
	}
	return append(out, Message{Role: RoleUser, Content: instruction})
}

// sanitize returns history safe for resubmission. Assistant turns carrying a
// thinking trace without its continuity token cannot be replayed (storage
// loss or provider switch); the trace is dropped and the turn becomes
// text-only. Dropping the unusable trace is the only safe recovery.
func sanitize(history []Message) []Message {
	out := make([]Message, len(history))
	copy(out, history)
	for i := range out {
		if out[i].Role == RoleAssistant && out[i].Thinking != "" && out[i].Signature == "" {
			out[i].Thinking = ""
		}
	}
	return out
}
