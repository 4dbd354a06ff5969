package middleware

import (
	"context"
	"regexp"

	"github.com/moonhollow/moonhollow/pkg/domain"
	"github.com/moonhollow/moonhollow/pkg/ports"
)

type redactionMiddleware struct {
	next     ports.MessageStore
	patterns []*regexp.Regexp
}

// NewRedactionMiddleware creates a middleware that masks substrings matching
// the patterns before a message body is persisted. Players paste things they
// should not, and provider replies occasionally echo them back; redaction at
// the store boundary keeps both out of the transcript.
func NewRedactionMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.MessageStore) ports.MessageStore {
		return &redactionMiddleware{next: next, patterns: patterns}
	}
}

func (m *redactionMiddleware) Append(ctx context.Context, gameID string, msg *domain.GameMessage) error {
	// Clone so the in-memory copy the engine keeps working with is untouched.
	cloned := *msg
	cloned.Body = mask(msg.Body, m.patterns)
	if err := m.next.Append(ctx, gameID, &cloned); err != nil {
		return err
	}
	msg.ID = cloned.ID
	msg.Seq = cloned.Seq
	msg.Timestamp = cloned.Timestamp
	return nil
}

func (m *redactionMiddleware) Messages(ctx context.Context, gameID string) ([]domain.GameMessage, error) {
	return m.next.Messages(ctx, gameID)
}

func (m *redactionMiddleware) DeleteAfter(ctx context.Context, gameID, messageID string) (int, error) {
	return m.next.DeleteAfter(ctx, gameID, messageID)
}

func mask(body string, patterns []*regexp.Regexp) string {
	for _, p := range patterns {
		body = p.ReplaceAllString(body, "***")
	}
	return body
}
