package middleware_test

import (
	"context"
	"fmt"

	"github.com/moonhollow/moonhollow/pkg/domain"
	"github.com/moonhollow/moonhollow/pkg/ports"
)

// MockStore is a simple slice-based transcript store for testing middleware.
type MockStore struct {
	logs map[string][]domain.GameMessage
	seq  int64
}

func NewMockStore() *MockStore {
	return &MockStore{
		logs: make(map[string][]domain.GameMessage),
	}
}

func (s *MockStore) Append(ctx context.Context, gameID string, msg *domain.GameMessage) error {
	s.seq++
	msg.Seq = s.seq
	msg.ID = fmt.Sprintf("msg-%d", s.seq)
	s.logs[gameID] = append(s.logs[gameID], *msg)
	return nil
}

func (s *MockStore) Messages(ctx context.Context, gameID string) ([]domain.GameMessage, error) {
	out := make([]domain.GameMessage, len(s.logs[gameID]))
	copy(out, s.logs[gameID])
	return out, nil
}

func (s *MockStore) DeleteAfter(ctx context.Context, gameID, messageID string) (int, error) {
	log := s.logs[gameID]
	for i, msg := range log {
		if msg.ID == messageID {
			removed := len(log) - i - 1
			s.logs[gameID] = log[:i+1]
			return removed, nil
		}
	}
	return 0, domain.ErrMessageNotFound
}

var _ ports.MessageStore = (*MockStore)(nil)
