// Package memory implements the store and locker ports in process memory.
// It backs tests and single-process development runs.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moonhollow/moonhollow/pkg/domain"
	"github.com/moonhollow/moonhollow/pkg/ports"
)

// Store implements ports.GameStore and ports.MessageStore in memory.
// Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	games map[string][]byte
	logs  map[string][]domain.GameMessage
	seqs  map[string]int64
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		games: make(map[string][]byte),
		logs:  make(map[string][]domain.GameMessage),
		seqs:  make(map[string]int64),
	}
}

// Create persists a brand-new game, stamping Version to 1.
func (s *Store) Create(ctx context.Context, game *domain.Game) error {
	if game.Version != 0 {
		return fmt.Errorf("create expects version 0, got %d", game.Version)
	}
	game.Version = 1

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.games[game.ID]; exists {
		return fmt.Errorf("game %s: %w", game.ID, domain.ErrVersionConflict)
	}
	data, err := json.Marshal(game)
	if err != nil {
		return err
	}
	s.games[game.ID] = data
	return nil
}

// Load retrieves a deep copy of the game so callers cannot mutate stored
// state by pointer.
func (s *Store) Load(ctx context.Context, gameID string) (*domain.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.games[gameID]
	if !ok {
		return nil, domain.ErrGameNotFound
	}
	var game domain.Game
	if err := json.Unmarshal(data, &game); err != nil {
		return nil, err
	}
	return &game, nil
}

// Save writes the game back under an optimistic version check.
func (s *Store) Save(ctx context.Context, game *domain.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.games[game.ID]
	if !ok {
		return domain.ErrGameNotFound
	}
	var stored domain.Game
	if err := json.Unmarshal(data, &stored); err != nil {
		return err
	}
	if stored.Version != game.Version {
		return fmt.Errorf("game %s: %w", game.ID, domain.ErrVersionConflict)
	}

	game.Version++
	game.UpdatedAt = time.Now().UTC()
	updated, err := json.Marshal(game)
	if err != nil {
		game.Version--
		return err
	}
	s.games[game.ID] = updated
	return nil
}

// Delete removes the game and its transcript.
func (s *Store) Delete(ctx context.Context, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, gameID)
	delete(s.logs, gameID)
	delete(s.seqs, gameID)
	return nil
}

// List returns all stored game IDs in stable order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.games))
	for id := range s.games {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Append stores a transcript message with the next sequence number.
func (s *Store) Append(ctx context.Context, gameID string, msg *domain.GameMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seqs[gameID]++
	msg.Seq = s.seqs[gameID]
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	s.logs[gameID] = append(s.logs[gameID], *msg)
	return nil
}

// Messages returns the transcript in sequence order.
func (s *Store) Messages(ctx context.Context, gameID string) ([]domain.GameMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.GameMessage, len(s.logs[gameID]))
	copy(out, s.logs[gameID])
	return out, nil
}

// DeleteAfter removes all messages strictly after the anchor.
func (s *Store) DeleteAfter(ctx context.Context, gameID, messageID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logs[gameID]
	anchorIdx := -1
	for i := range log {
		if log[i].ID == messageID {
			anchorIdx = i
			break
		}
	}
	if anchorIdx < 0 {
		return 0, domain.ErrMessageNotFound
	}
	removed := len(log) - anchorIdx - 1
	s.logs[gameID] = log[:anchorIdx+1]
	return removed, nil
}

// Locker implements ports.Locker with per-game mutexes.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocker creates an in-process locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the per-game lock. The TTL is ignored in process memory.
func (l *Locker) Lock(ctx context.Context, gameID string, _ time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	entry, ok := l.locks[gameID]
	if !ok {
		entry = &sync.Mutex{}
		l.locks[gameID] = entry
	}
	l.mu.Unlock()

	entry.Lock()
	return func(context.Context) error {
		entry.Unlock()
		return nil
	}, nil
}
