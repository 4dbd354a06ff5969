// Package redis persists games and their transcripts in Redis. The game is
// a single JSON document saved with an optimistic version check; the
// transcript is a ZSET ordered by a per-game monotonic sequence.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"

	"github.com/moonhollow/moonhollow/pkg/domain"
)

// Store implements ports.GameStore and ports.MessageStore.
type Store struct {
	client *backend.Client
	prefix string
}

// Option configures the store.
type Option func(*Store)

// WithPrefix sets the key prefix for all game data.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// New creates a Redis store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{client: client, prefix: "moonhollow:game:"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) gameKey(id string) string { return s.prefix + id }
func (s *Store) seqKey(id string) string  { return s.prefix + id + ":seq" }
func (s *Store) logKey(id string) string  { return s.prefix + id + ":log" }
func (s *Store) indexKey() string         { return s.prefix + "index" }

// casScript writes the document only if the stored version still matches
// the version the caller read. Returns 1 on success, 0 on conflict.
const casScript = `
local cur = redis.call("GET", KEYS[1])
if not cur then
  return -1
end
local ver = cjson.decode(cur)["version"]
if ver ~= tonumber(ARGV[2]) then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1])
return 1
`

// Create persists a brand-new game, stamping Version to 1.
func (s *Store) Create(ctx context.Context, game *domain.Game) error {
	if game.Version != 0 {
		return fmt.Errorf("create expects version 0, got %d", game.Version)
	}
	game.Version = 1
	data, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("marshal game: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.gameKey(game.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("create game: %w", err)
	}
	if !ok {
		return fmt.Errorf("game %s: %w", game.ID, domain.ErrVersionConflict)
	}

	return s.client.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  float64(time.Now().Unix()),
		Member: game.ID,
	}).Err()
}

// Load retrieves the game document.
func (s *Store) Load(ctx context.Context, gameID string) (*domain.Game, error) {
	val, err := s.client.Get(ctx, s.gameKey(gameID)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrGameNotFound
		}
		return nil, fmt.Errorf("load game: %w", err)
	}

	var game domain.Game
	if err := json.Unmarshal([]byte(val), &game); err != nil {
		return nil, fmt.Errorf("unmarshal game: %w", err)
	}
	return &game, nil
}

// Save writes the game back under an optimistic version check and bumps the
// version. On conflict the caller must reload and retry.
func (s *Store) Save(ctx context.Context, game *domain.Game) error {
	expected := game.Version
	game.Version++
	game.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(game)
	if err != nil {
		game.Version = expected
		return fmt.Errorf("marshal game: %w", err)
	}

	res, err := s.client.Eval(ctx, casScript, []string{s.gameKey(game.ID)}, data, expected).Int()
	if err != nil {
		game.Version = expected
		return fmt.Errorf("save game: %w", err)
	}
	switch res {
	case -1:
		game.Version = expected
		return domain.ErrGameNotFound
	case 0:
		game.Version = expected
		return fmt.Errorf("game %s: %w", game.ID, domain.ErrVersionConflict)
	}
	return nil
}

// Delete removes the game, its transcript and its sequence counter.
func (s *Store) Delete(ctx context.Context, gameID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.gameKey(gameID), s.seqKey(gameID), s.logKey(gameID))
	pipe.ZRem(ctx, s.indexKey(), gameID)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns all stored game IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	return s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
}

// Append stores a transcript message, assigning its ID and the next
// per-game sequence number.
func (s *Store) Append(ctx context.Context, gameID string, msg *domain.GameMessage) error {
	seq, err := s.client.Incr(ctx, s.seqKey(gameID)).Result()
	if err != nil {
		return fmt.Errorf("next seq: %w", err)
	}
	msg.Seq = seq
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return s.client.ZAdd(ctx, s.logKey(gameID), backend.Z{
		Score:  float64(seq),
		Member: string(data),
	}).Err()
}

// Messages returns the transcript in sequence order.
func (s *Store) Messages(ctx context.Context, gameID string) ([]domain.GameMessage, error) {
	raw, err := s.client.ZRange(ctx, s.logKey(gameID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]domain.GameMessage, 0, len(raw))
	for _, item := range raw {
		var msg domain.GameMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("unmarshal message: %w", err)
		}
		out = append(out, msg)
	}
	return out, nil
}

// DeleteAfter removes every message with a sequence strictly greater than
// the anchor message's and returns the number removed.
func (s *Store) DeleteAfter(ctx context.Context, gameID, messageID string) (int, error) {
	msgs, err := s.Messages(ctx, gameID)
	if err != nil {
		return 0, err
	}

	var anchor *domain.GameMessage
	for i := range msgs {
		if msgs[i].ID == messageID {
			anchor = &msgs[i]
			break
		}
	}
	if anchor == nil {
		return 0, domain.ErrMessageNotFound
	}

	removed, err := s.client.ZRemRangeByScore(ctx, s.logKey(gameID),
		fmt.Sprintf("(%d", anchor.Seq), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}
	return int(removed), nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
