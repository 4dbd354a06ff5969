package ports

import (
	"context"

	"github.com/moonhollow/moonhollow/pkg/domain"
)

// GameStore persists game documents with optimistic concurrency control.
type GameStore interface {
	// Create persists a brand-new game. The game's Version must be zero;
	// the store stamps it to 1.
	Create(ctx context.Context, game *domain.Game) error

	// Load retrieves the game, including its current Version.
	// Returns domain.ErrGameNotFound if the game does not exist.
	Load(ctx context.Context, gameID string) (*domain.Game, error)

	// Save writes the game back if and only if the stored version still
	// matches game.Version, then increments it. Returns
	// domain.ErrVersionConflict when the record changed since it was read;
	// the caller must abort and retry, never overwrite.
	Save(ctx context.Context, game *domain.Game) error

	// Delete removes the game and its transcript.
	Delete(ctx context.Context, gameID string) error

	// List returns the IDs of all stored games.
	List(ctx context.Context) ([]string, error)
}

// MessageStore persists the strictly ordered transcript of a game.
type MessageStore interface {
	// Append stores the message, assigning its ID and a per-game strictly
	// monotonic Seq.
	Append(ctx context.Context, gameID string, msg *domain.GameMessage) error

	// Messages returns the full transcript in Seq order.
	Messages(ctx context.Context, gameID string) ([]domain.GameMessage, error)

	// DeleteAfter removes every message with Seq strictly greater than the
	// named message's Seq and returns the number removed. Returns
	// domain.ErrMessageNotFound if the anchor message does not exist.
	DeleteAfter(ctx context.Context, gameID, messageID string) (int, error)
}
