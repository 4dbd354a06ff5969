package domain

import "time"

// MessageType classifies entries in the game transcript.
type MessageType string

const (
	MessageNarrative MessageType = "narrative"
	MessageCommand   MessageType = "command"
	MessageAnswer    MessageType = "answer"
	MessageVote      MessageType = "vote"
	MessageError     MessageType = "error"
)

// RecipientEveryone is the broadcast sentinel for messages visible to all
// participants.
const RecipientEveryone = "everyone"

// GameMaster is the author name used for narrator output.
const GameMaster = "Game Master"

// GameMessage is one transcript entry. Within a day, messages are totally
// ordered by Seq; the scheduler never reorders history.
type GameMessage struct {
	ID        string      `json:"id"`
	Author    string      `json:"author"`
	Recipient string      `json:"recipient"`
	Body      string      `json:"body"`
	Type      MessageType `json:"type"`
	Day       int         `json:"day"`
	// Seq is assigned by the message store and is strictly monotonic per
	// game. Timestamp is informational only; ordering uses Seq.
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
}

// VisibleTo reports whether the message should appear in the named
// participant's prompt context.
func (m *GameMessage) VisibleTo(name string) bool {
	return m.Recipient == RecipientEveryone || m.Recipient == name || m.Author == name
}
