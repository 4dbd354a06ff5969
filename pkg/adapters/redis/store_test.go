package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moonhollow/moonhollow/pkg/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewFromClient(client)
}

func newGame(id string) *domain.Game {
	return &domain.Game{
		ID:        id,
		Tier:      domain.TierFree,
		Phase:     domain.PhaseWelcome,
		HumanName: "Ava",
		Participants: []*domain.Participant{
			{Name: "Ava", Role: domain.RoleVillager, Human: true, IsAlive: true},
		},
	}
}

func TestStore_CreateLoadSave(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	g := newGame("g1")
	require.NoError(t, s.Create(ctx, g))
	assert.Equal(t, int64(1), g.Version)

	// A second create of the same ID must fail.
	dup := newGame("g1")
	err := s.Create(ctx, dup)
	require.ErrorIs(t, err, domain.ErrVersionConflict)

	loaded, err := s.Load(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "Ava", loaded.HumanName)
	assert.Equal(t, int64(1), loaded.Version)

	loaded.Day = 1
	require.NoError(t, s.Save(ctx, loaded))
	assert.Equal(t, int64(2), loaded.Version)

	again, err := s.Load(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Day)
}

func TestStore_SaveConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newGame("g1")))

	a, err := s.Load(ctx, "g1")
	require.NoError(t, err)
	b, err := s.Load(ctx, "g1")
	require.NoError(t, err)

	a.Day = 1
	require.NoError(t, s.Save(ctx, a))

	b.Day = 99
	err = s.Save(ctx, b)
	require.ErrorIs(t, err, domain.ErrVersionConflict)
	// The version must be rolled back so a reload-and-retry works.
	assert.Equal(t, int64(1), b.Version)

	latest, err := s.Load(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 1, latest.Day)
}

func TestStore_SaveMissing(t *testing.T) {
	s := newTestStore(t)
	g := newGame("ghost")
	g.Version = 1
	err := s.Save(context.Background(), g)
	require.ErrorIs(t, err, domain.ErrGameNotFound)
}

func TestStore_LoadMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrGameNotFound)
}

func TestStore_ListAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newGame("g1")))
	require.NoError(t, s.Create(ctx, newGame("g2")))

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	require.NoError(t, s.Delete(ctx, "g1"))
	ids, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"g2"}, ids)

	_, err = s.Load(ctx, "g1")
	require.ErrorIs(t, err, domain.ErrGameNotFound)
}

func TestStore_AppendAndMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, body := range []string{"one", "two", "three"} {
		msg := &domain.GameMessage{
			Author:    domain.GameMaster,
			Recipient: domain.RecipientEveryone,
			Body:      body,
			Type:      domain.MessageNarrative,
		}
		require.NoError(t, s.Append(ctx, "g1", msg))
		assert.NotEmpty(t, msg.ID)
		assert.NotZero(t, msg.Seq)
	}

	msgs, err := s.Messages(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i, want := range []string{"one", "two", "three"} {
		assert.Equal(t, want, msgs[i].Body)
		assert.Equal(t, int64(i+1), msgs[i].Seq)
	}
}

func TestStore_DeleteAfter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var anchor string
	for i, body := range []string{"one", "two", "three", "four"} {
		msg := &domain.GameMessage{Body: body}
		require.NoError(t, s.Append(ctx, "g1", msg))
		if i == 1 {
			anchor = msg.ID
		}
	}

	removed, err := s.DeleteAfter(ctx, "g1", anchor)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	msgs, err := s.Messages(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "two", msgs[1].Body)

	_, err = s.DeleteAfter(ctx, "g1", "nope")
	require.ErrorIs(t, err, domain.ErrMessageNotFound)

	// Sequence numbers keep growing after a rewind; they never reuse the
	// removed range.
	next := &domain.GameMessage{Body: "five"}
	require.NoError(t, s.Append(ctx, "g1", next))
	assert.Equal(t, int64(5), next.Seq)
}

func TestLocker_Exclusion(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	l := NewLocker(client, "moonhollow:")
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "g1", 0)
	require.NoError(t, err)

	// A second acquisition must block until released; give it a canceled
	// context so the test terminates.
	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = l.Lock(canceled, "g1", 0)
	require.Error(t, err)

	require.NoError(t, unlock(ctx))

	unlock2, err := l.Lock(ctx, "g1", 0)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}
