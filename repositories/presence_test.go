package repositories

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"chat-rooms/domain/chat"
	"chat-rooms/store"

	"github.com/stretchr/testify/require"
)

func Test_Presence_Refresh_And_Remove(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewPresenceRepository(store.NewMemory(), slog.Default(), time.Minute)
	room := chat.RoomID("lobby")

	req.NoError(repo.Refresh(ctx, room, "alice"))

	removed, err := repo.Remove(ctx, room, "alice")
	req.NoError(err)
	req.True(removed)

	removed, err = repo.Remove(ctx, room, "alice")
	req.NoError(err)
	req.False(removed, "removing an absent entry reports false")
}

func Test_Presence_Stale_Entries_Are_Pruned_On_Read(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	mem := store.NewMemory()
	repo := NewPresenceRepository(mem, slog.Default(), 60*time.Millisecond)
	room := chat.RoomID("lobby")

	req.NoError(repo.Refresh(ctx, room, "alice"))
	time.Sleep(80 * time.Millisecond)
	req.NoError(repo.Refresh(ctx, room, "bob"))

	active, err := repo.ListActive(ctx, room)
	req.NoError(err)
	req.Equal([]string{"bob"}, active, "stale users never appear")

	// Pruning is a side effect of the read: alice is gone from the store.
	entries, err := mem.ZRangeWithScores(ctx, presenceKey(string(room)))
	req.NoError(err)
	req.Len(entries, 1)
	req.Equal("bob", entries[0].Member)
}

func Test_Presence_Refresh_Revives_A_User(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewPresenceRepository(store.NewMemory(), slog.Default(), 60*time.Millisecond)
	room := chat.RoomID("lobby")

	req.NoError(repo.Refresh(ctx, room, "alice"))
	time.Sleep(80 * time.Millisecond)
	req.NoError(repo.Refresh(ctx, room, "alice"))

	active, err := repo.ListActive(ctx, room)
	req.NoError(err)
	req.Equal([]string{"alice"}, active)
}

func Test_Presence_DeleteAll(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewPresenceRepository(store.NewMemory(), slog.Default(), time.Minute)
	room := chat.RoomID("lobby")

	req.NoError(repo.Refresh(ctx, room, "alice"))
	req.NoError(repo.Refresh(ctx, room, "bob"))
	req.NoError(repo.DeleteAll(ctx, room))

	active, err := repo.ListActive(ctx, room)
	req.NoError(err)
	req.Empty(active)
}
