package repositories

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"chat-rooms/domain/chat"
	"chat-rooms/errors"
	"chat-rooms/store"

	"github.com/stretchr/testify/require"
)

func Test_Room_Save_And_Get(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewRoomRepository(store.NewMemory(), slog.Default())

	room := chat.Room{
		ID:        "r1",
		Type:      chat.RoomTypePrivate,
		Members:   []string{"alice", "bob"},
		CreatedAt: time.Now().UTC(),
	}
	req.NoError(repo.Save(ctx, room))

	exists, err := repo.Exists(ctx, "r1")
	req.NoError(err)
	req.True(exists)

	fetched, err := repo.Get(ctx, "r1")
	req.NoError(err)
	req.Equal(chat.RoomTypePrivate, fetched.Type)
	req.ElementsMatch([]string{"alice", "bob"}, fetched.Members)
}

func Test_Room_Get_Missing_Is_NotFound(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(store.NewMemory(), slog.Default())

	_, err := repo.Get(context.Background(), "ghost")
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_Room_Malformed_Record_Reads_As_Absent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	mem := store.NewMemory()
	repo := NewRoomRepository(mem, slog.Default())

	req.NoError(mem.Set(ctx, roomKey("broken"), "{not json", 0))

	_, err := repo.Get(ctx, "broken")
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_Room_RemoveMember(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewRoomRepository(store.NewMemory(), slog.Default())

	room := chat.Room{ID: "r1", Type: chat.RoomTypePrivate, Members: []string{"alice", "bob", "clara"}}
	req.NoError(repo.Save(ctx, room))
	req.NoError(repo.RemoveMember(ctx, "r1", "bob"))

	members, err := repo.Members(ctx, "r1")
	req.NoError(err)
	req.ElementsMatch([]string{"alice", "clara"}, members)
}

func Test_Room_SetUserCount(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewRoomRepository(store.NewMemory(), slog.Default())

	req.NoError(repo.Save(ctx, chat.Room{ID: "lobby", Type: chat.RoomTypePublic}))
	req.NoError(repo.SetUserCount(ctx, "lobby", 7))

	room, err := repo.Get(ctx, "lobby")
	req.NoError(err)
	req.Equal(7, room.UserCount)
}

func Test_Room_DeleteCascade_Removes_All_Keys(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	mem := store.NewMemory()
	repo := NewRoomRepository(mem, slog.Default())

	room := chat.Room{ID: "r1", Type: chat.RoomTypePrivate, Members: []string{"alice", "bob"}}
	req.NoError(repo.Save(ctx, room))
	req.NoError(mem.LPush(ctx, messagesKey("r1"), "some message"))
	req.NoError(mem.ZAdd(ctx, presenceKey("r1"), "alice", 1))

	req.NoError(repo.DeleteCascade(ctx, "r1"))

	req.False(mem.Exists(roomKey("r1")))
	req.False(mem.Exists(membersKey("r1")))
	req.False(mem.Exists(messagesKey("r1")))
	req.False(mem.Exists(presenceKey("r1")))

	exists, err := repo.Exists(ctx, "r1")
	req.NoError(err)
	req.False(exists)
}
