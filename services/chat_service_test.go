package services

import (
	"context"
	stderrors "errors"
	"log/slog"
	"testing"
	"time"

	"chat-rooms/auth"
	"chat-rooms/domain/chat"
	"chat-rooms/errors"
	"chat-rooms/moderation"
	"chat-rooms/observability"
	"chat-rooms/ratelimit"
	"chat-rooms/repositories"
	"chat-rooms/store"

	"github.com/stretchr/testify/require"
)

var testSecret = []byte("service_test_secret_for_tokens")

const adminUser = "ryo"

type fixture struct {
	rooms     *repositories.RoomRepository
	messages  *repositories.MessageRepository
	presence  *repositories.PresenceRepository
	metrics   *observability.MonitoringManager
	chat      *ChatService
	lifecycle *RoomService
}

// newFixture wires the full stack on the in-memory store. Burst limits
// are generous by default so tests exercise them explicitly.
func newFixture(t *testing.T, burst ratelimit.BurstConfig) *fixture {
	t.Helper()
	return newFixtureWithStore(t, store.NewMemory(), burst)
}

func newFixtureWithStore(t *testing.T, client store.Client, burst ratelimit.BurstConfig) *fixture {
	t.Helper()
	log := slog.Default()

	moderator, err := moderation.NewModerator([]string{"badword"}, '*')
	require.NoError(t, err)
	verify := auth.NewVerifier(testSecret)
	metrics := observability.NewMonitoringManager(log)

	rooms := repositories.NewRoomRepository(client, log)
	messages := repositories.NewMessageRepository(client, log, 100)
	presence := repositories.NewPresenceRepository(client, log, time.Minute)
	users := repositories.NewUserRepository(client, log)

	limiter := ratelimit.NewLimiter(client, log)
	guard := ratelimit.NewBurstGuard(client, limiter, burst, log)

	return &fixture{
		rooms:    rooms,
		messages: messages,
		presence: presence,
		metrics:  metrics,
		chat: NewChatService(
			rooms, messages, presence, users, guard, &moderator, verify,
			adminUser, 1000, metrics, log,
		),
		lifecycle: NewRoomService(
			rooms, presence, &moderator, verify, adminUser, metrics, log,
		),
	}
}

func openBurst() ratelimit.BurstConfig {
	return ratelimit.BurstConfig{
		ShortWindow: 10 * time.Second,
		ShortLimit:  1000,
		LongWindow:  time.Minute,
		LongLimit:   1000,
		MinInterval: 0,
	}
}

func publicRoom(t *testing.T, f *fixture, id chat.RoomID) {
	t.Helper()
	require.NoError(t, f.rooms.Save(context.Background(), chat.Room{
		ID:        id,
		Type:      chat.RoomTypePublic,
		CreatedAt: time.Now().UTC(),
	}))
}

func privateRoom(t *testing.T, f *fixture, id chat.RoomID, members ...string) {
	t.Helper()
	require.NoError(t, f.rooms.Save(context.Background(), chat.Room{
		ID:        id,
		Type:      chat.RoomTypePrivate,
		Members:   members,
		CreatedAt: time.Now().UTC(),
	}))
}

func TestChatService_Duplicate_Guard_Scenario(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, openBurst())
	publicRoom(t, f, "lobby")

	send := func(content string) (chat.Message, error) {
		msg, _, err := f.chat.SendMessage(ctx, chat.SendMessageCommand{
			Room: "lobby", Username: "alice", Content: content,
		})
		return msg, err
	}

	msg, err := send("hello")
	req.NoError(err)
	req.Equal("hello", msg.Content)

	_, err = send("hello")
	req.ErrorIs(err, errors.ErrDuplicateMessage, "immediate repeat is rejected")

	_, err = send("world")
	req.NoError(err)

	_, err = send("hello")
	req.NoError(err, "same content after an intervening message is fine")

	messages, err := f.chat.ListMessages(ctx, chat.ListMessagesCommand{Room: "lobby", Limit: 500})
	req.NoError(err)
	req.Len(messages, 3)
	req.Equal("hello", messages[0].Content)
}

func TestChatService_Duplicate_Guard_Sees_Censored_Content(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, openBurst())
	publicRoom(t, f, "lobby")

	msg, _, err := f.chat.SendMessage(ctx, chat.SendMessageCommand{
		Room: "lobby", Username: "alice", Content: "you badword",
	})
	req.NoError(err)
	req.Equal("you *******", msg.Content)

	// The log holds the censored form; repeating the raw input must still
	// be caught.
	_, _, err = f.chat.SendMessage(ctx, chat.SendMessageCommand{
		Room: "lobby", Username: "alice", Content: "you badword",
	})
	req.ErrorIs(err, errors.ErrDuplicateMessage)

	// Repeating the censored form directly is the same message too.
	_, _, err = f.chat.SendMessage(ctx, chat.SendMessageCommand{
		Room: "lobby", Username: "alice", Content: "you *******",
	})
	req.ErrorIs(err, errors.ErrDuplicateMessage)
}

func TestChatService_Duplicate_Guard_Is_Per_User(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, openBurst())
	publicRoom(t, f, "lobby")

	_, _, err := f.chat.SendMessage(ctx, chat.SendMessageCommand{Room: "lobby", Username: "alice", Content: "hello"})
	req.NoError(err)

	// A different user may repeat the same content.
	_, _, err = f.chat.SendMessage(ctx, chat.SendMessageCommand{Room: "lobby", Username: "bob", Content: "hello"})
	req.NoError(err)
}

func TestChatService_Burst_Applies_To_Public_Rooms_Only(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, ratelimit.BurstConfig{
		ShortWindow: 10 * time.Second,
		ShortLimit:  1000,
		LongWindow:  time.Minute,
		LongLimit:   1000,
		MinInterval: 10 * time.Second,
	})
	publicRoom(t, f, "lobby")
	privateRoom(t, f, "r1", "alice", "bob")

	_, _, err := f.chat.SendMessage(ctx, chat.SendMessageCommand{Room: "lobby", Username: "alice", Content: "one"})
	req.NoError(err)

	_, _, err = f.chat.SendMessage(ctx, chat.SendMessageCommand{Room: "lobby", Username: "alice", Content: "two"})
	rle, ok := errors.AsRateLimit(err)
	req.True(ok, "public rooms enforce the burst guard")
	req.Positive(rle.RetryAfter)

	_, _, err = f.chat.SendMessage(ctx, chat.SendMessageCommand{Room: "r1", Username: "alice", Content: "one"})
	req.NoError(err)
	_, _, err = f.chat.SendMessage(ctx, chat.SendMessageCommand{Room: "r1", Username: "alice", Content: "two"})
	req.NoError(err, "private rooms are exempt from burst control")
}

func TestChatService_Rejected_Send_Does_Not_Advance_Interval(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, ratelimit.BurstConfig{
		ShortWindow: 10 * time.Second,
		ShortLimit:  1000,
		LongWindow:  time.Minute,
		LongLimit:   1000,
		MinInterval: 60 * time.Millisecond,
	})
	publicRoom(t, f, "lobby")

	_, _, err := f.chat.SendMessage(ctx, chat.SendMessageCommand{Room: "lobby", Username: "alice", Content: "hello"})
	req.NoError(err)

	time.Sleep(80 * time.Millisecond)

	_, _, err = f.chat.SendMessage(ctx, chat.SendMessageCommand{Room: "lobby", Username: "alice", Content: "hello"})
	req.ErrorIs(err, errors.ErrDuplicateMessage)

	// The rejected attempt stored nothing, so it must not count against
	// the minimum interval either.
	_, _, err = f.chat.SendMessage(ctx, chat.SendMessageCommand{Room: "lobby", Username: "alice", Content: "world"})
	req.NoError(err)
}

// appendFailingStore simulates a store that accepts reads and simple
// writes but cannot append to lists.
type appendFailingStore struct {
	*store.Memory
}

func (s *appendFailingStore) LPush(context.Context, string, ...string) error {
	return stderrors.New("connection reset")
}

func TestChatService_Store_Failures_Are_Counted(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixtureWithStore(t, &appendFailingStore{Memory: store.NewMemory()}, openBurst())
	publicRoom(t, f, "lobby")

	_, _, err := f.chat.SendMessage(ctx, chat.SendMessageCommand{Room: "lobby", Username: "alice", Content: "hello"})
	req.ErrorIs(err, errors.ErrStore)
	req.Equal(uint64(1), f.metrics.StoreErrors.Load())
}

func TestChatService_Send_Guards(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, openBurst())
	publicRoom(t, f, "lobby")

	t.Run("unknown room", func(t *testing.T) {
		_, _, err := f.chat.SendMessage(ctx, chat.SendMessageCommand{Room: "ghost", Username: "alice", Content: "hi"})
		req.ErrorIs(err, errors.ErrNotFound)
	})

	t.Run("malformed room id", func(t *testing.T) {
		_, _, err := f.chat.SendMessage(ctx, chat.SendMessageCommand{Room: "no spaces!", Username: "alice", Content: "hi"})
		req.ErrorIs(err, errors.ErrValidation)
	})

	t.Run("flagged username is plain unauthorized", func(t *testing.T) {
		_, _, err := f.chat.SendMessage(ctx, chat.SendMessageCommand{Room: "lobby", Username: "badword", Content: "hi"})
		req.ErrorIs(err, errors.ErrUnauthorized)
	})

	t.Run("empty content", func(t *testing.T) {
		_, _, err := f.chat.SendMessage(ctx, chat.SendMessageCommand{Room: "lobby", Username: "alice", Content: ""})
		req.ErrorIs(err, errors.ErrValidation)
	})
}

func TestChatService_Content_Is_Censored_And_Bounded(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, openBurst())
	publicRoom(t, f, "lobby")

	msg, _, err := f.chat.SendMessage(ctx, chat.SendMessageCommand{
		Room: "lobby", Username: "alice", Content: "such a badword here",
	})
	req.NoError(err)
	req.Equal("such a ******* here", msg.Content)

	long := make([]rune, 1001)
	for i := range long {
		long[i] = 'x'
	}
	_, _, err = f.chat.SendMessage(ctx, chat.SendMessageCommand{
		Room: "lobby", Username: "alice", Content: string(long),
	})
	req.ErrorIs(err, errors.ErrValidation)
}

func TestChatService_Send_Refreshes_Presence(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, openBurst())
	publicRoom(t, f, "lobby")

	_, events, err := f.chat.SendMessage(ctx, chat.SendMessageCommand{Room: "lobby", Username: "alice", Content: "hi"})
	req.NoError(err)
	req.Len(events, 1)
	req.Equal("message-posted", events[0].EventName())

	active, err := f.chat.ListActiveUsers(ctx, "lobby")
	req.NoError(err)
	req.Equal([]string{"alice"}, active)

	room, err := f.rooms.Get(ctx, "lobby")
	req.NoError(err)
	req.Equal(1, room.UserCount, "cached count follows presence")
}

func TestChatService_DeleteMessage_Is_Admin_Only(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, openBurst())
	publicRoom(t, f, "lobby")

	msg, _, err := f.chat.SendMessage(ctx, chat.SendMessageCommand{Room: "lobby", Username: "alice", Content: "oops"})
	req.NoError(err)

	adminToken, err := auth.GenerateToken(testSecret, adminUser, time.Hour)
	req.NoError(err)
	aliceToken, err := auth.GenerateToken(testSecret, "alice", time.Hour)
	req.NoError(err)

	t.Run("missing token", func(t *testing.T) {
		_, err := f.chat.DeleteMessage(ctx, chat.DeleteMessageCommand{
			Room: "lobby", MessageID: msg.ID.String(), Requester: adminUser,
		})
		req.ErrorIs(err, errors.ErrUnauthorized)
	})

	t.Run("non-admin requester", func(t *testing.T) {
		_, err := f.chat.DeleteMessage(ctx, chat.DeleteMessageCommand{
			Room: "lobby", MessageID: msg.ID.String(), Requester: "alice", Token: aliceToken,
		})
		req.ErrorIs(err, errors.ErrForbidden)
	})

	t.Run("admin succeeds", func(t *testing.T) {
		deleted, err := f.chat.DeleteMessage(ctx, chat.DeleteMessageCommand{
			Room: "lobby", MessageID: msg.ID.String(), Requester: adminUser, Token: adminToken,
		})
		req.NoError(err)
		req.True(deleted)
	})
}
