//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"chat-rooms/auth"
	"chat-rooms/domain/chat"
	"chat-rooms/errors"
	"chat-rooms/moderation"
	"chat-rooms/observability"
	"chat-rooms/ratelimit"
	"chat-rooms/repositories"
)

type IChatService interface {
	SendMessage(ctx context.Context, cmd chat.SendMessageCommand) (chat.Message, []chat.Event, error)
	ListMessages(ctx context.Context, cmd chat.ListMessagesCommand) ([]chat.Message, error)
	ListActiveUsers(ctx context.Context, roomID chat.RoomID) ([]string, error)
	DeleteMessage(ctx context.Context, cmd chat.DeleteMessageCommand) (bool, error)
}

type ChatService struct {
	rooms      repositories.IRoomRepository
	messages   repositories.IMessageRepository
	presence   repositories.IPresenceRepository
	users      repositories.IUserRepository
	burst      *ratelimit.BurstGuard
	moderator  *moderation.Moderator
	verify     auth.TokenVerifier
	adminUser  string
	maxContent int
	metrics    *observability.MonitoringManager
	log        *slog.Logger
	now        func() time.Time
}

func NewChatService(
	rooms repositories.IRoomRepository,
	messages repositories.IMessageRepository,
	presence repositories.IPresenceRepository,
	users repositories.IUserRepository,
	burst *ratelimit.BurstGuard,
	moderator *moderation.Moderator,
	verify auth.TokenVerifier,
	adminUser string,
	maxContent int,
	metrics *observability.MonitoringManager,
	log *slog.Logger,
) *ChatService {
	return &ChatService{
		rooms:      rooms,
		messages:   messages,
		presence:   presence,
		users:      users,
		burst:      burst,
		moderator:  moderator,
		verify:     verify,
		adminUser:  adminUser,
		maxContent: maxContent,
		metrics:    metrics,
		log:        log,
		now:        time.Now,
	}
}

// SendMessage runs the full guard chain before anything is written:
// room existence, burst limits (public rooms only), user provisioning,
// content length and the duplicate check against the sender's previous
// message. On success the message is appended, presence refreshed and
// the sender's last-active timestamp updated.
func (s *ChatService) SendMessage(ctx context.Context, cmd chat.SendMessageCommand) (chat.Message, []chat.Event, error) {
	if err := cmd.Validate(); err != nil {
		return chat.Message{}, nil, err
	}
	if s.moderator.Detect(cmd.Username) {
		return chat.Message{}, nil, errors.ErrUnauthorized
	}

	room, err := s.rooms.Get(ctx, cmd.Room)
	if err != nil {
		return chat.Message{}, nil, s.storeFailure(err)
	}

	// Private rooms are exempt from burst control: an explicit member
	// list is its own spam boundary.
	if !room.Private() {
		verdict := s.burst.Check(ctx, string(cmd.Room), cmd.Username)
		if !verdict.Allowed {
			s.metrics.RateLimitDenials.Add(1)
			return chat.Message{}, nil, &errors.RateLimitError{RetryAfter: verdict.RetryAfter}
		}
	}

	if _, err := s.users.Ensure(ctx, cmd.Username); err != nil {
		return chat.Message{}, nil, s.storeFailure(err)
	}

	if utf8.RuneCountInString(cmd.Content) > s.maxContent {
		return chat.Message{}, nil, fmt.Errorf("%w: content exceeds %d characters", errors.ErrValidation, s.maxContent)
	}

	// Censor before the duplicate comparison: the log holds censored
	// content, so comparing the raw input would let an exact repeat with
	// a forbidden word slip through.
	content := s.moderator.Censor(cmd.Content)

	// Narrow idempotency guard: only an exact repeat of the immediately
	// preceding message from the same sender is rejected.
	if last, found, err := s.messages.Last(ctx, cmd.Room); err != nil {
		return chat.Message{}, nil, s.storeFailure(err)
	} else if found && last.Username == cmd.Username && last.Content == content {
		s.metrics.DuplicatesRejected.Add(1)
		return chat.Message{}, nil, errors.ErrDuplicateMessage
	}

	msg := chat.NewMessage(cmd.Room, cmd.Username, content, s.now())
	if err := s.messages.Append(ctx, msg); err != nil {
		return chat.Message{}, nil, s.storeFailure(err)
	}
	// The message is committed: only now does the send count against the
	// minimum-interval window.
	if !room.Private() {
		s.burst.Record(ctx, string(cmd.Room), cmd.Username)
	}

	if err := s.presence.Refresh(ctx, cmd.Room, cmd.Username); err != nil {
		return chat.Message{}, nil, s.storeFailure(err)
	}
	if _, err := s.recountUsers(ctx, cmd.Room); err != nil {
		return chat.Message{}, nil, s.storeFailure(err)
	}
	if err := s.users.TouchLastActive(ctx, cmd.Username); err != nil {
		s.log.Warn("last-active update failed", "user", cmd.Username, "error", err)
	}

	s.metrics.MessagesPosted.Add(1)
	return msg, []chat.Event{chat.MessagePosted{Message: msg}}, nil
}

func (s *ChatService) ListMessages(ctx context.Context, cmd chat.ListMessagesCommand) ([]chat.Message, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if exists, err := s.rooms.Exists(ctx, cmd.Room); err != nil {
		return nil, s.storeFailure(err)
	} else if !exists {
		return nil, fmt.Errorf("%w: room %s", errors.ErrNotFound, cmd.Room)
	}
	messages, err := s.messages.List(ctx, cmd.Room, cmd.Limit)
	return messages, s.storeFailure(err)
}

func (s *ChatService) ListActiveUsers(ctx context.Context, roomID chat.RoomID) ([]string, error) {
	if !roomID.Valid() {
		return nil, fmt.Errorf("%w: room id", errors.ErrValidation)
	}
	active, err := s.presence.ListActive(ctx, roomID)
	return active, s.storeFailure(err)
}

// DeleteMessage is admin-only; the auth gate is external, this service
// only checks the verified identity against the designated admin.
func (s *ChatService) DeleteMessage(ctx context.Context, cmd chat.DeleteMessageCommand) (bool, error) {
	if err := cmd.Validate(); err != nil {
		return false, err
	}
	identity, err := s.verify(cmd.Token)
	if err != nil || identity != cmd.Requester {
		return false, fmt.Errorf("%w: message deletion requires a valid token", errors.ErrUnauthorized)
	}
	if cmd.Requester != s.adminUser {
		return false, fmt.Errorf("%w: only %s can delete messages", errors.ErrForbidden, s.adminUser)
	}
	deleted, err := s.messages.Delete(ctx, cmd.Room, cmd.MessageID)
	return deleted, s.storeFailure(err)
}

// storeFailure counts store-level errors on their way out; other error
// kinds pass through untouched.
func (s *ChatService) storeFailure(err error) error {
	if stderrors.Is(err, errors.ErrStore) {
		s.metrics.StoreErrors.Add(1)
	}
	return err
}

func (s *ChatService) recountUsers(ctx context.Context, roomID chat.RoomID) (int, error) {
	active, err := s.presence.ListActive(ctx, roomID)
	if err != nil {
		return 0, err
	}
	if err := s.rooms.SetUserCount(ctx, roomID, len(active)); err != nil {
		return 0, err
	}
	return len(active), nil
}
