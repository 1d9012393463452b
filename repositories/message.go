//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"chat-rooms/domain/chat"
	"chat-rooms/errors"
	"chat-rooms/store"
)

type IMessageRepository interface {
	Append(ctx context.Context, msg chat.Message) error
	List(ctx context.Context, roomID chat.RoomID, limit int64) ([]chat.Message, error)
	Last(ctx context.Context, roomID chat.RoomID) (chat.Message, bool, error)
	Delete(ctx context.Context, roomID chat.RoomID, messageID string) (bool, error)
}

// MessageRepository keeps one bounded log per room: push to the head,
// trim to the cap. Eviction is unconditional and lossy, there is no
// archive of the dropped tail.
type MessageRepository struct {
	store   store.Client
	log     *slog.Logger
	history int64
}

func NewMessageRepository(client store.Client, log *slog.Logger, history int64) *MessageRepository {
	return &MessageRepository{store: client, log: log, history: history}
}

func (m *MessageRepository) Append(ctx context.Context, msg chat.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message %s: %w", msg.ID, err)
	}
	key := messagesKey(string(msg.RoomID))
	if err := m.store.LPush(ctx, key, string(data)); err != nil {
		return fmt.Errorf("%w: push message to %s: %v", errors.ErrStore, msg.RoomID, err)
	}
	if err := m.store.LTrim(ctx, key, 0, m.history-1); err != nil {
		return fmt.Errorf("%w: trim log of %s: %v", errors.ErrStore, msg.RoomID, err)
	}
	return nil
}

// List returns up to limit messages, most recent first. Entries that no
// longer parse are skipped rather than failing the whole read.
func (m *MessageRepository) List(ctx context.Context, roomID chat.RoomID, limit int64) ([]chat.Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	raws, err := m.store.LRange(ctx, messagesKey(string(roomID)), 0, limit-1)
	if err != nil {
		return nil, fmt.Errorf("%w: read log of %s: %v", errors.ErrStore, roomID, err)
	}
	messages := make([]chat.Message, 0, len(raws))
	for _, raw := range raws {
		var msg chat.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			m.log.Warn("skipping malformed message entry", "room", roomID, "error", err)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (m *MessageRepository) Last(ctx context.Context, roomID chat.RoomID) (chat.Message, bool, error) {
	raws, err := m.store.LRange(ctx, messagesKey(string(roomID)), 0, 0)
	if err != nil {
		return chat.Message{}, false, fmt.Errorf("%w: read log of %s: %v", errors.ErrStore, roomID, err)
	}
	if len(raws) == 0 {
		return chat.Message{}, false, nil
	}
	var msg chat.Message
	if err := json.Unmarshal([]byte(raws[0]), &msg); err != nil {
		return chat.Message{}, false, nil
	}
	return msg, true, nil
}

// Delete removes one message by id. The log holds serialized entries, so
// the matching raw value is removed verbatim.
func (m *MessageRepository) Delete(ctx context.Context, roomID chat.RoomID, messageID string) (bool, error) {
	key := messagesKey(string(roomID))
	raws, err := m.store.LRange(ctx, key, 0, -1)
	if err != nil {
		return false, fmt.Errorf("%w: read log of %s: %v", errors.ErrStore, roomID, err)
	}
	for _, raw := range raws {
		var msg chat.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			continue
		}
		if msg.ID.String() == messageID {
			removed, err := m.store.LRem(ctx, key, 1, raw)
			if err != nil {
				return false, fmt.Errorf("%w: remove message %s: %v", errors.ErrStore, messageID, err)
			}
			return removed > 0, nil
		}
	}
	return false, nil
}
