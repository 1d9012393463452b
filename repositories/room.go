//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
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

type IRoomRepository interface {
	Get(ctx context.Context, id chat.RoomID) (chat.Room, error)
	Exists(ctx context.Context, id chat.RoomID) (bool, error)
	Save(ctx context.Context, room chat.Room) error
	Members(ctx context.Context, id chat.RoomID) ([]string, error)
	RemoveMember(ctx context.Context, id chat.RoomID, username string) error
	SetUserCount(ctx context.Context, id chat.RoomID, count int) error
	DeleteCascade(ctx context.Context, id chat.RoomID) error
}

type RoomRepository struct {
	store store.Client
	log   *slog.Logger
}

func NewRoomRepository(client store.Client, log *slog.Logger) *RoomRepository {
	return &RoomRepository{store: client, log: log}
}

// Get loads the room record and, for private rooms, its membership set.
func (r *RoomRepository) Get(ctx context.Context, id chat.RoomID) (chat.Room, error) {
	raw, found, err := r.store.Get(ctx, roomKey(string(id)))
	if err != nil {
		return chat.Room{}, fmt.Errorf("%w: get room %s: %v", errors.ErrStore, id, err)
	}
	if !found {
		return chat.Room{}, fmt.Errorf("%w: room %s", errors.ErrNotFound, id)
	}

	var room chat.Room
	if err := json.Unmarshal([]byte(raw), &room); err != nil {
		// Malformed cached data is treated as absent, not surfaced.
		r.log.Warn("malformed room record, treating as absent", "room", id, "error", err)
		return chat.Room{}, fmt.Errorf("%w: room %s", errors.ErrNotFound, id)
	}

	if room.Private() {
		members, err := r.Members(ctx, id)
		if err != nil {
			return chat.Room{}, err
		}
		room.Members = members
	}
	return room, nil
}

func (r *RoomRepository) Exists(ctx context.Context, id chat.RoomID) (bool, error) {
	ok, err := r.store.SIsMember(ctx, roomIndexKey, string(id))
	if err != nil {
		return false, fmt.Errorf("%w: room index: %v", errors.ErrStore, err)
	}
	return ok, nil
}

// Save persists the record and keeps the room index and, for private
// rooms, the membership set in sync.
func (r *RoomRepository) Save(ctx context.Context, room chat.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room %s: %w", room.ID, err)
	}
	if err := r.store.Set(ctx, roomKey(string(room.ID)), string(data), 0); err != nil {
		return fmt.Errorf("%w: save room %s: %v", errors.ErrStore, room.ID, err)
	}
	if err := r.store.SAdd(ctx, roomIndexKey, string(room.ID)); err != nil {
		return fmt.Errorf("%w: index room %s: %v", errors.ErrStore, room.ID, err)
	}
	if room.Private() && len(room.Members) > 0 {
		if err := r.store.SAdd(ctx, membersKey(string(room.ID)), room.Members...); err != nil {
			return fmt.Errorf("%w: members of %s: %v", errors.ErrStore, room.ID, err)
		}
	}
	return nil
}

func (r *RoomRepository) Members(ctx context.Context, id chat.RoomID) ([]string, error) {
	members, err := r.store.SMembers(ctx, membersKey(string(id)))
	if err != nil {
		return nil, fmt.Errorf("%w: members of %s: %v", errors.ErrStore, id, err)
	}
	return members, nil
}

// RemoveMember drops one username from the membership set. The removal
// itself is atomic; the surrounding read-compute-write of the member
// list is not, which is an accepted last-writer-wins risk.
func (r *RoomRepository) RemoveMember(ctx context.Context, id chat.RoomID, username string) error {
	if _, err := r.store.SRem(ctx, membersKey(string(id)), username); err != nil {
		return fmt.Errorf("%w: remove member %s from %s: %v", errors.ErrStore, username, id, err)
	}
	return nil
}

// SetUserCount refreshes the cached presence count on the room record.
func (r *RoomRepository) SetUserCount(ctx context.Context, id chat.RoomID, count int) error {
	raw, found, err := r.store.Get(ctx, roomKey(string(id)))
	if err != nil {
		return fmt.Errorf("%w: get room %s: %v", errors.ErrStore, id, err)
	}
	if !found {
		return nil
	}
	var room chat.Room
	if err := json.Unmarshal([]byte(raw), &room); err != nil {
		return nil
	}
	room.UserCount = count
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room %s: %w", id, err)
	}
	if err := r.store.Set(ctx, roomKey(string(id)), string(data), 0); err != nil {
		return fmt.Errorf("%w: save room %s: %v", errors.ErrStore, id, err)
	}
	return nil
}

// DeleteCascade removes the room record, membership set, message log and
// presence set in one batched DEL, then drops the index entry. The batch
// is best-effort: there is no compensating rollback on partial failure,
// a bounded inconsistency window is accepted.
func (r *RoomRepository) DeleteCascade(ctx context.Context, id chat.RoomID) error {
	rid := string(id)
	if err := r.store.Del(ctx, roomKey(rid), membersKey(rid), messagesKey(rid), presenceKey(rid)); err != nil {
		return fmt.Errorf("%w: delete room %s: %v", errors.ErrStore, id, err)
	}
	if _, err := r.store.SRem(ctx, roomIndexKey, rid); err != nil {
		return fmt.Errorf("%w: unindex room %s: %v", errors.ErrStore, id, err)
	}
	return nil
}
