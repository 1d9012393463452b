//go:generate go run go.uber.org/mock/mockgen -source=presence.go -destination=../mocks/mock_presence_repository.go -package=mocks
package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chat-rooms/domain/chat"
	"chat-rooms/errors"
	"chat-rooms/store"

	"github.com/samber/lo"
)

type IPresenceRepository interface {
	Refresh(ctx context.Context, roomID chat.RoomID, username string) error
	Remove(ctx context.Context, roomID chat.RoomID, username string) (bool, error)
	ListActive(ctx context.Context, roomID chat.RoomID) ([]string, error)
	DeleteAll(ctx context.Context, roomID chat.RoomID) error
}

// PresenceRepository keeps one recency-ordered set per room. Staleness
// is resolved lazily: reads prune expired entries as a side effect, no
// background sweep runs. Each user only ever writes their own entry, so
// refreshes are naturally race-free.
type PresenceRepository struct {
	store     store.Client
	log       *slog.Logger
	staleness time.Duration
	now       func() time.Time
}

func NewPresenceRepository(client store.Client, log *slog.Logger, staleness time.Duration) *PresenceRepository {
	return &PresenceRepository{store: client, log: log, staleness: staleness, now: time.Now}
}

func (p *PresenceRepository) Refresh(ctx context.Context, roomID chat.RoomID, username string) error {
	score := float64(p.now().UnixMilli())
	if err := p.store.ZAdd(ctx, presenceKey(string(roomID)), username, score); err != nil {
		return fmt.Errorf("%w: refresh presence of %s in %s: %v", errors.ErrStore, username, roomID, err)
	}
	return nil
}

// Remove reports whether an entry was actually deleted; the caller uses
// that to decide whether a leave carries lifecycle side effects.
func (p *PresenceRepository) Remove(ctx context.Context, roomID chat.RoomID, username string) (bool, error) {
	removed, err := p.store.ZRem(ctx, presenceKey(string(roomID)), username)
	if err != nil {
		return false, fmt.Errorf("%w: remove presence of %s in %s: %v", errors.ErrStore, username, roomID, err)
	}
	return removed > 0, nil
}

// ListActive partitions the collection into fresh and stale by the
// staleness threshold, deletes the stale half and returns the fresh
// usernames in recency order, oldest first.
func (p *PresenceRepository) ListActive(ctx context.Context, roomID chat.RoomID) ([]string, error) {
	key := presenceKey(string(roomID))
	entries, err := p.store.ZRangeWithScores(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: read presence of %s: %v", errors.ErrStore, roomID, err)
	}

	cutoff := float64(p.now().Add(-p.staleness).UnixMilli())
	stale, fresh := lo.FilterReject(entries, func(e store.ZMember, _ int) bool {
		return e.Score < cutoff
	})

	if len(stale) > 0 {
		names := lo.Map(stale, func(e store.ZMember, _ int) string { return e.Member })
		if _, err := p.store.ZRem(ctx, key, names...); err != nil {
			// Pruning is opportunistic; the fresh result is still valid.
			p.log.Warn("presence pruning failed", "room", roomID, "error", err)
		}
	}

	return lo.Map(fresh, func(e store.ZMember, _ int) string { return e.Member }), nil
}

func (p *PresenceRepository) DeleteAll(ctx context.Context, roomID chat.RoomID) error {
	if err := p.store.Del(ctx, presenceKey(string(roomID))); err != nil {
		return fmt.Errorf("%w: clear presence of %s: %v", errors.ErrStore, roomID, err)
	}
	return nil
}
