//go:generate go run go.uber.org/mock/mockgen -source=room_service.go -destination=../mocks/mock_room_service.go -package=mocks
package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"chat-rooms/auth"
	"chat-rooms/domain/chat"
	"chat-rooms/errors"
	"chat-rooms/moderation"
	"chat-rooms/observability"
	"chat-rooms/repositories"

	"github.com/samber/lo"
)

type IRoomService interface {
	Leave(ctx context.Context, cmd chat.LeaveRoomCommand) (LeaveResult, []chat.Event, error)
	Delete(ctx context.Context, cmd chat.DeleteRoomCommand) ([]chat.Event, error)
	Switch(ctx context.Context, cmd chat.SwitchRoomCommand) (SwitchResult, []chat.Event, error)
}

type LeaveResult struct {
	Scope   chat.RoomType `json:"scope"`
	Deleted bool          `json:"deleted,omitempty"`
}

type SwitchResult struct {
	Noop bool `json:"noop,omitempty"`
}

// RoomService owns the leave/delete/switch state machine. Room creation
// is external; this service only shrinks or relocates membership.
//
// Every entry point runs validation, then authorization, then mutation.
// Multi-step membership edits are not atomic as a whole: concurrent
// leaves on the same private room race as last-writer-wins, which is
// accepted. The single-member set removal itself is atomic.
type RoomService struct {
	rooms     repositories.IRoomRepository
	presence  repositories.IPresenceRepository
	moderator *moderation.Moderator
	verify    auth.TokenVerifier
	adminUser string
	metrics   *observability.MonitoringManager
	log       *slog.Logger
}

func NewRoomService(
	rooms repositories.IRoomRepository,
	presence repositories.IPresenceRepository,
	moderator *moderation.Moderator,
	verify auth.TokenVerifier,
	adminUser string,
	metrics *observability.MonitoringManager,
	log *slog.Logger,
) *RoomService {
	return &RoomService{
		rooms:     rooms,
		presence:  presence,
		moderator: moderator,
		verify:    verify,
		adminUser: adminUser,
		metrics:   metrics,
		log:       log,
	}
}

// Leave removes the caller's presence and applies the private-room
// shrink rule: a private room left with one or zero members is deleted,
// never kept in that state.
func (s *RoomService) Leave(ctx context.Context, cmd chat.LeaveRoomCommand) (LeaveResult, []chat.Event, error) {
	if err := cmd.Validate(); err != nil {
		return LeaveResult{}, nil, err
	}
	// A flagged identity gets a plain unauthorized, indistinguishable
	// from a missing credential.
	if s.moderator.Detect(cmd.Username) {
		return LeaveResult{}, nil, errors.ErrUnauthorized
	}

	room, err := s.rooms.Get(ctx, cmd.Room)
	if err != nil {
		return LeaveResult{}, nil, s.storeFailure(err)
	}

	removed, err := s.presence.Remove(ctx, cmd.Room, cmd.Username)
	if err != nil {
		return LeaveResult{}, nil, s.storeFailure(err)
	}
	if !removed {
		// Not present: success with no lifecycle side effects, safe to
		// retry blindly.
		return LeaveResult{Scope: room.Type}, nil, nil
	}

	count, err := s.recount(ctx, cmd.Room)
	if err != nil {
		return LeaveResult{}, nil, s.storeFailure(err)
	}

	if room.Private() {
		return s.shrinkPrivate(ctx, room, cmd.Username, count)
	}

	// Public rooms have no membership to mutate.
	event := chat.RoomUpdated{Room: room.ID, Type: room.Type, UserCount: count}
	return LeaveResult{Scope: room.Type}, []chat.Event{event}, nil
}

// shrinkPrivate drops username from the member set and deletes the room
// once one or zero members remain. The deleted event carries the
// remaining member list so each can be notified individually.
func (s *RoomService) shrinkPrivate(ctx context.Context, room chat.Room, username string, count int) (LeaveResult, []chat.Event, error) {
	if err := s.rooms.RemoveMember(ctx, room.ID, username); err != nil {
		return LeaveResult{}, nil, s.storeFailure(err)
	}
	updated, err := s.rooms.Members(ctx, room.ID)
	if err != nil {
		return LeaveResult{}, nil, s.storeFailure(err)
	}

	if len(updated) <= 1 {
		if err := s.rooms.DeleteCascade(ctx, room.ID); err != nil {
			return LeaveResult{}, nil, s.storeFailure(err)
		}
		s.metrics.RoomsDeleted.Add(1)
		event := chat.RoomDeleted{Room: room.ID, Type: room.Type, Members: updated}
		return LeaveResult{Scope: room.Type, Deleted: true}, []chat.Event{event}, nil
	}

	if err := s.rooms.SetUserCount(ctx, room.ID, count); err != nil {
		return LeaveResult{}, nil, s.storeFailure(err)
	}
	event := chat.RoomUpdated{Room: room.ID, Type: room.Type, UserCount: count, Members: updated}
	return LeaveResult{Scope: room.Type}, []chat.Event{event}, nil
}

// Delete requires an authenticated requester. Private rooms reuse the
// shrink rule, so a delete while more than one member remains degrades
// to a membership update. Public rooms are removed unconditionally once
// the requester is the designated admin.
func (s *RoomService) Delete(ctx context.Context, cmd chat.DeleteRoomCommand) ([]chat.Event, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	identity, err := s.verify(cmd.Token)
	if err != nil || identity != cmd.Requester {
		return nil, fmt.Errorf("%w: delete requires a valid token", errors.ErrUnauthorized)
	}
	if s.moderator.Detect(cmd.Requester) {
		return nil, errors.ErrUnauthorized
	}

	room, err := s.rooms.Get(ctx, cmd.Room)
	if err != nil {
		return nil, s.storeFailure(err)
	}

	if room.Private() {
		if !lo.Contains(room.Members, cmd.Requester) {
			return nil, fmt.Errorf("%w: not a member of %s", errors.ErrForbidden, cmd.Room)
		}
		if _, err := s.presence.Remove(ctx, cmd.Room, cmd.Requester); err != nil {
			return nil, s.storeFailure(err)
		}
		count, err := s.recount(ctx, cmd.Room)
		if err != nil {
			return nil, s.storeFailure(err)
		}
		_, events, err := s.shrinkPrivate(ctx, room, cmd.Requester, count)
		return events, err
	}

	if cmd.Requester != s.adminUser {
		return nil, fmt.Errorf("%w: only %s can delete public rooms", errors.ErrForbidden, s.adminUser)
	}
	if err := s.rooms.DeleteCascade(ctx, cmd.Room); err != nil {
		return nil, s.storeFailure(err)
	}
	s.metrics.RoomsDeleted.Add(1)
	return []chat.Event{chat.RoomDeleted{Room: room.ID, Type: room.Type}}, nil
}

// Switch composes leaving the previous room and joining the next one as
// one call-site operation. Membership is never mutated here; only
// explicit Leave and Delete shrink private rooms.
func (s *RoomService) Switch(ctx context.Context, cmd chat.SwitchRoomCommand) (SwitchResult, []chat.Event, error) {
	if err := cmd.Validate(); err != nil {
		return SwitchResult{}, nil, err
	}
	if s.moderator.Detect(cmd.Username) {
		return SwitchResult{}, nil, errors.ErrUnauthorized
	}

	// Same room on both sides: fast path, zero store mutations.
	if cmd.Previous != "" && cmd.Previous == cmd.Next {
		return SwitchResult{Noop: true}, nil, nil
	}

	var events []chat.Event

	if cmd.Previous != "" {
		event, err := s.leaveForSwitch(ctx, cmd.Previous, cmd.Username)
		if err != nil {
			return SwitchResult{}, nil, err
		}
		if event != nil {
			events = append(events, event)
		}
	}

	if cmd.Next != "" {
		room, err := s.rooms.Get(ctx, cmd.Next)
		if err != nil {
			return SwitchResult{}, nil, s.storeFailure(err)
		}
		if err := s.presence.Refresh(ctx, cmd.Next, cmd.Username); err != nil {
			return SwitchResult{}, nil, s.storeFailure(err)
		}
		count, err := s.recount(ctx, cmd.Next)
		if err != nil {
			return SwitchResult{}, nil, s.storeFailure(err)
		}
		events = append(events, chat.RoomUpdated{Room: room.ID, Type: room.Type, UserCount: count})
	}

	s.metrics.RoomSwitches.Add(1)
	return SwitchResult{}, events, nil
}

// leaveForSwitch detaches presence from the previous room. A previous
// room that no longer exists is skipped silently: the switch is about
// arriving, not about where the caller came from.
func (s *RoomService) leaveForSwitch(ctx context.Context, roomID chat.RoomID, username string) (chat.Event, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			return nil, nil
		}
		return nil, s.storeFailure(err)
	}
	removed, err := s.presence.Remove(ctx, roomID, username)
	if err != nil {
		return nil, s.storeFailure(err)
	}
	if !removed {
		return nil, nil
	}
	count, err := s.recount(ctx, roomID)
	if err != nil {
		return nil, s.storeFailure(err)
	}
	return chat.RoomUpdated{Room: room.ID, Type: room.Type, UserCount: count}, nil
}

// storeFailure counts store-level errors on their way out; other error
// kinds pass through untouched.
func (s *RoomService) storeFailure(err error) error {
	if stderrors.Is(err, errors.ErrStore) {
		s.metrics.StoreErrors.Add(1)
	}
	return err
}

// recount recomputes the active-user count from presence and caches it
// on the room record.
func (s *RoomService) recount(ctx context.Context, roomID chat.RoomID) (int, error) {
	active, err := s.presence.ListActive(ctx, roomID)
	if err != nil {
		return 0, err
	}
	if err := s.rooms.SetUserCount(ctx, roomID, len(active)); err != nil {
		return 0, err
	}
	return len(active), nil
}
