// Package chat contains core concepts of the room coordination system:
// rooms, messages, the commands that mutate them and the events those
// mutations emit.
package chat

import (
	"regexp"
	"time"
)

type RoomID string

type RoomType string

const (
	RoomTypePublic  RoomType = "public"
	RoomTypePrivate RoomType = "private"
)

var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func (id RoomID) Valid() bool {
	return roomIDPattern.MatchString(string(id))
}

// Room is the stored representation of a chat channel.
// Members is populated for private rooms only; public rooms have open
// membership. UserCount is a cached value recomputed from presence on
// every presence change.
type Room struct {
	ID        RoomID    `json:"id"`
	Type      RoomType  `json:"type"`
	Members   []string  `json:"members,omitempty"`
	UserCount int       `json:"userCount"`
	CreatedAt time.Time `json:"createdAt"`
}

func (r Room) Private() bool {
	return r.Type == RoomTypePrivate
}
