package chat

// Events are the typed replacement for callback-style notification
// hooks: mutating operations return them and the boundary decides how
// to dispatch. The core never fans out to clients itself.

type Event interface {
	EventName() string
	EventRoom() RoomID
}

// RoomUpdated signals a membership or presence change on a live room.
type RoomUpdated struct {
	Room      RoomID   `json:"roomId"`
	Type      RoomType `json:"type"`
	UserCount int      `json:"userCount"`
	Members   []string `json:"members,omitempty"`
}

func (e RoomUpdated) EventName() string { return "room-updated" }
func (e RoomUpdated) EventRoom() RoomID { return e.Room }

// RoomDeleted carries the members that remained at deletion time so
// each can be notified individually.
type RoomDeleted struct {
	Room    RoomID   `json:"roomId"`
	Type    RoomType `json:"type"`
	Members []string `json:"members,omitempty"`
}

func (e RoomDeleted) EventName() string { return "room-deleted" }
func (e RoomDeleted) EventRoom() RoomID { return e.Room }

type MessagePosted struct {
	Message Message `json:"message"`
}

func (e MessagePosted) EventName() string { return "message-posted" }
func (e MessagePosted) EventRoom() RoomID { return e.Message.RoomID }
