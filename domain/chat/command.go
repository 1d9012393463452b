package chat

import (
	"fmt"
	"regexp"

	"chat-rooms/errors"

	"github.com/go-playground/validator/v10"
)

// Commands are the typed form of the boundary's ad hoc request bodies.
// They are validated before reaching any service; a command that fails
// validation never touches the store.

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Registration on a fresh instance cannot fail for well-formed tags.
	_ = v.RegisterValidation("roomid", func(fl validator.FieldLevel) bool {
		return RoomID(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("chatname", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

func check(cmd any) error {
	if err := validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	return nil
}

type SendMessageCommand struct {
	Room     RoomID `validate:"required,roomid"`
	Username string `validate:"required,chatname"`
	Content  string `validate:"required"`
}

func (c SendMessageCommand) Validate() error { return check(c) }

type ListMessagesCommand struct {
	Room  RoomID `validate:"required,roomid"`
	Limit int64  `validate:"omitempty,min=1,max=500"`
}

func (c ListMessagesCommand) Validate() error { return check(c) }

type LeaveRoomCommand struct {
	Room     RoomID `validate:"required,roomid"`
	Username string `validate:"required,chatname"`
}

func (c LeaveRoomCommand) Validate() error { return check(c) }

type DeleteRoomCommand struct {
	Room      RoomID `validate:"required,roomid"`
	Requester string `validate:"required,chatname"`
	// Token is the caller's bearer credential, verified by the auth gate.
	Token string
}

func (c DeleteRoomCommand) Validate() error { return check(c) }

type SwitchRoomCommand struct {
	Previous RoomID `validate:"omitempty,roomid"`
	Next     RoomID `validate:"omitempty,roomid"`
	Username string `validate:"required,chatname"`
}

func (c SwitchRoomCommand) Validate() error {
	if c.Previous == "" && c.Next == "" {
		return fmt.Errorf("%w: at least one of previous or next is required", errors.ErrValidation)
	}
	return check(c)
}

type DeleteMessageCommand struct {
	Room      RoomID `validate:"required,roomid"`
	MessageID string `validate:"required,uuid4"`
	Requester string `validate:"required,chatname"`
	Token     string
}

func (c DeleteMessageCommand) Validate() error { return check(c) }
