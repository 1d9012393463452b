//go:generate go run go.uber.org/mock/mockgen -source=event_sink.go -destination=../mocks/mock_event_sink.go -package=mocks

// Package sink delivers the typed events returned by mutating service
// operations. Delivery is fire-and-forget: a sink failure is logged and
// never rolls back or fails the mutation that produced the event.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"chat-rooms/domain/chat"
	"chat-rooms/store"
)

type EventSink interface {
	Consume(ctx context.Context, e chat.Event) error
}

// envelope is the wire form published for subscribers.
type envelope struct {
	Name    string      `json:"name"`
	Room    chat.RoomID `json:"roomId"`
	Payload chat.Event  `json:"payload"`
}

// PublishingSink forwards events to the store's pub/sub channel, where
// the real-time fan-out layer picks them up. The core's responsibility
// ends at publishing.
type PublishingSink struct {
	store   store.Client
	channel string
	log     *slog.Logger
}

func NewPublishingSink(client store.Client, channel string, log *slog.Logger) *PublishingSink {
	return &PublishingSink{store: client, channel: channel, log: log}
}

func (s *PublishingSink) Consume(ctx context.Context, e chat.Event) error {
	data, err := json.Marshal(envelope{Name: e.EventName(), Room: e.EventRoom(), Payload: e})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", e.EventName(), err)
	}
	return s.store.Publish(ctx, s.channel, string(data))
}

// LoggingSink records events instead of delivering them; used when no
// fan-out layer is configured.
type LoggingSink struct {
	log *slog.Logger
}

func NewLoggingSink(log *slog.Logger) *LoggingSink {
	return &LoggingSink{log: log}
}

func (s *LoggingSink) Consume(_ context.Context, e chat.Event) error {
	s.log.Info("event", "name", e.EventName(), "room", e.EventRoom())
	return nil
}

// Dispatch fans one batch of events out to every sink, logging failures.
func Dispatch(ctx context.Context, log *slog.Logger, events []chat.Event, sinks ...EventSink) {
	for _, e := range events {
		for _, target := range sinks {
			if err := target.Consume(ctx, e); err != nil {
				log.Warn("event delivery failed", "event", e.EventName(), "error", err)
			}
		}
	}
}
