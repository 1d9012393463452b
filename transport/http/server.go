// Package http is the boundary layer: it parses ad hoc request bodies
// into typed commands, hands them to the services and decides how the
// resulting events are dispatched. The core stays transport-agnostic.
package http

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"chat-rooms/domain/chat"
	"chat-rooms/errors"
	"chat-rooms/ratelimit"
	"chat-rooms/services"
	"chat-rooms/sink"

	"github.com/gofiber/fiber/v2"
)

type Server struct {
	app     *fiber.App
	chat    services.IChatService
	rooms   services.IRoomService
	limiter ratelimit.ILimiter
	quota   *ratelimit.QuotaChecker
	sinks   []sink.EventSink
	log     *slog.Logger
}

func NewServer(
	chatService services.IChatService,
	roomService services.IRoomService,
	limiter ratelimit.ILimiter,
	quota *ratelimit.QuotaChecker,
	sinks []sink.EventSink,
	log *slog.Logger,
) *Server {
	s := &Server{
		app:     fiber.New(fiber.Config{DisableStartupMessage: true}),
		chat:    chatService,
		rooms:   roomService,
		limiter: limiter,
		quota:   quota,
		sinks:   sinks,
		log:     log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Post("/rooms/switch", s.switchRoom)
	s.app.Post("/rooms/:id/messages", s.sendMessage)
	s.app.Get("/rooms/:id/messages", s.listMessages)
	s.app.Get("/rooms/:id/users", s.listUsers)
	s.app.Post("/rooms/:id/leave", s.leaveRoom)
	s.app.Delete("/rooms/:id/messages/:messageId", s.deleteMessage)
	s.app.Delete("/rooms/:id", s.deleteRoom)
	s.app.Post("/ratelimit/check", s.checkLimit)
	s.app.Post("/quota/check", s.checkQuota)
}

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the router for in-process testing.
func (s *Server) App() *fiber.App {
	return s.app
}

func bearer(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	return strings.TrimPrefix(header, "Bearer ")
}

// respond maps the error taxonomy onto HTTP statuses. Rate limits carry
// a Retry-After hint.
func (s *Server) respond(c *fiber.Ctx, err error) error {
	if rle, ok := errors.AsRateLimit(err); ok {
		seconds := int64(rle.RetryAfter / time.Second)
		if rle.RetryAfter%time.Second != 0 {
			seconds++
		}
		c.Set(fiber.HeaderRetryAfter, strconv.FormatInt(seconds, 10))
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":      "rate limited",
			"retryAfter": seconds,
		})
	}

	status := fiber.StatusInternalServerError
	switch {
	case stderrors.Is(err, errors.ErrValidation):
		status = fiber.StatusBadRequest
	case stderrors.Is(err, errors.ErrUnauthorized):
		status = fiber.StatusUnauthorized
	case stderrors.Is(err, errors.ErrForbidden):
		status = fiber.StatusForbidden
	case stderrors.Is(err, errors.ErrNotFound):
		status = fiber.StatusNotFound
	default:
		s.log.Error("internal error", "path", c.Path(), "error", err)
		return c.Status(status).JSON(fiber.Map{"error": "internal error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// dispatch delivers events after the mutation committed and before the
// response returns. Failures are the sinks' problem, never the caller's.
func (s *Server) dispatch(c *fiber.Ctx, events []chat.Event) {
	sink.Dispatch(c.Context(), s.log, events, s.sinks...)
}

func (s *Server) sendMessage(c *fiber.Ctx) error {
	var body struct {
		Username string `json:"username"`
		Content  string `json:"content"`
	}
	if err := c.BodyParser(&body); err != nil {
		return s.respond(c, fmt.Errorf("%w: %v", errors.ErrValidation, err))
	}
	cmd := chat.SendMessageCommand{
		Room:     chat.RoomID(c.Params("id")),
		Username: body.Username,
		Content:  body.Content,
	}
	msg, events, err := s.chat.SendMessage(c.Context(), cmd)
	if err != nil {
		return s.respond(c, err)
	}
	s.dispatch(c, events)
	return c.Status(fiber.StatusCreated).JSON(msg)
}

func (s *Server) listMessages(c *fiber.Ctx) error {
	limit, _ := strconv.ParseInt(c.Query("limit", "100"), 10, 64)
	cmd := chat.ListMessagesCommand{Room: chat.RoomID(c.Params("id")), Limit: limit}
	messages, err := s.chat.ListMessages(c.Context(), cmd)
	if err != nil {
		return s.respond(c, err)
	}
	return c.JSON(fiber.Map{"messages": messages})
}

func (s *Server) listUsers(c *fiber.Ctx) error {
	users, err := s.chat.ListActiveUsers(c.Context(), chat.RoomID(c.Params("id")))
	if err != nil {
		return s.respond(c, err)
	}
	return c.JSON(fiber.Map{"users": users})
}

func (s *Server) leaveRoom(c *fiber.Ctx) error {
	var body struct {
		Username string `json:"username"`
	}
	if err := c.BodyParser(&body); err != nil {
		return s.respond(c, fmt.Errorf("%w: %v", errors.ErrValidation, err))
	}
	cmd := chat.LeaveRoomCommand{Room: chat.RoomID(c.Params("id")), Username: body.Username}
	result, events, err := s.rooms.Leave(c.Context(), cmd)
	if err != nil {
		return s.respond(c, err)
	}
	s.dispatch(c, events)
	return c.JSON(fiber.Map{"success": true, "scope": result.Scope})
}

func (s *Server) deleteRoom(c *fiber.Ctx) error {
	var body struct {
		Requester string `json:"requester"`
	}
	if err := c.BodyParser(&body); err != nil {
		return s.respond(c, fmt.Errorf("%w: %v", errors.ErrValidation, err))
	}
	cmd := chat.DeleteRoomCommand{
		Room:      chat.RoomID(c.Params("id")),
		Requester: body.Requester,
		Token:     bearer(c),
	}
	events, err := s.rooms.Delete(c.Context(), cmd)
	if err != nil {
		return s.respond(c, err)
	}
	s.dispatch(c, events)
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) switchRoom(c *fiber.Ctx) error {
	var body struct {
		Previous string `json:"previous"`
		Next     string `json:"next"`
		Username string `json:"username"`
	}
	if err := c.BodyParser(&body); err != nil {
		return s.respond(c, fmt.Errorf("%w: %v", errors.ErrValidation, err))
	}
	cmd := chat.SwitchRoomCommand{
		Previous: chat.RoomID(body.Previous),
		Next:     chat.RoomID(body.Next),
		Username: body.Username,
	}
	result, events, err := s.rooms.Switch(c.Context(), cmd)
	if err != nil {
		return s.respond(c, err)
	}
	s.dispatch(c, events)
	if result.Noop {
		return c.JSON(fiber.Map{"success": true, "noop": true})
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) deleteMessage(c *fiber.Ctx) error {
	cmd := chat.DeleteMessageCommand{
		Room:      chat.RoomID(c.Params("id")),
		MessageID: c.Params("messageId"),
		Requester: c.Query("requester"),
		Token:     bearer(c),
	}
	deleted, err := s.chat.DeleteMessage(c.Context(), cmd)
	if err != nil {
		return s.respond(c, err)
	}
	return c.JSON(fiber.Map{"success": deleted})
}

// checkLimit exposes the generic limiter to callers outside chat, such
// as title-parsing and sharing quotas.
func (s *Server) checkLimit(c *fiber.Ctx) error {
	var body struct {
		Key           string `json:"key"`
		WindowSeconds int64  `json:"windowSeconds"`
		Limit         int64  `json:"limit"`
	}
	if err := c.BodyParser(&body); err != nil {
		return s.respond(c, fmt.Errorf("%w: %v", errors.ErrValidation, err))
	}
	if body.Key == "" || body.WindowSeconds <= 0 || body.Limit <= 0 {
		return s.respond(c, fmt.Errorf("%w: key, windowSeconds and limit are required", errors.ErrValidation))
	}
	result, err := s.limiter.Check(c.Context(), body.Key, time.Duration(body.WindowSeconds)*time.Second, body.Limit)
	if err != nil {
		return s.respond(c, err)
	}
	return c.JSON(result)
}

func (s *Server) checkQuota(c *fiber.Ctx) error {
	var body struct {
		Username string `json:"username"`
	}
	if err := c.BodyParser(&body); err != nil {
		return s.respond(c, fmt.Errorf("%w: %v", errors.ErrValidation, err))
	}
	result, err := s.quota.Check(c.Context(), body.Username, c.IP(), bearer(c))
	if err != nil {
		return s.respond(c, err)
	}
	if !result.Allowed {
		c.Set(fiber.HeaderRetryAfter, strconv.FormatInt(result.ResetSeconds, 10))
		return c.Status(fiber.StatusTooManyRequests).JSON(result)
	}
	return c.JSON(result)
}
