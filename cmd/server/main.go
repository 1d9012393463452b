package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chat-rooms/auth"
	"chat-rooms/internal"
	"chat-rooms/moderation"
	"chat-rooms/observability"
	"chat-rooms/ratelimit"
	"chat-rooms/repositories"
	"chat-rooms/services"
	"chat-rooms/sink"
	"chat-rooms/store"
	httptransport "chat-rooms/transport/http"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like store cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the HTTP boundary.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Store (Redis)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redis := store.NewRedis(config.RedisAddr, config.RedisPassword, config.RedisDB)
	if err := redis.Ping(ctx); err != nil {
		return fmt.Errorf("store unavailable: %w", err)
	}
	defer func() {
		log.Info("Closing store connection...")
		_ = redis.Close()
	}()

	// 3. Moderation & auth gate
	censorRune, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return err
	}
	moderator, err := moderation.NewModerator(config.WordList(), censorRune)
	if err != nil {
		return fmt.Errorf("moderator init failed: %w", err)
	}
	verify := auth.NewVerifier([]byte(config.JWTSecret))

	// 4. Repositories, limiters, services
	metrics := observability.NewMonitoringManager(log)
	rooms := repositories.NewRoomRepository(redis, log)
	messages := repositories.NewMessageRepository(redis, log, config.HistoryLimit)
	presence := repositories.NewPresenceRepository(redis, log, config.PresenceStale)
	users := repositories.NewUserRepository(redis, log)

	limiter := ratelimit.NewLimiter(redis, log)
	burst := ratelimit.NewBurstGuard(redis, limiter, ratelimit.BurstConfig{
		ShortWindow: config.BurstShortWindow,
		ShortLimit:  config.BurstShortLimit,
		LongWindow:  config.BurstLongWindow,
		LongLimit:   config.BurstLongLimit,
		MinInterval: config.MinMessageInterval,
	}, log)
	quota := ratelimit.NewQuotaChecker(limiter, verify, ratelimit.QuotaConfig{
		AnonymousLimit:      config.AnonymousQuota,
		AnonymousWindow:     config.AnonymousQuotaWindow,
		AuthenticatedLimit:  config.AuthQuota,
		AuthenticatedWindow: config.AuthQuotaWindow,
		BypassUsername:      config.AdminUsername,
	}, log)

	chatService := services.NewChatService(
		rooms, messages, presence, users,
		burst, &moderator, verify,
		config.AdminUsername, config.MaxContentLength, metrics, log,
	)
	roomService := services.NewRoomService(
		rooms, presence, &moderator, verify,
		config.AdminUsername, metrics, log,
	)

	// 5. Event dispatch & monitoring
	sinks := []sink.EventSink{
		sink.NewPublishingSink(redis, config.EventChannel, log),
		sink.NewLoggingSink(log),
	}
	go metrics.Run(ctx, config.MetricInterval)

	// 6. HTTP boundary
	server := httptransport.NewServer(chatService, roomService, limiter, quota, sinks, log)
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address)
		if err := server.Listen(address); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	if err := server.Shutdown(); err != nil {
		log.Warn("HTTP shutdown failed", "error", err)
	}
	log.Info("Program stopped cleanly")

	return nil
}
