package ratelimit

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"chat-rooms/store"

	"github.com/stretchr/testify/require"
)

func burstGuard(client store.Client, cfg BurstConfig) *BurstGuard {
	limiter := NewLimiter(client, slog.Default())
	return NewBurstGuard(client, limiter, cfg, slog.Default())
}

func Test_Burst_Min_Interval(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	guard := burstGuard(store.NewMemory(), BurstConfig{
		ShortWindow: 10 * time.Second,
		ShortLimit:  100,
		LongWindow:  time.Minute,
		LongLimit:   100,
		MinInterval: 60 * time.Millisecond,
	})

	verdict := guard.Check(ctx, "lobby", "alice")
	req.True(verdict.Allowed)
	guard.Record(ctx, "lobby", "alice")

	verdict = guard.Check(ctx, "lobby", "alice")
	req.False(verdict.Allowed, "a second send inside the interval is denied")
	req.Positive(verdict.RetryAfter)

	time.Sleep(80 * time.Millisecond)
	verdict = guard.Check(ctx, "lobby", "alice")
	req.True(verdict.Allowed)
}

func Test_Burst_Interval_Starts_At_Record_Not_Check(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	guard := burstGuard(store.NewMemory(), BurstConfig{
		ShortWindow: 10 * time.Second,
		ShortLimit:  100,
		LongWindow:  time.Minute,
		LongLimit:   100,
		MinInterval: time.Minute,
	})

	// A check that is never recorded leaves the window untouched, so an
	// attempt rejected later in the pipeline cannot block the next one.
	req.True(guard.Check(ctx, "lobby", "alice").Allowed)
	req.True(guard.Check(ctx, "lobby", "alice").Allowed)

	guard.Record(ctx, "lobby", "alice")
	req.False(guard.Check(ctx, "lobby", "alice").Allowed)
}

func Test_Burst_Short_Window_Denies(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	guard := burstGuard(store.NewMemory(), BurstConfig{
		ShortWindow: 10 * time.Second,
		ShortLimit:  2,
		LongWindow:  time.Minute,
		LongLimit:   100,
		MinInterval: 0,
	})

	req.True(guard.Check(ctx, "lobby", "alice").Allowed)
	req.True(guard.Check(ctx, "lobby", "alice").Allowed)

	verdict := guard.Check(ctx, "lobby", "alice")
	req.False(verdict.Allowed)
	req.Positive(verdict.RetryAfter)

	// Another user in the same room is unaffected.
	req.True(guard.Check(ctx, "lobby", "bob").Allowed)
}

func Test_Burst_Pairs_Are_Independent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	guard := burstGuard(store.NewMemory(), BurstConfig{
		ShortWindow: 10 * time.Second,
		ShortLimit:  1,
		LongWindow:  time.Minute,
		LongLimit:   100,
		MinInterval: 0,
	})

	req.True(guard.Check(ctx, "lobby", "alice").Allowed)
	req.False(guard.Check(ctx, "lobby", "alice").Allowed)
	req.True(guard.Check(ctx, "other", "alice").Allowed,
		"burst counters are scoped per (room, user)")
}

func Test_Burst_Store_Failure_Fails_Open(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	broken := &faultyStore{
		Memory:   store.NewMemory(),
		failIncr: true,
		failGet:  true,
		failSet:  true,
	}
	guard := burstGuard(broken, BurstConfig{
		ShortWindow: 10 * time.Second,
		ShortLimit:  1,
		LongWindow:  time.Minute,
		LongLimit:   1,
		MinInterval: time.Second,
	})

	verdict := guard.Check(ctx, "lobby", "alice")
	req.True(verdict.Allowed, "burst checks are non-critical and fail open")
}
