//go:generate go run go.uber.org/mock/mockgen -source=limiter.go -destination=../mocks/mock_limiter.go -package=mocks

// Package ratelimit implements a generic counter-based limiter on top of
// the store, plus the two specializations the chat core needs: the
// privileged-feature quota and the per-room chat burst guard. The
// generic limiter is deliberately dependency-free so unrelated callers
// (AI quotas, title parsing, sharing) can reuse it as-is.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chat-rooms/errors"
	"chat-rooms/store"
)

type Result struct {
	Allowed      bool  `json:"allowed"`
	Count        int64 `json:"count"`
	Limit        int64 `json:"limit"`
	Remaining    int64 `json:"remaining"`
	ResetSeconds int64 `json:"resetSeconds"`
}

type ILimiter interface {
	Check(ctx context.Context, key string, window time.Duration, limit int64) (Result, error)
}

type Limiter struct {
	store store.Client
	log   *slog.Logger
}

func NewLimiter(client store.Client, log *slog.Logger) *Limiter {
	return &Limiter{store: client, log: log}
}

// Check increments first and compares after, which removes the
// check-then-act race: the store's increment is atomic and totally
// ordered, so two concurrent callers can never both observe the last
// free slot. The counter stays incremented on denial.
//
// Only the call that observes count==1 owns window creation and sets
// the TTL; later hits never extend the remaining window.
func (l *Limiter) Check(ctx context.Context, key string, window time.Duration, limit int64) (Result, error) {
	count, err := l.store.Incr(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("%w: incr %s: %v", errors.ErrStore, key, err)
	}

	if count == 1 {
		if _, err := l.store.Expire(ctx, key, window); err != nil {
			return Result{}, fmt.Errorf("%w: expire %s: %v", errors.ErrStore, key, err)
		}
	}

	reset := window
	if ttl, err := l.store.TTL(ctx, key); err == nil && ttl > 0 {
		reset = ttl
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:      count <= limit,
		Count:        count,
		Limit:        limit,
		Remaining:    remaining,
		ResetSeconds: int64(reset.Round(time.Second) / time.Second),
	}, nil
}

// RetryAfter converts a denial into the taxonomy error carrying the hint.
func (r Result) RetryAfter() *errors.RateLimitError {
	return &errors.RateLimitError{
		RetryAfter: time.Duration(r.ResetSeconds) * time.Second,
		Count:      r.Count,
		Limit:      r.Limit,
	}
}
