package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"chat-rooms/store"
)

type BurstConfig struct {
	ShortWindow time.Duration
	ShortLimit  int64
	LongWindow  time.Duration
	LongLimit   int64
	// MinInterval is a strict floor between two sends from the same
	// (room, user) pair, checked against a separately stored timestamp.
	MinInterval time.Duration
}

// BurstGuard applies the chat anti-spam policy: an independent short
// window and long window must both pass, plus the minimum-interval
// check. Callers apply it to public rooms only, and call Record once
// the message has actually been stored, so an attempt rejected further
// down the pipeline never advances the interval window.
//
// This check is not critical, so store failures fail open: losing one
// burst check is cheaper than dropping a legitimate message.
type BurstGuard struct {
	store   store.Client
	limiter ILimiter
	cfg     BurstConfig
	log     *slog.Logger
	now     func() time.Time
}

func NewBurstGuard(client store.Client, limiter ILimiter, cfg BurstConfig, log *slog.Logger) *BurstGuard {
	return &BurstGuard{store: client, limiter: limiter, cfg: cfg, log: log, now: time.Now}
}

type BurstVerdict struct {
	Allowed    bool
	RetryAfter time.Duration
}

func (b *BurstGuard) Check(ctx context.Context, roomID, username string) BurstVerdict {
	pair := roomID + ":" + username
	lastKey := "chat:last:" + pair

	if verdict, ok := b.checkInterval(ctx, lastKey); !ok {
		return verdict
	}

	short, err := b.limiter.Check(ctx, "chat:burst:short:"+pair, b.cfg.ShortWindow, b.cfg.ShortLimit)
	if err != nil {
		b.log.Warn("burst short-window check failed, allowing", "room", roomID, "error", err)
	} else if !short.Allowed {
		return BurstVerdict{RetryAfter: time.Duration(short.ResetSeconds) * time.Second}
	}

	long, err := b.limiter.Check(ctx, "chat:burst:long:"+pair, b.cfg.LongWindow, b.cfg.LongLimit)
	if err != nil {
		b.log.Warn("burst long-window check failed, allowing", "room", roomID, "error", err)
	} else if !long.Allowed {
		return BurstVerdict{RetryAfter: time.Duration(long.ResetSeconds) * time.Second}
	}

	return BurstVerdict{Allowed: true}
}

// Record stamps the send time for the next interval check. The
// timestamp expires with the long window; a stale pair costs nothing.
func (b *BurstGuard) Record(ctx context.Context, roomID, username string) {
	lastKey := "chat:last:" + roomID + ":" + username
	ts := strconv.FormatInt(b.now().UnixMilli(), 10)
	if err := b.store.Set(ctx, lastKey, ts, b.cfg.LongWindow); err != nil {
		b.log.Warn("burst timestamp write failed", "room", roomID, "error", err)
	}
}

func (b *BurstGuard) checkInterval(ctx context.Context, lastKey string) (BurstVerdict, bool) {
	raw, found, err := b.store.Get(ctx, lastKey)
	if err != nil {
		b.log.Warn("burst interval read failed, allowing", "key", lastKey, "error", err)
		return BurstVerdict{}, true
	}
	if !found {
		return BurstVerdict{}, true
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// Malformed timestamp is treated as absent.
		return BurstVerdict{}, true
	}
	since := b.now().Sub(time.UnixMilli(ms))
	if since < b.cfg.MinInterval {
		return BurstVerdict{RetryAfter: b.cfg.MinInterval - since}, false
	}
	return BurstVerdict{}, true
}
