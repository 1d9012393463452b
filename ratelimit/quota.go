package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chat-rooms/auth"
	"chat-rooms/errors"
)

// IdentityClass selects which quota applies to a caller.
type IdentityClass string

const (
	IdentityAnonymous     IdentityClass = "anonymous"
	IdentityAuthenticated IdentityClass = "authenticated"
	IdentityBypass        IdentityClass = "bypass"
)

type QuotaConfig struct {
	AnonymousLimit      int64
	AnonymousWindow     time.Duration
	AuthenticatedLimit  int64
	AuthenticatedWindow time.Duration
	// BypassUsername skips counting entirely, but only with a verified
	// token. Claiming it without one is a hard denial.
	BypassUsername string
}

type QuotaResult struct {
	Result
	Class IdentityClass `json:"class"`
}

// QuotaChecker guards privileged features. Store failures here fail
// closed: an uncounted privileged call is worse than a refused one.
type QuotaChecker struct {
	limiter ILimiter
	verify  auth.TokenVerifier
	cfg     QuotaConfig
	log     *slog.Logger
}

func NewQuotaChecker(limiter ILimiter, verify auth.TokenVerifier, cfg QuotaConfig, log *slog.Logger) *QuotaChecker {
	return &QuotaChecker{limiter: limiter, verify: verify, cfg: cfg, log: log}
}

// Check classifies the caller and applies the matching quota.
// username may be empty (anonymous, keyed by clientIP). token is only
// consulted for the bypass identity.
func (q *QuotaChecker) Check(ctx context.Context, username, clientIP, token string) (QuotaResult, error) {
	if q.cfg.BypassUsername != "" && username == q.cfg.BypassUsername {
		identity, err := q.verify(token)
		if err != nil || identity != username {
			// Spoofed bypass claim: deny outright rather than downgrade,
			// otherwise an unauthenticated header grants the higher quota.
			return QuotaResult{Class: IdentityBypass}, fmt.Errorf("%w: bypass identity requires a valid token", errors.ErrUnauthorized)
		}
		return QuotaResult{
			Result: Result{Allowed: true},
			Class:  IdentityBypass,
		}, nil
	}

	class := IdentityAnonymous
	key := "quota:ip:" + clientIP
	limit, window := q.cfg.AnonymousLimit, q.cfg.AnonymousWindow
	if username != "" {
		class = IdentityAuthenticated
		key = "quota:user:" + username
		limit, window = q.cfg.AuthenticatedLimit, q.cfg.AuthenticatedWindow
	}

	res, err := q.limiter.Check(ctx, key, window, limit)
	if err != nil {
		// Fail closed.
		q.log.Error("quota check failed, denying", "key", key, "error", err)
		return QuotaResult{Class: class}, err
	}
	return QuotaResult{Result: res, Class: class}, nil
}
