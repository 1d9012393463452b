//go:generate go run go.uber.org/mock/mockgen -source=client.go -destination=../mocks/mock_store_client.go -package=mocks

// Package store exposes the narrow key-value surface the coordination
// core consumes. Every component receives a Client explicitly; there is
// no ambient singleton. Correctness of the callers relies on each single
// operation being atomic, never on atomicity across operations.
package store

import (
	"context"
	"time"
)

// ZMember is one entry of a recency-ordered collection.
type ZMember struct {
	Member string
	Score  float64
}

type Client interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes value, with an expiry when ttl > 0.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Del removes all given keys in a single batched command.
	Del(ctx context.Context, keys ...string) error

	// Incr atomically increments the integer at key and returns the
	// post-increment value, creating the key at 1 if absent.
	Incr(ctx context.Context, key string) (int64, error)
	// Expire sets a ttl on an existing key; false if the key is absent.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// TTL returns the remaining lifetime; a non-positive duration means
	// no expiry or no key.
	TTL(ctx context.Context, key string) (time.Duration, error)

	LPush(ctx context.Context, key string, values ...string) error
	LTrim(ctx context.Context, key string, start, stop int64) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	// LRem removes up to count occurrences of value, head-first.
	LRem(ctx context.Context, key string, count int64, value string) (int64, error)

	ZAdd(ctx context.Context, key, member string, score float64) error
	// ZRangeWithScores returns the whole collection in ascending score order.
	ZRangeWithScores(ctx context.Context, key string) ([]ZMember, error)
	// ZRem returns how many of the given members were actually removed.
	ZRem(ctx context.Context, key string, members ...string) (int64, error)

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) (int64, error)
	SMembers(ctx context.Context, key string) ([]string, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)

	// Publish emits a fire-and-forget payload to subscribers of channel.
	Publish(ctx context.Context, channel, payload string) error

	Close() error
}
