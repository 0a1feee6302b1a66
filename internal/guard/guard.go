// Package guard gates entry into the transfer engine: it rejects duplicate
// submissions of the same idempotency key and throttles per-actor request
// rate. Both checks are single-key redis operations, so no cross-key
// coordination is needed even under concurrent requests from one actor.
package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

var (
	ErrDuplicateRequest      = errors.New("duplicate request")
	ErrRateLimited           = errors.New("too many requests")
	ErrMissingIdempotencyKey = errors.New("idempotency key is required")
)

const (
	idempotencyPrefix = "idempotency:"
	ratePrefix        = "rate_limit:"
)

// rateScript increments the per-actor counter and attaches the window
// expiry in the same atomic step. INCR followed by a separate EXPIRE would
// leak a counter without a TTL if the process died between the two calls.
var rateScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// releaseScript deletes the reservation only if it still belongs to the
// caller, so a request can never evict a reservation it does not hold.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Guard struct {
	client         *redis.Client
	idempotencyTTL time.Duration
	rateWindow     time.Duration
	rateLimit      int64
}

func New(client *redis.Client, idempotencyTTL, rateWindow time.Duration, rateLimit int64) *Guard {
	return &Guard{
		client:         client,
		idempotencyTTL: idempotencyTTL,
		rateWindow:     rateWindow,
		rateLimit:      rateLimit,
	}
}

// Reserve marks the key as in flight. SETNX guarantees at most one caller
// wins for the lifetime of the TTL. owner identifies the winning request so
// only it can release the reservation on failure.
func (g *Guard) Reserve(ctx context.Context, key, owner string) error {
	if key == "" {
		return ErrMissingIdempotencyKey
	}

	ok, err := g.client.SetNX(ctx, idempotencyPrefix+key, owner, g.idempotencyTTL).Result()
	if err != nil {
		return fmt.Errorf("reserve idempotency key: %w", err)
	}
	if !ok {
		return ErrDuplicateRequest
	}
	return nil
}

// Release frees a reservation after a failed attempt so the client may
// retry with the same key. Compare-and-delete: a reservation held by a
// different request stays untouched.
func (g *Guard) Release(ctx context.Context, key, owner string) error {
	return releaseScript.Run(ctx, g.client, []string{idempotencyPrefix + key}, owner).Err()
}

// Allow counts the request against the actor's rate window and fails once
// the post-increment count exceeds the limit.
func (g *Guard) Allow(ctx context.Context, actorID int64) error {
	key := fmt.Sprintf("%s%d", ratePrefix, actorID)
	count, err := rateScript.Run(ctx, g.client, []string{key}, int(g.rateWindow.Seconds())).Int64()
	if err != nil {
		return fmt.Errorf("rate counter: %w", err)
	}
	if count > g.rateLimit {
		return ErrRateLimited
	}
	return nil
}
