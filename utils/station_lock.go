package utils

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"charge-queue/internal/status"
)

// releaseScript deletes the lock key only when it still holds our token, so
// an expired lock reacquired by another caller is never released by us.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

// StationLock serializes queue mutations per station id. A station's queue is
// the unit of mutual exclusion; operations on different stations proceed in
// parallel.
type StationLock struct {
	redis      *redis.Client
	ttl        time.Duration
	wait       time.Duration
	retryDelay time.Duration
}

func NewStationLock(redisClient *redis.Client, ttl, wait, retryDelay time.Duration) *StationLock {
	return &StationLock{
		redis:      redisClient,
		ttl:        ttl,
		wait:       wait,
		retryDelay: retryDelay,
	}
}

// Acquire blocks until the station lock is held or the wait budget runs out,
// in which case it returns ErrConcurrencyConflict. The returned func releases
// the lock and must be called exactly once.
func (l *StationLock) Acquire(ctx context.Context, stationID string) (func(), error) {
	token, err := GenerateCode(8)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("lock:station:%s", stationID)
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.redis.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire station lock: %w", err)
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}

		if time.Now().After(deadline) {
			return nil, status.ErrConcurrencyConflict
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}
}

func (l *StationLock) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := l.redis.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
		// The key expires on its own; the next acquire just waits it out.
		slog.Warn("failed to release station lock", "key", key, "error", err)
	}
}
