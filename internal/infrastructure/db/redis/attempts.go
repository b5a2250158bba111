package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultLockoutWindow = 5 * time.Minute

// AttemptTracker counts failed logins per account in Redis.
// Key format: login_failures:<sha256(lowercased email)>
//
// The counter expires LockoutWindow after the first failure of a streak.
// It is informational only and never refuses a login.
type AttemptTracker struct {
	client *redis.Client
	window time.Duration
}

// NewAttemptTracker creates an AttemptTracker wrapping the given Redis client.
func NewAttemptTracker(client *redis.Client, window time.Duration) *AttemptTracker {
	if window <= 0 {
		window = defaultLockoutWindow
	}
	return &AttemptTracker{client: client, window: window}
}

// RecordFailure increments the failure counter and returns the new count.
func (a *AttemptTracker) RecordFailure(ctx context.Context, email string) (int64, error) {
	key := failureKey(email)

	pipe := a.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, a.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("record login failure: %w", err)
	}
	return incr.Val(), nil
}

// Reset clears the counter after a successful login.
func (a *AttemptTracker) Reset(ctx context.Context, email string) error {
	if err := a.client.Del(ctx, failureKey(email)).Err(); err != nil {
		return fmt.Errorf("reset login failures: %w", err)
	}
	return nil
}

// Failures returns the current failure count, zero when none are recorded.
func (a *AttemptTracker) Failures(ctx context.Context, email string) (int64, error) {
	n, err := a.client.Get(ctx, failureKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("read login failures: %w", err)
	}
	return n, nil
}

func failureKey(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return "login_failures:" + hex.EncodeToString(sum[:])
}
