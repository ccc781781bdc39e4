package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// PinThrottle bounds PIN verification attempts per user over a sliding
// window. It is advisory: when Redis is unavailable the gate degrades to
// allowing attempts rather than locking everyone out.
type PinThrottle struct {
	redis       *redis.Client
	maxAttempts int
	window      time.Duration
}

func NewPinThrottle(redisClient *redis.Client, maxAttempts int, window time.Duration) *PinThrottle {
	return &PinThrottle{
		redis:       redisClient,
		maxAttempts: maxAttempts,
		window:      window,
	}
}

// Allow reports whether the user may attempt PIN verification.
func (t *PinThrottle) Allow(ctx context.Context, userID int) error {
	if t.redis == nil {
		return nil
	}

	count, err := t.redis.Get(ctx, t.key(userID)).Int()
	if err != nil && err != redis.Nil {
		log.Printf("[PIN] Throttle lookup failed for user %d: %v", userID, err)
		return nil
	}
	if count >= t.maxAttempts {
		return ErrTooManyPinAttempts
	}
	return nil
}

// RecordFailure counts one failed attempt; the window starts on the first
// failure.
func (t *PinThrottle) RecordFailure(ctx context.Context, userID int) {
	if t.redis == nil {
		return
	}

	key := t.key(userID)
	count, err := t.redis.Incr(ctx, key).Result()
	if err != nil {
		log.Printf("[PIN] Throttle increment failed for user %d: %v", userID, err)
		return
	}
	if count == 1 {
		t.redis.Expire(ctx, key, t.window)
	}
}

// Reset clears the counter after a successful verification.
func (t *PinThrottle) Reset(ctx context.Context, userID int) {
	if t.redis == nil {
		return
	}
	t.redis.Del(ctx, t.key(userID))
}

func (t *PinThrottle) key(userID int) string {
	return fmt.Sprintf("pin_attempts:%d", userID)
}
