package lockout

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	platformredis "doccontrol/internal/platform/redis"
	id "doccontrol/pkg/domain"
)

// Redis is the shared-state guard: the failure counter lives in a redis key
// with the lockout window as its TTL, so locks survive process restarts and
// hold across instances.
type Redis struct {
	client    *platformredis.Client
	threshold int
	window    time.Duration
}

func NewRedis(client *platformredis.Client, threshold int, window time.Duration) *Redis {
	return &Redis{client: client, threshold: threshold, window: window}
}

func lockKey(userID id.UserID) string {
	return "signature_lockout:" + userID.String()
}

func (r *Redis) Locked(ctx context.Context, userID id.UserID) (bool, error) {
	count, err := r.client.Get(ctx, lockKey(userID)).Int()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read lockout counter: %w", err)
	}
	return count >= r.threshold, nil
}

func (r *Redis) RegisterFailure(ctx context.Context, userID id.UserID) (bool, error) {
	key := lockKey(userID)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("increment lockout counter: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, r.window).Err(); err != nil {
			return false, fmt.Errorf("set lockout window: %w", err)
		}
	}
	return count >= int64(r.threshold), nil
}

func (r *Redis) Reset(ctx context.Context, userID id.UserID) error {
	if err := r.client.Del(ctx, lockKey(userID)).Err(); err != nil {
		return fmt.Errorf("clear lockout counter: %w", err)
	}
	return nil
}
