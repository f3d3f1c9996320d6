package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long an idle run's set survives in redis.
const DefaultTTL = 7 * 24 * time.Hour

// RedisTracker stores each run's set in redis so large campaigns do not grow
// process memory and the set outlives a restart.
type RedisTracker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTracker(addr, password string, db int) *RedisTracker {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisTracker{client: rdb, ttl: DefaultTTL}
}

func runKey(runID string) string {
	return fmt.Sprintf("campaign_run:%s:attempted", runID)
}

func (r *RedisTracker) MarkAttempted(ctx context.Context, runID, address string) (bool, error) {
	key := runKey(runID)

	pipe := r.client.TxPipeline()
	added := pipe.SAdd(ctx, key, address)
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis dedup error: %w", err)
	}
	return added.Val() == 1, nil
}

func (r *RedisTracker) Forget(ctx context.Context, runID string) error {
	if err := r.client.Del(ctx, runKey(runID)).Err(); err != nil {
		return fmt.Errorf("redis dedup error: %w", err)
	}
	return nil
}

func (r *RedisTracker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisTracker) Close() error {
	return r.client.Close()
}

var _ Tracker = (*RedisTracker)(nil)
