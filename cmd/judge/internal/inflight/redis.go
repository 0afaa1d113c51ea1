package inflight

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "judge-inflight-"

type RedisGuardConfig struct {
	RedisClient *redis.Client
	// Claims expire on their own so a crashed replica cannot hold a submission forever
	TTL time.Duration
	// Reported result when redis cannot be reached
	FailOpen bool
}

// Guard shared by every judging replica
type RedisGuard struct {
	db       *redis.Client
	ttl      time.Duration
	failOpen bool
}

var _ Guard = (*RedisGuard)(nil)

func NewRedisGuard(config RedisGuardConfig) *RedisGuard {
	ttl := config.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	return &RedisGuard{
		db:       config.RedisClient,
		ttl:      ttl,
		failOpen: config.FailOpen,
	}
}

func (g *RedisGuard) Acquire(ctx context.Context, submissionID string) (bool, error) {
	ok, err := g.db.SetNX(ctx, keyPrefix+submissionID, time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return g.failOpen, err
	}
	return ok, nil
}

func (g *RedisGuard) Release(ctx context.Context, submissionID string) error {
	return g.db.Del(ctx, keyPrefix+submissionID).Err()
}
