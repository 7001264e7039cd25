package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSendLimiter caps how many messages a user may send per window, with a
// counter per user in Redis. It fails open: when Redis is unreachable the
// send goes through.
type RedisSendLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

func NewRedisSendLimiter(redisClient *redis.Client, limit int, window time.Duration) *RedisSendLimiter {
	return &RedisSendLimiter{
		redis:  redisClient,
		limit:  limit,
		window: window,
	}
}

func (l *RedisSendLimiter) Allow(ctx context.Context, userID int64) bool {
	key := fmt.Sprintf("send_limit:%d", userID)

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		log.Printf("send limiter unavailable: %v", err)
		return true
	}
	if count == 1 {
		l.redis.Expire(ctx, key, l.window)
	}

	return count <= int64(l.limit)
}
