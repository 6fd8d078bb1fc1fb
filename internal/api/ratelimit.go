package api

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateCounter 是限流需要的 Redis 命令子集，*redis.Client 满足该接口。
type RateCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// windowLimiter 是按客户端计数的固定窗口限流器。
// 窗口从该客户端的第一次请求开始，计数键过期即重置。
type windowLimiter struct {
	counter RateCounter
	prefix  string
	limit   int64
	window  time.Duration
}

func newWindowLimiter(counter RateCounter, prefix string, limit int, window time.Duration) *windowLimiter {
	if counter == nil || limit <= 0 || window <= 0 {
		return nil
	}
	return &windowLimiter{counter: counter, prefix: prefix, limit: int64(limit), window: window}
}

// allow 返回本次请求是否放行；拒绝时附带窗口剩余时间。
// nil 限流器总是放行。
func (l *windowLimiter) allow(ctx context.Context, subject string) (bool, time.Duration, error) {
	if l == nil {
		return true, 0, nil
	}
	key := l.prefix + subject
	count, err := l.counter.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		_ = l.counter.Expire(ctx, key, l.window).Err()
	}
	if count <= l.limit {
		return true, 0, nil
	}

	retryAfter, err := l.counter.TTL(ctx, key).Result()
	if err != nil || retryAfter <= 0 {
		// 键没有过期时间时补上，避免客户端被永久拒绝。
		_ = l.counter.Expire(ctx, key, l.window).Err()
		retryAfter = l.window
	}
	return false, retryAfter, nil
}
