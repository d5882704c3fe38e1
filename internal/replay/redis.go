package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"marketplace-core/pkg/clock"
	"marketplace-core/pkg/errno"
)

const redisKeyPrefix = "metatx:consumed:"

// RedisGuard SETNX 实现。记录保留到请求过期后再加 grace，
// 过期的请求本身会被时间校验拒绝，所以之后无需继续占用内存。
type RedisGuard struct {
	client *redis.Client
	grace  time.Duration
	clock  clock.Clock
}

// NewRedisGuard clk 与核心使用同一时间源，nil 时用系统时钟
func NewRedisGuard(client *redis.Client, grace time.Duration, clk clock.Clock) *RedisGuard {
	if clk == nil {
		clk = clock.System
	}
	return &RedisGuard{client: client, grace: grace, clock: clk}
}

func (g *RedisGuard) ttl(expiresAt time.Time) time.Duration {
	ttl := expiresAt.Sub(g.clock.Now()) + g.grace
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (g *RedisGuard) Consume(ctx context.Context, c Consumption) error {
	ok, err := g.client.SetNX(ctx, redisKeyPrefix+c.Fingerprint, c.Signer.Hex(), g.ttl(c.ExpiresAt)).Result()
	if err != nil {
		return errno.InternalServerError.WithMessage(fmt.Sprintf("redis consume: %v", err))
	}
	if !ok {
		return errno.ErrReplayedRequest
	}
	return nil
}

func (g *RedisGuard) Release(ctx context.Context, fingerprint string) error {
	return g.client.Del(ctx, redisKeyPrefix+fingerprint).Err()
}

func (g *RedisGuard) Consumed(ctx context.Context, fingerprint string) (bool, error) {
	err := g.client.Get(ctx, redisKeyPrefix+fingerprint).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
