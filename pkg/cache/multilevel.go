package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"marketplace-core/pkg/logger"
)

// MultiLevelCache 多级缓存 (L1: Memory, L2: Redis)
type MultiLevelCache struct {
	local  Cache
	remote Cache
}

func NewMultiLevelCache(local, remote Cache) *MultiLevelCache {
	return &MultiLevelCache{local: local, remote: remote}
}

// Set L1 使用一半 TTL，减少多实例之间的脏读窗口
func (m *MultiLevelCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := m.local.Set(ctx, key, value, ttl/2); err != nil {
		logger.Warn("L1 缓存写入失败", zap.String("key", key), zap.Error(err))
	}
	return m.remote.Set(ctx, key, value, ttl)
}

func (m *MultiLevelCache) Get(ctx context.Context, key string, target interface{}) error {
	if err := m.local.Get(ctx, key, target); err == nil {
		return nil
	}

	err := m.remote.Get(ctx, key, target)
	if err != nil {
		return err
	}
	// L2 命中 -> 短 TTL 回写 L1
	_ = m.local.Set(ctx, key, target, time.Minute)
	return nil
}

func (m *MultiLevelCache) Delete(ctx context.Context, key string) error {
	_ = m.local.Delete(ctx, key)
	return m.remote.Delete(ctx, key)
}
