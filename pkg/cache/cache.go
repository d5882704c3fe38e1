package cache

import (
	"context"
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache 通用缓存接口，值以 JSON 形式保存
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Get 未命中时返回 ErrCacheMiss
	Get(ctx context.Context, key string, target interface{}) error
	Delete(ctx context.Context, key string) error
}
