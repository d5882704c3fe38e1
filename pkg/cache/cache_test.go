package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Account string `json:"account"`
	Stake   string `json:"stake"`
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	var got entry
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss)

	in := entry{Account: "0xa1", Stake: "1000"}
	require.NoError(t, c.Set(ctx, "k", in, time.Minute))
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, in, got)

	require.NoError(t, c.Delete(ctx, "k"))
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	require.NoError(t, c.Set(ctx, "k", entry{Stake: "1"}, 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	var got entry
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss, "过期后应该未命中")
}

func TestMultiLevelCache(t *testing.T) {
	ctx := context.Background()
	l1 := NewMemoryCache(time.Minute, time.Minute)
	l2 := NewMemoryCache(time.Minute, time.Minute)
	m := NewMultiLevelCache(l1, l2)

	in := entry{Account: "0xb0", Stake: "5"}
	require.NoError(t, m.Set(ctx, "k", in, time.Minute))

	// 清掉 L1，应从 L2 读取并回写
	require.NoError(t, l1.Delete(ctx, "k"))
	var got entry
	require.NoError(t, m.Get(ctx, "k", &got))
	assert.Equal(t, in, got)

	var fromL1 entry
	require.NoError(t, l1.Get(ctx, "k", &fromL1), "L2 命中后应回写 L1")
	assert.Equal(t, in, fromL1)

	require.NoError(t, m.Delete(ctx, "k"))
	assert.ErrorIs(t, m.Get(ctx, "k", &got), ErrCacheMiss)
}
