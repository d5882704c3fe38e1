package replay

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-core/internal/metatx"
	"marketplace-core/pkg/clock"
	"marketplace-core/pkg/errno"
)

func TestFingerprint(t *testing.T) {
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	a := common.HexToAddress("0xa1")
	b := common.HexToAddress("0xb2")

	assert.Equal(t, Fingerprint(metatx.KindMint, a, payload), Fingerprint(metatx.KindMint, a, payload))
	assert.NotEqual(t, Fingerprint(metatx.KindMint, a, payload), Fingerprint(metatx.KindRent, a, payload))
	assert.NotEqual(t, Fingerprint(metatx.KindMint, a, payload), Fingerprint(metatx.KindMint, a, payload[:3]))
	assert.NotEqual(t, Fingerprint(metatx.KindMint, a, payload), Fingerprint(metatx.KindMint, b, payload), "不同签名者的相同载荷是不同请求")
}

func TestNewConsumption(t *testing.T) {
	payload, err := metatx.EncodeRent(metatx.RentParams{
		Collection:     common.HexToAddress("0xc0"),
		TokenID:        big.NewInt(1),
		Amount:         10,
		Price:          big.NewInt(100),
		ExpirationDate: 2_000_000_000,
	}, false)
	require.NoError(t, err)
	req, err := metatx.Decode(metatx.KindRent, payload, metatx.LengthHeader(payload))
	require.NoError(t, err)

	signer := common.HexToAddress("0xa1")
	c := NewConsumption(req, signer)
	assert.Equal(t, Fingerprint(metatx.KindRent, signer, payload), c.Fingerprint)
	assert.Equal(t, signer, c.Signer)
	assert.Equal(t, time.Unix(2_000_000_000, 0), c.ExpiresAt)
}

func TestMemoryGuard(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard()
	c := Consumption{Fingerprint: "f1", Kind: metatx.KindMint}

	require.NoError(t, g.Consume(ctx, c))
	assert.ErrorIs(t, g.Consume(ctx, c), errno.ErrReplayedRequest, "第二次消费应被拒绝")

	ok, _ := g.Consumed(ctx, "f1")
	assert.True(t, ok)

	require.NoError(t, g.Release(ctx, "f1"))
	ok, _ = g.Consumed(ctx, "f1")
	assert.False(t, ok)
	assert.NoError(t, g.Consume(ctx, c), "释放后可以重新消费")
}

func TestMemoryGuardConcurrent(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Consume(ctx, Consumption{Fingerprint: "same"}) == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins, "并发消费同一指纹只能成功一次")
}

func TestRedisGuardTTL(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	clk := clock.NewFake(now)
	g := NewRedisGuard(nil, time.Hour, clk)

	assert.Equal(t, 2*time.Hour, g.ttl(now.Add(time.Hour)))
	assert.Equal(t, 30*time.Minute, g.ttl(now.Add(-30*time.Minute)))
	assert.Equal(t, time.Second, g.ttl(now.Add(-2*time.Hour)), "TTL 至少 1 秒")

	// TTL 跟随注入的时钟而不是系统时间
	clk.Set(now.Add(30 * time.Minute))
	assert.Equal(t, 90*time.Minute, g.ttl(now.Add(time.Hour)))
}
