package escrow

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-core/internal/ledger"
	"marketplace-core/pkg/clock"
	"marketplace-core/pkg/errno"
	"marketplace-core/pkg/utils/lock"
)

var (
	collection = common.HexToAddress("0x00000000000000000000000000000000000c0117")
	lender     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	renter     = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	stranger   = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	tokenID    = big.NewInt(1)
	start      = time.Unix(1_700_000_000, 0)
)

type fixture struct {
	ctx    context.Context
	clock  *clock.Fake
	tokens *ledger.MemoryTokenLedger
	store  *MemoryStore
	ledger *Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:    context.Background(),
		clock:  clock.NewFake(start),
		tokens: ledger.NewMemoryTokenLedger(),
		store:  NewMemoryStore(),
	}
	f.ledger = NewLedger(f.store, f.tokens, lock.NewMemoryKeyLocker(), f.clock)
	require.NoError(t, f.tokens.Mint(f.ctx, collection, lender, tokenID, 10, "ipfs://1"))
	return f
}

func (f *fixture) balance(holder common.Address, id *big.Int) uint64 {
	b, _ := f.tokens.BalanceOf(f.ctx, collection, holder, id)
	return b
}

func (f *fixture) rent(amount uint32, ttl time.Duration) (*Agreement, error) {
	return f.ledger.CreateRental(f.ctx, CreateParams{
		Lender:         lender,
		Renter:         renter,
		Collection:     collection,
		TokenID:        tokenID,
		Amount:         amount,
		ExpirationDate: f.clock.Now().Add(ttl).Unix(),
	})
}

func item(amount uint32) ReclaimItem {
	return ReclaimItem{Collection: collection, TokenID: tokenID, Amount: amount, Lender: lender, Renter: renter}
}

// 出租人持有 10 个，出租 4 个一小时；到期前回收失败，到期后回收成功，再次回收报已结算
func TestRentalLifecycle(t *testing.T) {
	f := newFixture(t)

	a, err := f.rent(4, time.Hour)
	require.NoError(t, err)
	assert.False(t, a.Settled)
	assert.Equal(t, uint64(6), f.balance(lender, tokenID))
	assert.Equal(t, uint64(4), f.balance(renter, tokenID))

	_, err = f.ledger.Reclaim(f.ctx, item(4))
	assert.ErrorIs(t, err, errno.ErrRentalNotExpired, "到期前不能回收")
	assert.Equal(t, uint64(4), f.balance(renter, tokenID))

	f.clock.Advance(time.Hour)

	settled, err := f.ledger.Reclaim(f.ctx, item(4))
	require.NoError(t, err, "到期时刻即可回收")
	assert.True(t, settled.Settled)
	require.NotNil(t, settled.SettledAt)
	assert.Equal(t, f.clock.Now(), *settled.SettledAt)
	assert.Equal(t, uint64(10), f.balance(lender, tokenID))
	assert.Equal(t, uint64(0), f.balance(renter, tokenID))

	_, err = f.ledger.Reclaim(f.ctx, item(4))
	assert.ErrorIs(t, err, errno.ErrAlreadySettled, "重复回收")
	assert.Equal(t, uint64(10), f.balance(lender, tokenID))

	got, err := f.ledger.Get(f.ctx, NewKey(collection, tokenID, renter))
	require.NoError(t, err)
	assert.True(t, got.Settled, "已结算记录保留")
}

func TestCreateRentalRejects(t *testing.T) {
	f := newFixture(t)

	_, err := f.rent(0, time.Hour)
	assert.ErrorIs(t, err, errno.ErrInvalidAmount)

	_, err = f.rent(4, 0)
	assert.ErrorIs(t, err, errno.ErrRentalExpirationPast, "到期时间必须严格晚于当前时间")

	_, err = f.rent(11, time.Hour)
	assert.ErrorIs(t, err, errno.ErrInsufficientBalance)

	_, err = f.rent(4, time.Hour)
	require.NoError(t, err)
	_, err = f.rent(2, time.Hour)
	assert.ErrorIs(t, err, errno.ErrDuplicateRental)

	assert.Equal(t, uint64(6), f.balance(lender, tokenID), "失败的创建不应移动单位")
	assert.Equal(t, uint64(4), f.balance(renter, tokenID))
}

func TestRentAgainAfterSettlement(t *testing.T) {
	f := newFixture(t)

	_, err := f.rent(4, time.Hour)
	require.NoError(t, err)
	f.clock.Advance(2 * time.Hour)
	_, err = f.ledger.Reclaim(f.ctx, item(4))
	require.NoError(t, err)

	_, err = f.rent(3, time.Hour)
	require.NoError(t, err, "结算后同一个 key 可以重新出租")

	active, err := f.store.Active(f.ctx, NewKey(collection, tokenID, renter))
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, uint32(3), active.Amount)
}

func TestReclaimRejects(t *testing.T) {
	f := newFixture(t)
	_, err := f.rent(4, time.Hour)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	tests := []struct {
		name string
		item ReclaimItem
		want error
	}{
		{"amount mismatch", item(3), errno.ErrAmountMismatch},
		{"wrong lender", ReclaimItem{Collection: collection, TokenID: tokenID, Amount: 4, Lender: stranger, Renter: renter}, errno.ErrNoSuchRental},
		{"unknown renter", ReclaimItem{Collection: collection, TokenID: tokenID, Amount: 4, Lender: lender, Renter: stranger}, errno.ErrNoSuchRental},
		{"unknown token", ReclaimItem{Collection: collection, TokenID: big.NewInt(2), Amount: 4, Lender: lender, Renter: renter}, errno.ErrNoSuchRental},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.Reclaim(f.ctx, tt.item)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, uint64(4), f.balance(renter, tokenID), "失败的回收不应移动单位")
		})
	}
}

func TestReclaimBatchValidationIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	id2 := big.NewInt(2)
	require.NoError(t, f.tokens.Mint(f.ctx, collection, lender, id2, 5, ""))

	_, err := f.rent(4, time.Hour)
	require.NoError(t, err)
	_, err = f.ledger.CreateRental(f.ctx, CreateParams{
		Lender: lender, Renter: renter, Collection: collection, TokenID: id2, Amount: 5,
		ExpirationDate: f.clock.Now().Add(3 * time.Hour).Unix(),
	})
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)

	// 第二项未到期，整批失败，第一项也不能被回收
	_, err = f.ledger.ReclaimBatch(f.ctx, []ReclaimItem{
		item(4),
		{Collection: collection, TokenID: id2, Amount: 5, Lender: lender, Renter: renter},
	})
	assert.ErrorIs(t, err, errno.ErrRentalNotExpired)
	assert.Equal(t, uint64(4), f.balance(renter, tokenID))
	assert.Equal(t, uint64(5), f.balance(renter, id2))

	f.clock.Advance(time.Hour)
	settled, err := f.ledger.ReclaimBatch(f.ctx, []ReclaimItem{
		item(4),
		{Collection: collection, TokenID: id2, Amount: 5, Lender: lender, Renter: renter},
	})
	require.NoError(t, err)
	assert.Len(t, settled, 2)
	assert.Equal(t, uint64(10), f.balance(lender, tokenID))
	assert.Equal(t, uint64(5), f.balance(lender, id2))

	n, _ := f.ledger.CountActive(f.ctx)
	assert.Zero(t, n)
}

func TestReclaimBatchRejectsMalformed(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.ReclaimBatch(f.ctx, nil)
	assert.ErrorIs(t, err, errno.ErrMalformedPayload)

	_, err = f.ledger.ReclaimBatch(f.ctx, []ReclaimItem{item(4), item(4)})
	assert.ErrorIs(t, err, errno.ErrMalformedPayload, "同一批次重复的租赁")
}

// flakyTokens 第 failAt 次 Transfer 返回错误
type flakyTokens struct {
	*ledger.MemoryTokenLedger
	calls  int
	failAt int
}

var errLedgerDown = errors.New("token ledger unavailable")

func (f *flakyTokens) Transfer(ctx context.Context, c, from, to common.Address, id *big.Int, amount uint64) error {
	f.calls++
	if f.calls == f.failAt {
		return errLedgerDown
	}
	return f.MemoryTokenLedger.Transfer(ctx, c, from, to, id, amount)
}

func TestReclaimBatchCommitRollback(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(start)
	mem := ledger.NewMemoryTokenLedger()
	tokens := &flakyTokens{MemoryTokenLedger: mem}
	store := NewMemoryStore()
	l := NewLedger(store, tokens, lock.NewMemoryKeyLocker(), clk)

	id2 := big.NewInt(2)
	require.NoError(t, mem.Mint(ctx, collection, lender, tokenID, 10, ""))
	require.NoError(t, mem.Mint(ctx, collection, lender, id2, 10, ""))
	for _, id := range []*big.Int{tokenID, id2} {
		_, err := l.CreateRental(ctx, CreateParams{
			Lender: lender, Renter: renter, Collection: collection, TokenID: id, Amount: 4,
			ExpirationDate: clk.Now().Add(time.Hour).Unix(),
		})
		require.NoError(t, err)
	}
	clk.Advance(time.Hour)

	// 已有 2 次创建转账，批量回收的第二次转账失败
	tokens.failAt = tokens.calls + 2
	_, err := l.ReclaimBatch(ctx, []ReclaimItem{
		{Collection: collection, TokenID: tokenID, Amount: 4, Lender: lender, Renter: renter},
		{Collection: collection, TokenID: id2, Amount: 4, Lender: lender, Renter: renter},
	})
	assert.ErrorIs(t, err, errLedgerDown, "协作方错误原样返回")

	for _, id := range []*big.Int{tokenID, id2} {
		b, _ := mem.BalanceOf(ctx, collection, renter, id)
		assert.Equal(t, uint64(4), b, "已提交的回收应被回滚")
		active, err := store.Active(ctx, NewKey(collection, id, renter))
		require.NoError(t, err)
		assert.NotNil(t, active, "记录应恢复为未结算")
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	_, err := f.rent(4, time.Hour)
	require.NoError(t, err)

	key := NewKey(collection, tokenID, renter)
	require.NoError(t, f.ledger.Cancel(f.ctx, key))
	assert.Equal(t, uint64(10), f.balance(lender, tokenID))

	_, err = f.ledger.Get(f.ctx, key)
	assert.ErrorIs(t, err, errno.ErrNoSuchRental, "撤销后不留记录")

	assert.ErrorIs(t, f.ledger.Cancel(f.ctx, key), errno.ErrNoSuchRental)
}

func TestListQueries(t *testing.T) {
	f := newFixture(t)
	other := common.HexToAddress("0x00000000000000000000000000000000000000d4")

	_, err := f.rent(2, time.Hour)
	require.NoError(t, err)
	_, err = f.ledger.CreateRental(f.ctx, CreateParams{
		Lender: lender, Renter: other, Collection: collection, TokenID: tokenID, Amount: 3,
		ExpirationDate: f.clock.Now().Add(2 * time.Hour).Unix(),
	})
	require.NoError(t, err)

	list, err := f.ledger.ListByLender(f.ctx, lender, false)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, renter, list[0].Renter, "按到期时间排序")

	expired, err := f.ledger.ListExpired(f.ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, expired)

	f.clock.Advance(90 * time.Minute)
	expired, err = f.ledger.ListExpired(f.ctx, 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, renter, expired[0].Renter)

	_, err = f.ledger.Reclaim(f.ctx, item(2))
	require.NoError(t, err)

	active, _ := f.ledger.ListByLender(f.ctx, lender, false)
	all, _ := f.ledger.ListByLender(f.ctx, lender, true)
	assert.Len(t, active, 1)
	assert.Len(t, all, 2)

	n, _ := f.ledger.CountActive(f.ctx)
	assert.Equal(t, int64(1), n)
}
