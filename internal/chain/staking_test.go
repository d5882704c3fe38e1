package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-core/pkg/cache"
)

var (
	stakingContract = common.HexToAddress("0x0000000000000000000000000000000000005a4e")
	account         = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

type fakeCaller struct {
	balances map[common.Address]*big.Int
	calls    int
	err      error
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	args, err := stakingMethods.Methods["stakedBalanceOf"].Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	who := args[0].(common.Address)
	bal := f.balances[who]
	if bal == nil {
		bal = new(big.Int)
	}
	return stakingMethods.Methods["stakedBalanceOf"].Outputs.Pack(bal)
}

func TestEthStaking_StakedBalanceOf(t *testing.T) {
	caller := &fakeCaller{balances: map[common.Address]*big.Int{account: big.NewInt(42)}}
	s := NewEthStaking(caller, stakingContract)

	got, err := s.StakedBalanceOf(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, "42", got.String())

	got, err = s.StakedBalanceOf(context.Background(), common.HexToAddress("0x01"))
	require.NoError(t, err)
	assert.Equal(t, 0, got.Sign(), "未质押账户应返回 0")

	caller.err = errors.New("rpc down")
	_, err = s.StakedBalanceOf(context.Background(), account)
	assert.Error(t, err)
}

func TestCachedStaking(t *testing.T) {
	ctx := context.Background()
	caller := &fakeCaller{balances: map[common.Address]*big.Int{account: big.NewInt(7)}}
	s := NewCachedStaking(NewEthStaking(caller, stakingContract), cache.NewMemoryCache(time.Minute, time.Minute), time.Minute)

	for i := 0; i < 3; i++ {
		got, err := s.StakedBalanceOf(ctx, account)
		require.NoError(t, err)
		assert.Equal(t, "7", got.String())
	}
	assert.Equal(t, 1, caller.calls, "命中缓存时不应再调用 RPC")

	caller.balances[account] = big.NewInt(9)
	require.NoError(t, s.Invalidate(ctx, account))
	got, err := s.StakedBalanceOf(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, "9", got.String())
	assert.Equal(t, 2, caller.calls)
}
