// Package chain 通过以太坊 RPC 读取链上状态
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"marketplace-core/internal/ledger"
	"marketplace-core/pkg/cache"
	"marketplace-core/pkg/logger"
)

const stakingABI = `[{"type":"function","name":"stakedBalanceOf","stateMutability":"view",
"inputs":[{"name":"account","type":"address"}],
"outputs":[{"name":"","type":"uint256"}]}]`

var stakingMethods abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(stakingABI))
	if err != nil {
		panic(err)
	}
	stakingMethods = parsed
}

// Dial 连接 RPC 节点
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc %s: %w", rpcURL, err)
	}
	return client, nil
}

// EthStaking 调用质押合约的 stakedBalanceOf(address)
type EthStaking struct {
	caller   ethereum.ContractCaller
	contract common.Address
}

func NewEthStaking(caller ethereum.ContractCaller, contract common.Address) *EthStaking {
	return &EthStaking{caller: caller, contract: contract}
}

func (s *EthStaking) StakedBalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	input, err := stakingMethods.Pack("stakedBalanceOf", account)
	if err != nil {
		return nil, err
	}
	out, err := s.caller.CallContract(ctx, ethereum.CallMsg{To: &s.contract, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("call stakedBalanceOf(%s): %w", account.Hex(), err)
	}
	values, err := stakingMethods.Unpack("stakedBalanceOf", out)
	if err != nil {
		return nil, fmt.Errorf("unpack stakedBalanceOf: %w", err)
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected stakedBalanceOf output %T", values[0])
	}
	return balance, nil
}

// CachedStaking 质押余额读缓存。费率只依赖档位，短暂的旧值可以接受。
type CachedStaking struct {
	inner ledger.Staking
	cache cache.Cache
	ttl   time.Duration
}

func NewCachedStaking(inner ledger.Staking, c cache.Cache, ttl time.Duration) *CachedStaking {
	return &CachedStaking{inner: inner, cache: c, ttl: ttl}
}

func stakeCacheKey(account common.Address) string {
	return "stake:" + strings.ToLower(account.Hex())
}

func (s *CachedStaking) StakedBalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	key := stakeCacheKey(account)
	var cached string
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		if v, ok := new(big.Int).SetString(cached, 10); ok {
			return v, nil
		}
	}

	balance, err := s.inner.StakedBalanceOf(ctx, account)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, balance.String(), s.ttl); err != nil {
		logger.Warn("写入质押缓存失败", zap.String("account", account.Hex()), zap.Error(err))
	}
	return balance, nil
}

// Invalidate 质押变化时主动失效
func (s *CachedStaking) Invalidate(ctx context.Context, account common.Address) error {
	return s.cache.Delete(ctx, stakeCacheKey(account))
}
