// Package ledger 定义市场核心调用的外部协作方能力 (代币账本、支付资产、质押、铸造权限)，
// 并提供进程内实现。
package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenLedger 半同质化代币账本。每次调用自身是原子的。
type TokenLedger interface {
	Mint(ctx context.Context, collection, to common.Address, id *big.Int, amount uint64, uri string) error
	Transfer(ctx context.Context, collection, from, to common.Address, id *big.Int, amount uint64) error
	// Burn 仅用于补偿已铸造的单位
	Burn(ctx context.Context, collection, from common.Address, id *big.Int, amount uint64) error
	BalanceOf(ctx context.Context, collection, holder common.Address, id *big.Int) (uint64, error)
}

// PaymentAsset 同质化支付代币
type PaymentAsset interface {
	// TransferFrom spender 使用 from 的授权额度转账
	TransferFrom(ctx context.Context, spender, from, to common.Address, amount *big.Int) error
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	BalanceOf(ctx context.Context, holder common.Address) (*big.Int, error)
}

// PaymentRegistry 按地址解析支付资产
type PaymentRegistry interface {
	Asset(address common.Address) (PaymentAsset, error)
}

// Staking 质押余额查询
type Staking interface {
	StakedBalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
}

// MinterRegistry 铸造权限查询
type MinterRegistry interface {
	CanMint(ctx context.Context, collection, account common.Address) (bool, error)
}
