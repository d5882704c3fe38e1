// Package fee 根据质押余额解析市场费率和铸造费率。
package fee

import (
	"fmt"
	"math/big"
	"sort"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"marketplace-core/pkg/config"
	"marketplace-core/pkg/errno"
)

// MaxBps 100%
const MaxBps = 10000

// TokenDecimals 质押代币精度
const TokenDecimals = 18

// Tier 质押达到 MinimumStake 时适用的费率
type Tier struct {
	MinimumStake      *big.Int
	MarketplaceFeeBps uint32
	MintFeeBps        uint32
}

// Table 按 MinimumStake 升序排列，构造后不可变
type Table struct {
	tiers []Tier
}

// NewTable 校验并构造费率表。
// 要求: 存在 MinimumStake=0 的基础档位；门槛严格递增；bps <= 10000；
// 质押越多费率不升高。
func NewTable(tiers []Tier) (*Table, error) {
	if len(tiers) == 0 {
		return nil, errno.ErrInvalidFeeTable.WithMessage("empty table")
	}

	copied := make([]Tier, len(tiers))
	for i, t := range tiers {
		if t.MinimumStake == nil || t.MinimumStake.Sign() < 0 {
			return nil, errno.ErrInvalidFeeTable.WithMessage(fmt.Sprintf("tier %d: minimum stake must be >= 0", i))
		}
		if t.MarketplaceFeeBps > MaxBps || t.MintFeeBps > MaxBps {
			return nil, errno.ErrInvalidFeeTable.WithMessage(fmt.Sprintf("tier %d: bps above %d", i, MaxBps))
		}
		copied[i] = Tier{
			MinimumStake:      new(big.Int).Set(t.MinimumStake),
			MarketplaceFeeBps: t.MarketplaceFeeBps,
			MintFeeBps:        t.MintFeeBps,
		}
	}

	if copied[0].MinimumStake.Sign() != 0 {
		return nil, errno.ErrInvalidFeeTable.WithMessage("first tier must have minimum stake 0")
	}
	for i := 1; i < len(copied); i++ {
		prev, cur := copied[i-1], copied[i]
		if cur.MinimumStake.Cmp(prev.MinimumStake) <= 0 {
			return nil, errno.ErrInvalidFeeTable.WithMessage(fmt.Sprintf("tier %d: thresholds must be strictly ascending", i))
		}
		if cur.MarketplaceFeeBps > prev.MarketplaceFeeBps || cur.MintFeeBps > prev.MintFeeBps {
			return nil, errno.ErrInvalidFeeTable.WithMessage(fmt.Sprintf("tier %d: fees must not increase with stake", i))
		}
	}
	return &Table{tiers: copied}, nil
}

// Lookup 返回 MinimumStake <= staked 的最高档位，nil 或负数按 0 处理
func (t *Table) Lookup(staked *big.Int) Tier {
	if staked == nil || staked.Sign() < 0 {
		staked = new(big.Int)
	}
	// 第一个门槛 > staked 的位置，前一个即目标档位
	idx := sort.Search(len(t.tiers), func(i int) bool {
		return t.tiers[i].MinimumStake.Cmp(staked) > 0
	})
	return t.tiers[idx-1]
}

// Tiers 返回副本
func (t *Table) Tiers() []Tier {
	out := make([]Tier, len(t.tiers))
	for i, tier := range t.tiers {
		out[i] = Tier{
			MinimumStake:      new(big.Int).Set(tier.MinimumStake),
			MarketplaceFeeBps: tier.MarketplaceFeeBps,
			MintFeeBps:        tier.MintFeeBps,
		}
	}
	return out
}

// Resolver 持有当前费率表，管理员可整体替换
type Resolver struct {
	table atomic.Pointer[Table]
}

func NewResolver(table *Table) *Resolver {
	r := &Resolver{}
	r.table.Store(table)
	return r
}

// ResolveFees 纯查询，无副作用
func (r *Resolver) ResolveFees(staked *big.Int) (marketplaceFeeBps, mintFeeBps uint32) {
	tier := r.table.Load().Lookup(staked)
	return tier.MarketplaceFeeBps, tier.MintFeeBps
}

func (r *Resolver) Tier(staked *big.Int) Tier {
	return r.table.Load().Lookup(staked)
}

func (r *Resolver) Table() *Table {
	return r.table.Load()
}

// Replace 整表替换，正在进行的查询看到的要么是旧表要么是新表
func (r *Resolver) Replace(table *Table) {
	r.table.Store(table)
}

// ApplyBps 计算 amount 的 bps 份额 (向下取整) 和剩余部分
func ApplyBps(amount *big.Int, bps uint32) (fee, net *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return new(big.Int), new(big.Int)
	}
	fee = new(big.Int).Mul(amount, big.NewInt(int64(bps)))
	fee.Quo(fee, big.NewInt(MaxBps))
	net = new(big.Int).Sub(amount, fee)
	return fee, net
}

// ToBaseUnits 将十进制代币数量 ("1000", "0.5") 转换为 18 位精度的整数
func ToBaseUnits(amount string) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid decimal %q: %w", amount, err)
	}
	scaled := d.Shift(TokenDecimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("decimal %q has more than %d fractional digits", amount, TokenDecimals)
	}
	return scaled.BigInt(), nil
}

// FromBaseUnits 18 位精度整数 -> 十进制字符串
func FromBaseUnits(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -TokenDecimals).String()
}

// TableFromConfig 从配置构造费率表
func TableFromConfig(cfg config.FeesConfig) (*Table, error) {
	tiers := make([]Tier, 0, len(cfg.Tiers))
	for i, c := range cfg.Tiers {
		stake, err := ToBaseUnits(c.MinimumStake)
		if err != nil {
			return nil, errno.ErrInvalidFeeTable.WithMessage(fmt.Sprintf("tier %d: %v", i, err))
		}
		tiers = append(tiers, Tier{
			MinimumStake:      stake,
			MarketplaceFeeBps: c.MarketplaceFeeBps,
			MintFeeBps:        c.MintFeeBps,
		})
	}
	return NewTable(tiers)
}
