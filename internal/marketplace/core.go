// Package marketplace 市场核心: 校验并执行中继的元交易 (mint / rent)，
// 以及到期租赁的批量回收。每个公开操作要么全部生效，要么不留任何状态变化。
package marketplace

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"marketplace-core/internal/escrow"
	"marketplace-core/internal/event"
	"marketplace-core/internal/fee"
	"marketplace-core/internal/ledger"
	"marketplace-core/internal/metatx"
	"marketplace-core/internal/replay"
	"marketplace-core/pkg/clock"
	"marketplace-core/pkg/errno"
	"marketplace-core/pkg/logger"
	"marketplace-core/pkg/monitor"
	"marketplace-core/pkg/signature"
)

// Config 市场自身的账户
type Config struct {
	// Address 市场托管账户，作为 TransferFrom 的 spender 和中转收款方
	Address common.Address
	// FeeRecipient 平台费收款地址
	FeeRecipient common.Address
}

// Deps 核心依赖的协作方
type Deps struct {
	Tokens   ledger.TokenLedger
	Payments ledger.PaymentRegistry
	Staking  ledger.Staking
	Minters  ledger.MinterRegistry
	Fees     *fee.Resolver
	Escrow   *escrow.Ledger
	Replay   replay.Guard
	Events   event.Publisher
	Clock    clock.Clock
}

type Core struct {
	cfg      Config
	tokens   ledger.TokenLedger
	payments ledger.PaymentRegistry
	staking  ledger.Staking
	minters  ledger.MinterRegistry
	fees     *fee.Resolver
	escrow   *escrow.Ledger
	replay   replay.Guard
	events   event.Publisher
	clock    clock.Clock
}

func NewCore(cfg Config, deps Deps) *Core {
	c := &Core{
		cfg:      cfg,
		tokens:   deps.Tokens,
		payments: deps.Payments,
		staking:  deps.Staking,
		minters:  deps.Minters,
		fees:     deps.Fees,
		escrow:   deps.Escrow,
		replay:   deps.Replay,
		events:   deps.Events,
		clock:    deps.Clock,
	}
	if c.events == nil {
		c.events = event.NopPublisher{}
	}
	if c.clock == nil {
		c.clock = clock.System
	}
	return c
}

// authenticate 长度校验 -> 解码 -> 恢复签名者 -> 时效检查。
// 长度头不一致时不会尝试签名恢复。
func (c *Core) authenticate(kind metatx.Kind, payload, lengthHeader, sig []byte) (*metatx.Request, common.Address, error) {
	req, err := metatx.Decode(kind, payload, lengthHeader)
	if err != nil {
		return nil, common.Address{}, err
	}
	signer, err := signature.RecoverSigner(req.Payload, sig)
	if err != nil {
		return nil, common.Address{}, err
	}
	if req.ExpiredAt(c.clock.Now()) {
		return nil, common.Address{}, errno.ErrRequestExpired
	}
	return req, signer, nil
}

// consume 在执行前标记请求已消费，失败时由 journal 释放
func (c *Core) consume(ctx context.Context, j *journal, req *metatx.Request, signer common.Address) error {
	consumption := replay.NewConsumption(req, signer)
	j.call()
	if err := c.replay.Consume(ctx, consumption); err != nil {
		return err
	}
	j.push("release replay mark", func(ctx context.Context) error {
		return c.replay.Release(ctx, consumption.Fingerprint)
	})
	return nil
}

// tierFor 按签名者当前质押余额解析费率档位，每次调用都重新查询质押
func (c *Core) tierFor(ctx context.Context, j *journal, account common.Address) (fee.Tier, error) {
	j.call()
	staked, err := c.staking.StakedBalanceOf(ctx, account)
	if err != nil {
		return fee.Tier{}, err
	}
	return c.fees.Tier(staked), nil
}

// collect relayer -> 市场账户，金额为 0 时跳过
func (c *Core) collect(ctx context.Context, j *journal, asset ledger.PaymentAsset, relayer common.Address, gross *big.Int) error {
	if gross.Sign() == 0 {
		return nil
	}
	j.call()
	if err := asset.TransferFrom(ctx, c.cfg.Address, relayer, c.cfg.Address, gross); err != nil {
		return err
	}
	j.push("refund relayer", func(ctx context.Context) error {
		return asset.Transfer(ctx, c.cfg.Address, relayer, gross)
	})
	return nil
}

// distribute 从市场账户分出平台费和签名者净收入
func (c *Core) distribute(ctx context.Context, j *journal, asset ledger.PaymentAsset, payee common.Address, feeAmount, net *big.Int) error {
	if err := c.payout(ctx, j, asset, c.cfg.FeeRecipient, feeAmount); err != nil {
		return err
	}
	return c.payout(ctx, j, asset, payee, net)
}

func (c *Core) payout(ctx context.Context, j *journal, asset ledger.PaymentAsset, to common.Address, amount *big.Int) error {
	if amount.Sign() == 0 || to == c.cfg.Address {
		return nil
	}
	j.call()
	if err := asset.Transfer(ctx, c.cfg.Address, to, amount); err != nil {
		return err
	}
	j.push("claw back payout", func(ctx context.Context) error {
		return asset.Transfer(ctx, to, c.cfg.Address, amount)
	})
	return nil
}

func (c *Core) balance(ctx context.Context, j *journal, collection, holder common.Address, id *big.Int) (Balance, error) {
	j.call()
	bal, err := c.tokens.BalanceOf(ctx, collection, holder, id)
	if err != nil {
		return Balance{}, err
	}
	return Balance{Holder: holder.Hex(), TokenID: id.String(), Balance: bal}, nil
}

// publish 操作已提交，事件发布失败只记录日志
func (c *Core) publish(ctx context.Context, topic, key string, ev interface{}) {
	if err := c.events.Publish(ctx, topic, key, ev); err != nil {
		logger.Error("事件发布失败", zap.String("topic", topic), zap.String("key", key), zap.Error(err))
	}
}

func (c *Core) observe(op string, kind string, j *journal, err error) {
	result := "success"
	if err != nil {
		result = errno.CategoryOf(err).String()
	}
	monitor.ObserveOperation(op, kind, result, j.cost().Elapsed)
}

func feeFloat(amount *big.Int) float64 {
	f, _ := decimal.NewFromBigInt(amount, -fee.TokenDecimals).Float64()
	return f
}

// logFailure 业务拒绝记 Info，内部错误记 Error
func (c *Core) logFailure(op string, err error, fields ...zap.Field) {
	var e errno.Errno
	if errors.As(err, &e) && e.Category != errno.CategoryInternal {
		logger.Info("操作被拒绝", append(fields, zap.String("op", op), zap.Error(err))...)
		return
	}
	logger.Error("操作失败", append(fields, zap.String("op", op), zap.Error(err))...)
}

// Tier 查询账户当前适用的费率档位
func (c *Core) Tier(ctx context.Context, account common.Address) (fee.Tier, *big.Int, error) {
	staked, err := c.staking.StakedBalanceOf(ctx, account)
	if err != nil {
		return fee.Tier{}, nil, err
	}
	if staked == nil {
		staked = new(big.Int)
	}
	return c.fees.Tier(staked), staked, nil
}

// ReplaceFeeTable 管理员整表替换费率
func (c *Core) ReplaceFeeTable(table *fee.Table) {
	c.fees.Replace(table)
	logger.Info("费率表已替换", zap.Int("tiers", len(table.Tiers())))
}

func (c *Core) FeeTable() *fee.Table {
	return c.fees.Table()
}

func (c *Core) Rental(ctx context.Context, key escrow.Key) (*escrow.Agreement, error) {
	return c.escrow.Get(ctx, key)
}

func (c *Core) RentalsByLender(ctx context.Context, lender common.Address, includeSettled bool) ([]escrow.Agreement, error) {
	return c.escrow.ListByLender(ctx, lender, includeSettled)
}

func (c *Core) BalanceOf(ctx context.Context, collection, holder common.Address, id *big.Int) (uint64, error) {
	return c.tokens.BalanceOf(ctx, collection, holder, id)
}

// ExpiredRentals 已到期未结算的租赁，供后台回收
func (c *Core) ExpiredRentals(ctx context.Context, limit int) ([]escrow.Agreement, error) {
	return c.escrow.ListExpired(ctx, limit)
}
