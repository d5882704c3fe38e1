// Package escrow 租赁托管: 创建租赁时把单位从出租人移到承租人，
// 到期后回收。每个 (collection, tokenId, renter) 的状态: None -> Active -> Settled。
package escrow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"marketplace-core/internal/ledger"
	"marketplace-core/pkg/clock"
	"marketplace-core/pkg/errno"
	"marketplace-core/pkg/logger"
	"marketplace-core/pkg/utils/lock"
)

// CreateParams 创建租赁的参数
type CreateParams struct {
	Lender         common.Address
	Renter         common.Address
	Collection     common.Address
	TokenID        *big.Int
	Amount         uint32
	ExpirationDate int64
	RequestHash    common.Hash
}

// ReclaimItem 批量回收中的一项
type ReclaimItem struct {
	Collection common.Address
	TokenID    *big.Int
	Amount     uint32
	Lender     common.Address
	Renter     common.Address
}

func (r ReclaimItem) key() Key {
	return NewKey(r.Collection, r.TokenID, r.Renter)
}

type Ledger struct {
	store  Store
	tokens ledger.TokenLedger
	locker lock.KeyLocker
	clock  clock.Clock
}

func NewLedger(store Store, tokens ledger.TokenLedger, locker lock.KeyLocker, clk clock.Clock) *Ledger {
	if clk == nil {
		clk = clock.System
	}
	return &Ledger{store: store, tokens: tokens, locker: locker, clock: clk}
}

// CreateRental None -> Active，同时把 amount 个单位从出租人转给承租人
func (l *Ledger) CreateRental(ctx context.Context, p CreateParams) (*Agreement, error) {
	if p.Amount == 0 {
		return nil, errno.ErrInvalidAmount
	}
	if p.TokenID == nil {
		return nil, errno.ErrMalformedPayload.WithMessage("missing token id")
	}
	now := l.clock.Now()
	if p.ExpirationDate <= now.Unix() {
		return nil, errno.ErrRentalExpirationPast
	}

	key := NewKey(p.Collection, p.TokenID, p.Renter)
	unlock, err := l.locker.Lock(ctx, key.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	active, err := l.store.Active(ctx, key)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, errno.ErrDuplicateRental
	}

	if err := l.tokens.Transfer(ctx, p.Collection, p.Lender, p.Renter, p.TokenID, uint64(p.Amount)); err != nil {
		return nil, err
	}

	a := &Agreement{
		Lender:         p.Lender,
		Renter:         p.Renter,
		Collection:     p.Collection,
		TokenID:        new(big.Int).Set(p.TokenID),
		Amount:         p.Amount,
		ExpirationDate: p.ExpirationDate,
		CreatedAt:      now,
		RequestHash:    p.RequestHash,
	}
	if err := l.store.Insert(ctx, a); err != nil {
		l.compensate("撤销租赁转账", l.tokens.Transfer(context.WithoutCancel(ctx), p.Collection, p.Renter, p.Lender, p.TokenID, uint64(p.Amount)))
		return nil, err
	}

	logger.Info("租赁已创建",
		zap.String("key", key.String()),
		zap.String("lender", p.Lender.Hex()),
		zap.Uint32("amount", p.Amount),
		zap.Int64("expiration", p.ExpirationDate))
	return a.clone(), nil
}

// Cancel 撤销同一操作内刚创建的租赁 (单位退回出租人，记录删除)。
// 只在后续步骤失败时作为补偿调用。
func (l *Ledger) Cancel(ctx context.Context, key Key) error {
	unlock, err := l.locker.Lock(ctx, key.String())
	if err != nil {
		return err
	}
	defer unlock()

	a, err := l.store.Active(ctx, key)
	if err != nil {
		return err
	}
	if a == nil {
		return errno.ErrNoSuchRental
	}
	if err := l.tokens.Transfer(ctx, a.Collection, a.Renter, a.Lender, a.TokenID, uint64(a.Amount)); err != nil {
		return err
	}
	return l.store.Remove(ctx, key)
}

// Reclaim 到期后回收单个租赁
func (l *Ledger) Reclaim(ctx context.Context, item ReclaimItem) (*Agreement, error) {
	settled, err := l.ReclaimBatch(ctx, []ReclaimItem{item})
	if err != nil {
		return nil, err
	}
	return &settled[0], nil
}

// ReclaimBatch 两阶段: 先校验全部项，任何一项失败则整体放弃；
// 再逐项提交，提交阶段协作方失败时回滚已提交的项。
func (l *Ledger) ReclaimBatch(ctx context.Context, items []ReclaimItem) ([]Agreement, error) {
	if len(items) == 0 {
		return nil, errno.ErrMalformedPayload.WithMessage("empty reclaim batch")
	}

	keys := make([]string, len(items))
	seen := make(map[string]struct{}, len(items))
	for i, it := range items {
		if it.TokenID == nil {
			return nil, errno.ErrMalformedPayload.WithMessage(fmt.Sprintf("item %d: missing token id", i))
		}
		k := it.key().String()
		if _, dup := seen[k]; dup {
			return nil, errno.ErrMalformedPayload.WithMessage(fmt.Sprintf("item %d: duplicate rental %s", i, k))
		}
		seen[k] = struct{}{}
		keys[i] = k
	}

	unlock, err := l.locker.Lock(ctx, keys...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := l.clock.Now()

	// 阶段一: 校验
	agreements := make([]*Agreement, len(items))
	for i, it := range items {
		a, err := l.validateReclaim(ctx, it, now)
		if err != nil {
			return nil, err
		}
		agreements[i] = a
	}

	// 阶段二: 提交
	var committed []*Agreement
	for _, a := range agreements {
		if err := l.commitReclaim(ctx, a, now); err != nil {
			l.rollbackReclaims(ctx, committed)
			return nil, err
		}
		committed = append(committed, a)
	}

	out := make([]Agreement, len(agreements))
	for i, a := range agreements {
		a.Settled = true
		settledAt := now
		a.SettledAt = &settledAt
		out[i] = *a
		logger.Info("租赁已回收",
			zap.String("key", a.Key().String()),
			zap.String("lender", a.Lender.Hex()),
			zap.Uint32("amount", a.Amount))
	}
	return out, nil
}

func (l *Ledger) validateReclaim(ctx context.Context, it ReclaimItem, now time.Time) (*Agreement, error) {
	key := it.key()
	a, err := l.store.Active(ctx, key)
	if err != nil {
		return nil, err
	}
	if a == nil {
		latest, err := l.store.Latest(ctx, key)
		if err != nil {
			return nil, err
		}
		if latest != nil && latest.Settled && latest.Lender == it.Lender {
			return nil, errno.ErrAlreadySettled.WithMessage(key.String())
		}
		return nil, errno.ErrNoSuchRental.WithMessage(key.String())
	}
	if a.Lender != it.Lender {
		return nil, errno.ErrNoSuchRental.WithMessage(fmt.Sprintf("%s is not lent by %s", key, it.Lender.Hex()))
	}
	if now.Unix() < a.ExpirationDate {
		return nil, errno.ErrRentalNotExpired.WithMessage(fmt.Sprintf("%s expires at %d", key, a.ExpirationDate))
	}
	if it.Amount != a.Amount {
		return nil, errno.ErrAmountMismatch.WithMessage(fmt.Sprintf("%s: rented %d, reclaim %d", key, a.Amount, it.Amount))
	}
	return a, nil
}

func (l *Ledger) commitReclaim(ctx context.Context, a *Agreement, now time.Time) error {
	if err := l.tokens.Transfer(ctx, a.Collection, a.Renter, a.Lender, a.TokenID, uint64(a.Amount)); err != nil {
		return err
	}
	if err := l.store.MarkSettled(ctx, a.Key(), now); err != nil {
		l.compensate("撤销回收转账", l.tokens.Transfer(context.WithoutCancel(ctx), a.Collection, a.Lender, a.Renter, a.TokenID, uint64(a.Amount)))
		return err
	}
	return nil
}

func (l *Ledger) rollbackReclaims(ctx context.Context, committed []*Agreement) {
	rctx := context.WithoutCancel(ctx)
	for i := len(committed) - 1; i >= 0; i-- {
		a := committed[i]
		l.compensate("回滚已回收的租赁", errors.Join(
			l.store.Reopen(rctx, a.Key()),
			l.tokens.Transfer(rctx, a.Collection, a.Lender, a.Renter, a.TokenID, uint64(a.Amount)),
		))
	}
}

func (l *Ledger) compensate(action string, err error) {
	if err != nil {
		logger.Error("补偿失败，托管状态可能与账本不一致", zap.String("action", action), zap.Error(err))
	}
}

func (l *Ledger) Get(ctx context.Context, key Key) (*Agreement, error) {
	a, err := l.store.Latest(ctx, key)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, errno.ErrNoSuchRental.WithMessage(key.String())
	}
	return a, nil
}

func (l *Ledger) ListByLender(ctx context.Context, lender common.Address, includeSettled bool) ([]Agreement, error) {
	return l.store.ListByLender(ctx, lender, includeSettled)
}

// ListExpired 按当前时间查询已到期未结算的租赁
func (l *Ledger) ListExpired(ctx context.Context, limit int) ([]Agreement, error) {
	return l.store.ListExpired(ctx, l.clock.Now().Unix(), limit)
}

func (l *Ledger) CountActive(ctx context.Context) (int64, error) {
	return l.store.CountActive(ctx)
}
