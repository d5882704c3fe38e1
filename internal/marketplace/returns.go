package marketplace

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"marketplace-core/internal/escrow"
	"marketplace-core/internal/event"
	"marketplace-core/pkg/errno"
	"marketplace-core/pkg/logger"
	"marketplace-core/pkg/monitor"
)

// 回收的触发来源，仅用于指标
const (
	TriggerAPI     = "api"
	TriggerWorker  = "worker"
	TriggerSweeper = "sweeper"
)

// ReturnRented 到期后把租出的单位归还出租人。任何人都可以调用。
// 整批要么全部结算，要么全部拒绝。
func (c *Core) ReturnRented(ctx context.Context, collection common.Address, tokenIDs []*big.Int, amounts []uint32, lender, renter common.Address) (*Receipt, error) {
	return c.returnRented(ctx, TriggerAPI, collection, tokenIDs, amounts, lender, renter)
}

// ReclaimExpired 后台任务回收单个到期租赁
func (c *Core) ReclaimExpired(ctx context.Context, trigger string, a escrow.Agreement) (*Receipt, error) {
	return c.returnRented(ctx, trigger, a.Collection, []*big.Int{a.TokenID}, []uint32{a.Amount}, a.Lender, a.Renter)
}

func (c *Core) returnRented(ctx context.Context, trigger string, collection common.Address, tokenIDs []*big.Int, amounts []uint32, lender, renter common.Address) (rcpt *Receipt, err error) {
	j := newJournal(OpReturnRented)
	defer func() {
		result := "success"
		if err != nil {
			result = errno.CategoryOf(err).String()
			c.logFailure(OpReturnRented, err,
				zap.String("trigger", trigger),
				zap.String("lender", lender.Hex()),
				zap.String("renter", renter.Hex()))
		}
		monitor.ObserveReclaim(trigger, result, len(tokenIDs))
		c.observe(OpReturnRented, "", j, err)
	}()

	if len(tokenIDs) == 0 || len(tokenIDs) != len(amounts) {
		return nil, errno.ErrMalformedPayload.WithMessage(
			fmt.Sprintf("tokenIds (%d) and amounts (%d) must be non-empty and equal length", len(tokenIDs), len(amounts)))
	}

	items := make([]escrow.ReclaimItem, len(tokenIDs))
	for i, id := range tokenIDs {
		if id == nil {
			return nil, errno.ErrMalformedPayload.WithMessage(fmt.Sprintf("tokenIds[%d] missing", i))
		}
		items[i] = escrow.ReclaimItem{
			Collection: collection,
			TokenID:    id,
			Amount:     amounts[i],
			Lender:     lender,
			Renter:     renter,
		}
	}

	j.call()
	settled, err := c.escrow.ReclaimBatch(ctx, items)
	if err != nil {
		return nil, err
	}

	rcpt = &Receipt{
		Operation:  OpReturnRented,
		Collection: collection.Hex(),
		TokenIDs:   make([]string, 0, len(settled)),
		Amounts:    make([]uint32, 0, len(settled)),
	}
	ev := event.ReturnedEvent{
		Collection: collection.Hex(),
		Lender:     lender.Hex(),
		Renter:     renter.Hex(),
		SettledAt:  c.clock.Now().Unix(),
	}
	for _, a := range settled {
		rcpt.TokenIDs = append(rcpt.TokenIDs, a.TokenID.String())
		rcpt.Amounts = append(rcpt.Amounts, a.Amount)
		ev.Items = append(ev.Items, event.ReturnedItem{TokenID: a.TokenID.String(), Amount: a.Amount})

		// 回收已提交，余额查询失败不影响结果
		for _, holder := range []common.Address{lender, renter} {
			bal, berr := c.balance(ctx, j, collection, holder, a.TokenID)
			if berr != nil {
				logger.Warn("查询余额失败", zap.String("holder", holder.Hex()), zap.Error(berr))
				continue
			}
			rcpt.Balances = append(rcpt.Balances, bal)
		}
	}
	rcpt.Rental = &Rental{Lender: lender.Hex(), Renter: renter.Hex(), Settled: true}
	if len(settled) == 1 {
		rcpt.Rental.ExpirationDate = settled[0].ExpirationDate
	}
	rcpt.Cost = j.cost()

	c.publish(ctx, event.TopicReturned, fmt.Sprintf("%s:%s", collection.Hex(), renter.Hex()), ev)
	if n, cerr := c.escrow.CountActive(ctx); cerr == nil {
		monitor.SetActiveRentals(n)
	}
	return rcpt, nil
}
