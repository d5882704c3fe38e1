package marketplace

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"marketplace-core/internal/escrow"
	"marketplace-core/internal/event"
	"marketplace-core/internal/fee"
	"marketplace-core/internal/metatx"
	"marketplace-core/pkg/errno"
	"marketplace-core/pkg/logger"
	"marketplace-core/pkg/monitor"
)

// RentPrice price * requested / amount，向下取整
func RentPrice(price *big.Int, requested, amount uint32) *big.Int {
	if amount == 0 {
		return new(big.Int)
	}
	p := new(big.Int).Mul(price, new(big.Int).SetUint64(uint64(requested)))
	return p.Quo(p, new(big.Int).SetUint64(uint64(amount)))
}

// MetaTxRent 签名者 (出租人) 授权出租，relayer 作为承租人支付租金。
// requestedAmount 可小于签名的 amount (部分租赁)，租金按比例计算。
func (c *Core) MetaTxRent(ctx context.Context, relayer common.Address, payload, lengthHeader, sig []byte, requestedAmount uint32) (rcpt *Receipt, err error) {
	j := newJournal(OpMetaTxRent)
	defer func() {
		if err != nil {
			j.rollback(ctx)
			c.logFailure(OpMetaTxRent, err, zap.String("relayer", relayer.Hex()))
		}
		c.observe(OpMetaTxRent, metatx.KindRent.String(), j, err)
	}()

	req, signer, err := c.authenticate(metatx.KindRent, payload, lengthHeader, sig)
	if err != nil {
		return nil, err
	}
	if requestedAmount == 0 {
		return nil, errno.ErrInvalidAmount
	}
	if requestedAmount > req.Amount {
		return nil, errno.ErrRequestedAmountExceeds
	}
	if signer == relayer {
		return nil, errno.ErrSelfRental
	}

	owned, err := c.balance(ctx, j, req.Collection, signer, req.TokenID)
	if err != nil {
		return nil, err
	}
	if owned.Balance == 0 {
		return nil, errno.ErrSignerNotOwner
	}

	if err = c.consume(ctx, j, req, signer); err != nil {
		return nil, err
	}

	tier, err := c.tierFor(ctx, j, signer)
	if err != nil {
		return nil, err
	}
	asset, err := c.payments.Asset(req.PaymentAsset)
	if err != nil {
		return nil, err
	}

	j.call()
	agreement, err := c.escrow.CreateRental(ctx, escrow.CreateParams{
		Lender:         signer,
		Renter:         relayer,
		Collection:     req.Collection,
		TokenID:        req.TokenID,
		Amount:         requestedAmount,
		ExpirationDate: req.ExpirationDate,
		RequestHash:    req.Hash(),
	})
	if err != nil {
		return nil, err
	}
	key := agreement.Key()
	j.push("cancel rental", func(ctx context.Context) error {
		return c.escrow.Cancel(ctx, key)
	})

	gross := RentPrice(req.Price, requestedAmount, req.Amount)
	feeAmount, net := fee.ApplyBps(gross, tier.MarketplaceFeeBps)
	if err = c.collect(ctx, j, asset, relayer, gross); err != nil {
		return nil, err
	}
	if err = c.distribute(ctx, j, asset, signer, feeAmount, net); err != nil {
		return nil, err
	}

	lenderBal, err := c.balance(ctx, j, req.Collection, signer, req.TokenID)
	if err != nil {
		return nil, err
	}
	renterBal, err := c.balance(ctx, j, req.Collection, relayer, req.TokenID)
	if err != nil {
		return nil, err
	}

	hash := req.Hash().Hex()
	c.publish(ctx, event.TopicRented, key.String(), event.RentedEvent{
		RequestHash:    hash,
		Lender:         signer.Hex(),
		Renter:         relayer.Hex(),
		Collection:     req.Collection.Hex(),
		TokenID:        req.TokenID.String(),
		Amount:         requestedAmount,
		ExpirationDate: agreement.ExpirationDate,
		PaymentAsset:   req.PaymentAsset.Hex(),
		Payment:        gross.String(),
		Fee:            feeAmount.String(),
		FeeBps:         tier.MarketplaceFeeBps,
	})
	monitor.AddFeeCollected(OpMetaTxRent, req.PaymentAsset.Hex(), feeFloat(feeAmount))

	logger.Info("元交易租赁成功",
		zap.String("request", hash),
		zap.String("rental", key.String()),
		zap.Uint32("amount", requestedAmount),
		zap.Int64("expiration", agreement.ExpirationDate),
		zap.Uint32("fee_bps", tier.MarketplaceFeeBps))

	return &Receipt{
		Operation:   OpMetaTxRent,
		RequestHash: hash,
		Signer:      signer.Hex(),
		Relayer:     relayer.Hex(),
		Collection:  req.Collection.Hex(),
		TokenIDs:    []string{req.TokenID.String()},
		Amounts:     []uint32{requestedAmount},
		Balances:    []Balance{lenderBal, renterBal},
		Payment:     newPayment(req.PaymentAsset, gross, feeAmount, net, tier.MarketplaceFeeBps),
		Rental: &Rental{
			Lender:         signer.Hex(),
			Renter:         relayer.Hex(),
			ExpirationDate: agreement.ExpirationDate,
		},
		Cost: j.cost(),
	}, nil
}
