package marketplace

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"marketplace-core/internal/event"
	"marketplace-core/internal/fee"
	"marketplace-core/internal/metatx"
	"marketplace-core/pkg/errno"
	"marketplace-core/pkg/logger"
	"marketplace-core/pkg/monitor"
)

// MetaTxMint 执行签名者授权、由 relayer 中继的铸造请求。
// relayer 支付 price，mintFeeBps 部分归平台，其余归签名者；amount 个单位铸造给签名者。
func (c *Core) MetaTxMint(ctx context.Context, relayer common.Address, payload, lengthHeader, sig []byte) (rcpt *Receipt, err error) {
	j := newJournal(OpMetaTxMint)
	defer func() {
		if err != nil {
			j.rollback(ctx)
			c.logFailure(OpMetaTxMint, err, zap.String("relayer", relayer.Hex()))
		}
		c.observe(OpMetaTxMint, metatx.KindMint.String(), j, err)
	}()

	req, signer, err := c.authenticate(metatx.KindMint, payload, lengthHeader, sig)
	if err != nil {
		return nil, err
	}

	j.call()
	allowed, err := c.minters.CanMint(ctx, req.Collection, signer)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, errno.ErrUnauthorizedMinter
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

	gross := new(big.Int).Set(req.Price)
	feeAmount, net := fee.ApplyBps(gross, tier.MintFeeBps)
	if err = c.collect(ctx, j, asset, relayer, gross); err != nil {
		return nil, err
	}

	j.call()
	if err = c.tokens.Mint(ctx, req.Collection, signer, req.TokenID, uint64(req.Amount), req.MetadataURI); err != nil {
		return nil, err
	}
	j.push("burn minted units", func(ctx context.Context) error {
		return c.tokens.Burn(ctx, req.Collection, signer, req.TokenID, uint64(req.Amount))
	})

	if err = c.distribute(ctx, j, asset, signer, feeAmount, net); err != nil {
		return nil, err
	}

	bal, err := c.balance(ctx, j, req.Collection, signer, req.TokenID)
	if err != nil {
		return nil, err
	}

	hash := req.Hash().Hex()
	c.publish(ctx, event.TopicMinted, hash, event.MintedEvent{
		RequestHash:  hash,
		Signer:       signer.Hex(),
		Relayer:      relayer.Hex(),
		Collection:   req.Collection.Hex(),
		TokenID:      req.TokenID.String(),
		Amount:       req.Amount,
		MetadataURI:  req.MetadataURI,
		PaymentAsset: req.PaymentAsset.Hex(),
		Price:        gross.String(),
		Fee:          feeAmount.String(),
		FeeBps:       tier.MintFeeBps,
	})
	monitor.AddFeeCollected(OpMetaTxMint, req.PaymentAsset.Hex(), feeFloat(feeAmount))

	logger.Info("元交易铸造成功",
		zap.String("request", hash),
		zap.String("signer", signer.Hex()),
		zap.String("collection", req.Collection.Hex()),
		zap.String("token_id", req.TokenID.String()),
		zap.Uint32("amount", req.Amount),
		zap.Uint32("fee_bps", tier.MintFeeBps))

	return &Receipt{
		Operation:   OpMetaTxMint,
		RequestHash: hash,
		Signer:      signer.Hex(),
		Relayer:     relayer.Hex(),
		Collection:  req.Collection.Hex(),
		TokenIDs:    []string{req.TokenID.String()},
		Amounts:     []uint32{req.Amount},
		Balances:    []Balance{bal},
		Payment:     newPayment(req.PaymentAsset, gross, feeAmount, net, tier.MintFeeBps),
		Cost:        j.cost(),
	}, nil
}
