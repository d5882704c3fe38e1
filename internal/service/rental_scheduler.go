package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"marketplace-core/internal/escrow"
	"marketplace-core/internal/event"
	"marketplace-core/internal/service/mq"
	"marketplace-core/pkg/logger"
)

// ReclaimScheduler 安排到期回收任务 (worker.Client)
type ReclaimScheduler interface {
	EnqueueReclaim(ctx context.Context, a escrow.Agreement) error
}

// RentalScheduler 消费租赁事件，为每个租赁在到期时刻安排回收任务
type RentalScheduler struct {
	consumer  mq.Consumer
	scheduler ReclaimScheduler
}

func NewRentalScheduler(consumer mq.Consumer, scheduler ReclaimScheduler) *RentalScheduler {
	return &RentalScheduler{consumer: consumer, scheduler: scheduler}
}

func (s *RentalScheduler) Start(ctx context.Context) error {
	logger.Info("[RentalScheduler] 订阅租赁事件", zap.String("topic", event.TopicRented))
	return s.consumer.Subscribe(ctx, event.TopicRented, func(msg *mq.Message) error {
		return s.handleRented(ctx, msg)
	})
}

func (s *RentalScheduler) handleRented(ctx context.Context, msg *mq.Message) error {
	var ev event.RentedEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		logger.Error("[RentalScheduler] 解析消息失败", zap.String("id", msg.ID), zap.Error(err))
		return nil // 格式错误，不再重试
	}
	a, err := agreementFromEvent(ev)
	if err != nil {
		logger.Error("[RentalScheduler] 事件字段无效", zap.String("id", msg.ID), zap.Error(err))
		return nil
	}

	if err := s.scheduler.EnqueueReclaim(ctx, a); err != nil {
		return err // 重试
	}
	logger.Info("[RentalScheduler] 已安排到期回收",
		zap.String("rental", a.Key().String()),
		zap.Int64("expiration", a.ExpirationDate))
	return nil
}

func agreementFromEvent(ev event.RentedEvent) (escrow.Agreement, error) {
	id, ok := new(big.Int).SetString(ev.TokenID, 10)
	if !ok {
		return escrow.Agreement{}, fmt.Errorf("invalid token id %q", ev.TokenID)
	}
	for _, addr := range []string{ev.Collection, ev.Lender, ev.Renter} {
		if !common.IsHexAddress(addr) {
			return escrow.Agreement{}, fmt.Errorf("invalid address %q", addr)
		}
	}
	return escrow.Agreement{
		Collection:     common.HexToAddress(ev.Collection),
		TokenID:        id,
		Amount:         ev.Amount,
		Lender:         common.HexToAddress(ev.Lender),
		Renter:         common.HexToAddress(ev.Renter),
		ExpirationDate: ev.ExpirationDate,
	}, nil
}
