package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"marketplace-core/internal/model"
	"marketplace-core/internal/service/mq"
	"marketplace-core/pkg/logger"
)

// RelayService 负责将本地消息表的消息搬运到 MQ
type RelayService struct {
	db        *gorm.DB
	producer  mq.Producer
	interval  time.Duration
	batchSize int
}

func NewRelayService(db *gorm.DB, producer mq.Producer) *RelayService {
	return &RelayService{
		db:        db,
		producer:  producer,
		interval:  500 * time.Millisecond,
		batchSize: 50,
	}
}

// Start 阻塞直到 ctx 结束
func (s *RelayService) Start(ctx context.Context) {
	logger.Info("[Relay] 启动消息中继服务")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("[Relay] 停止服务")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

// processPendingMessages 返回成功投递的条数
func (s *RelayService) processPendingMessages(ctx context.Context) int {
	messages, err := model.PendingOutboxMessages(s.db.WithContext(ctx), s.batchSize)
	if err != nil {
		logger.Error("[Relay] 查询消息失败", zap.Error(err))
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if err := s.producer.Publish(ctx, msg.Topic, msg.Key, msg.Payload); err != nil {
			logger.Warn("[Relay] 发送消息失败", zap.Uint64("id", msg.ID), zap.Error(err))
			// 保持顺序: 同一批后面的消息等下一轮
			break
		}

		// 只有发送成功了才更新状态 => 至少一次投递，消费方需幂等
		if err := model.MarkOutboxSent(s.db.WithContext(ctx), msg.ID); err != nil {
			logger.Error("[Relay] 更新状态失败", zap.Uint64("id", msg.ID), zap.Error(err))
			continue
		}
		sent++
	}
	if sent > 0 {
		logger.Debug("[Relay] 消息已投递", zap.Int("count", sent))
	}
	return sent
}
