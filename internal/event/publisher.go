package event

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"marketplace-core/internal/model"
	"marketplace-core/internal/service/mq"
)

// Publisher 发布领域事件
type Publisher interface {
	Publish(ctx context.Context, topic, key string, event interface{}) error
}

// ProducerPublisher 直接写入 MQ
type ProducerPublisher struct {
	producer mq.Producer
}

func NewProducerPublisher(producer mq.Producer) *ProducerPublisher {
	return &ProducerPublisher{producer: producer}
}

func (p *ProducerPublisher) Publish(ctx context.Context, topic, key string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, topic, key, payload)
}

// OutboxPublisher 业务提交之后写入本地消息表，由 RelayService 搬运到 MQ。
// 插入不在业务事务内：写入成功的行至少投递一次，写入失败的事件会丢失，
// 过期租赁由 CronService 扫描回收。
type OutboxPublisher struct {
	db *gorm.DB
}

func NewOutboxPublisher(db *gorm.DB) *OutboxPublisher {
	return &OutboxPublisher{db: db}
}

func (p *OutboxPublisher) Publish(ctx context.Context, topic, key string, event interface{}) error {
	return model.CreateOutboxMessage(p.db.WithContext(ctx), topic, key, event)
}

// NopPublisher 丢弃所有事件
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, interface{}) error { return nil }
