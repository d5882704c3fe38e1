package model

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// CreateOutboxMessage 与业务写入同一事务。payload 为 []byte 时原样保存，否则编码为 JSON。
func CreateOutboxMessage(tx *gorm.DB, topic, key string, payload interface{}) error {
	body, ok := payload.([]byte)
	if !ok {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return err
		}
	}
	return tx.Create(&OutboxMessage{
		Topic:   topic,
		Key:     key,
		Payload: body,
		Status:  OutboxPending,
	}).Error
}

// PendingOutboxMessages 按写入顺序取一批待投递消息
func PendingOutboxMessages(tx *gorm.DB, limit int) ([]OutboxMessage, error) {
	var messages []OutboxMessage
	err := tx.Where("status = ?", OutboxPending).
		Order("id").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func MarkOutboxSent(tx *gorm.DB, id uint64) error {
	return tx.Model(&OutboxMessage{}).
		Where("id = ? AND status = ?", id, OutboxPending).
		Updates(map[string]interface{}{"status": OutboxSent, "updated_at": time.Now()}).Error
}
