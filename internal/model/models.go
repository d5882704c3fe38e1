package model

import (
	"time"
)

// RentalAgreement 租赁托管记录。一旦提交不会删除，只会被标记为已结算。
// 同一 (collection, token_id, renter) 最多一条未结算记录 (部分唯一索引)。
type RentalAgreement struct {
	ID          uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Collection  string     `gorm:"type:varchar(42);not null;uniqueIndex:idx_rental_active,where:settled = false;index:idx_rental_key" json:"collection"`
	TokenID     string     `gorm:"type:varchar(78);not null;uniqueIndex:idx_rental_active;index:idx_rental_key" json:"token_id"` // uint256 十进制
	Renter      string     `gorm:"type:varchar(42);not null;uniqueIndex:idx_rental_active;index:idx_rental_key" json:"renter"`
	Lender      string     `gorm:"type:varchar(42);not null;index" json:"lender"`
	Amount      uint32     `gorm:"not null" json:"amount"`
	ExpiresAt   int64      `gorm:"not null;index" json:"expires_at"` // unix 秒
	Settled     bool       `gorm:"not null;default:false;index" json:"settled"`
	SettledAt   *time.Time `json:"settled_at,omitempty"`
	RequestHash string     `gorm:"type:varchar(66)" json:"request_hash"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (RentalAgreement) TableName() string {
	return "rental_agreements"
}

// ConsumedRequest 已消费的元交易指纹，唯一索引保证一次性使用
type ConsumedRequest struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Fingerprint string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"fingerprint"`
	Signer      string    `gorm:"type:varchar(42);not null;index" json:"signer"`
	Kind        string    `gorm:"type:varchar(16);not null" json:"kind"`
	ExpiresAt   time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

func (ConsumedRequest) TableName() string {
	return "consumed_requests"
}

const (
	OutboxPending = "PENDING"
	OutboxSent    = "SENT"
)

// OutboxMessage 本地消息表 (Transactional Outbox)
type OutboxMessage struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Topic     string    `gorm:"type:varchar(255);not null" json:"topic"`
	Key       string    `gorm:"type:varchar(255)" json:"key"`
	Payload   []byte    `gorm:"type:bytea;not null" json:"payload"`
	Status    string    `gorm:"type:varchar(50);not null;default:'PENDING';index" json:"status"` // PENDING, SENT
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}
