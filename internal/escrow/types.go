package escrow

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Key 租赁记录的唯一键
type Key struct {
	Collection common.Address
	TokenID    *big.Int
	Renter     common.Address
}

func NewKey(collection common.Address, tokenID *big.Int, renter common.Address) Key {
	return Key{Collection: collection, TokenID: new(big.Int).Set(tokenID), Renter: renter}
}

// String 也用作锁的 key
func (k Key) String() string {
	return fmt.Sprintf("rental:%s:%s:%s", k.Collection.Hex(), k.TokenID.String(), k.Renter.Hex())
}

// Agreement 租赁托管记录: None -> Active -> Settled
type Agreement struct {
	Lender         common.Address
	Renter         common.Address
	Collection     common.Address
	TokenID        *big.Int
	Amount         uint32
	ExpirationDate int64 // unix 秒
	Settled        bool
	SettledAt      *time.Time
	CreatedAt      time.Time
	RequestHash    common.Hash
}

func (a *Agreement) Key() Key {
	return NewKey(a.Collection, a.TokenID, a.Renter)
}

func (a *Agreement) Expiration() time.Time {
	return time.Unix(a.ExpirationDate, 0)
}

// Expired now >= expirationDate
func (a *Agreement) Expired(now time.Time) bool {
	return now.Unix() >= a.ExpirationDate
}

func (a *Agreement) clone() *Agreement {
	c := *a
	c.TokenID = new(big.Int).Set(a.TokenID)
	if a.SettledAt != nil {
		t := *a.SettledAt
		c.SettledAt = &t
	}
	return &c
}

// Store 托管记录持久化。调用方负责按 key 加锁。
type Store interface {
	// Active 返回未结算记录，不存在时返回 (nil, nil)
	Active(ctx context.Context, key Key) (*Agreement, error)
	// Latest 返回最近一条记录 (含已结算)，不存在时返回 (nil, nil)
	Latest(ctx context.Context, key Key) (*Agreement, error)
	// Insert 已有未结算记录时返回 errno.ErrDuplicateRental
	Insert(ctx context.Context, a *Agreement) error
	MarkSettled(ctx context.Context, key Key, at time.Time) error
	// Reopen 撤销 MarkSettled，仅用于批量回收的回滚
	Reopen(ctx context.Context, key Key) error
	// Remove 删除未结算记录，仅用于同一操作内的补偿
	Remove(ctx context.Context, key Key) error
	ListByLender(ctx context.Context, lender common.Address, includeSettled bool) ([]Agreement, error)
	// ListExpired 返回 expirationDate <= now 的未结算记录
	ListExpired(ctx context.Context, now int64, limit int) ([]Agreement, error)
	CountActive(ctx context.Context) (int64, error)
}
