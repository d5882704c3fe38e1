package escrow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"marketplace-core/internal/model"
	"marketplace-core/pkg/errno"
)

// GormStore PostgreSQL 实现，依赖 idx_rental_active 部分唯一索引
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func toModel(a *Agreement) *model.RentalAgreement {
	return &model.RentalAgreement{
		Collection:  a.Collection.Hex(),
		TokenID:     a.TokenID.String(),
		Renter:      a.Renter.Hex(),
		Lender:      a.Lender.Hex(),
		Amount:      a.Amount,
		ExpiresAt:   a.ExpirationDate,
		Settled:     a.Settled,
		SettledAt:   a.SettledAt,
		RequestHash: a.RequestHash.Hex(),
		CreatedAt:   a.CreatedAt,
	}
}

func fromModel(m *model.RentalAgreement) (*Agreement, error) {
	tokenID, ok := new(big.Int).SetString(m.TokenID, 10)
	if !ok {
		return nil, errno.ErrDatabase.WithMessage(fmt.Sprintf("corrupt token_id %q", m.TokenID))
	}
	return &Agreement{
		Lender:         common.HexToAddress(m.Lender),
		Renter:         common.HexToAddress(m.Renter),
		Collection:     common.HexToAddress(m.Collection),
		TokenID:        tokenID,
		Amount:         m.Amount,
		ExpirationDate: m.ExpiresAt,
		Settled:        m.Settled,
		SettledAt:      m.SettledAt,
		CreatedAt:      m.CreatedAt,
		RequestHash:    common.HexToHash(m.RequestHash),
	}, nil
}

func (s *GormStore) keyScope(db *gorm.DB, key Key) *gorm.DB {
	return db.Where("collection = ? AND token_id = ? AND renter = ?",
		key.Collection.Hex(), key.TokenID.String(), key.Renter.Hex())
}

func (s *GormStore) first(ctx context.Context, key Key, activeOnly bool) (*Agreement, error) {
	var row model.RentalAgreement
	q := s.keyScope(s.db.WithContext(ctx), key)
	if activeOnly {
		q = q.Where("settled = ?", false)
	}
	err := q.Order("id DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errno.ErrDatabase.WithMessage(err.Error())
	}
	return fromModel(&row)
}

func (s *GormStore) Active(ctx context.Context, key Key) (*Agreement, error) {
	return s.first(ctx, key, true)
}

func (s *GormStore) Latest(ctx context.Context, key Key) (*Agreement, error) {
	return s.first(ctx, key, false)
}

func (s *GormStore) Insert(ctx context.Context, a *Agreement) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.RentalAgreement
		err := s.keyScope(tx, a.Key()).
			Where("settled = ?", false).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&existing).Error
		if err == nil {
			return errno.ErrDuplicateRental
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return errno.ErrDatabase.WithMessage(err.Error())
		}

		if err := tx.Create(toModel(a)).Error; err != nil {
			// 并发插入被部分唯一索引拦截
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errno.ErrDuplicateRental
			}
			return errno.ErrDatabase.WithMessage(err.Error())
		}
		return nil
	})
}

func (s *GormStore) update(ctx context.Context, key Key, settled bool, values map[string]interface{}) error {
	res := s.keyScope(s.db.WithContext(ctx).Model(&model.RentalAgreement{}), key).
		Where("settled = ?", settled).
		Updates(values)
	if res.Error != nil {
		return errno.ErrDatabase.WithMessage(res.Error.Error())
	}
	if res.RowsAffected == 0 {
		return errno.ErrNoSuchRental
	}
	return nil
}

func (s *GormStore) MarkSettled(ctx context.Context, key Key, at time.Time) error {
	return s.update(ctx, key, false, map[string]interface{}{"settled": true, "settled_at": at})
}

// Reopen 只重开最近一条已结算记录
func (s *GormStore) Reopen(ctx context.Context, key Key) error {
	latest, err := s.Latest(ctx, key)
	if err != nil {
		return err
	}
	if latest == nil || !latest.Settled {
		return errno.ErrNoSuchRental
	}
	res := s.keyScope(s.db.WithContext(ctx).Model(&model.RentalAgreement{}), key).
		Where("settled = ? AND settled_at = ?", true, latest.SettledAt).
		Updates(map[string]interface{}{"settled": false, "settled_at": nil})
	if res.Error != nil {
		return errno.ErrDatabase.WithMessage(res.Error.Error())
	}
	if res.RowsAffected == 0 {
		return errno.ErrNoSuchRental
	}
	return nil
}

func (s *GormStore) Remove(ctx context.Context, key Key) error {
	res := s.keyScope(s.db.WithContext(ctx), key).Where("settled = ?", false).Delete(&model.RentalAgreement{})
	if res.Error != nil {
		return errno.ErrDatabase.WithMessage(res.Error.Error())
	}
	if res.RowsAffected == 0 {
		return errno.ErrNoSuchRental
	}
	return nil
}

func (s *GormStore) list(q *gorm.DB) ([]Agreement, error) {
	var rows []model.RentalAgreement
	if err := q.Order("expires_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, errno.ErrDatabase.WithMessage(err.Error())
	}
	out := make([]Agreement, 0, len(rows))
	for i := range rows {
		a, err := fromModel(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

func (s *GormStore) ListByLender(ctx context.Context, lender common.Address, includeSettled bool) ([]Agreement, error) {
	q := s.db.WithContext(ctx).Where("lender = ?", lender.Hex())
	if !includeSettled {
		q = q.Where("settled = ?", false)
	}
	return s.list(q)
}

func (s *GormStore) ListExpired(ctx context.Context, now int64, limit int) ([]Agreement, error) {
	q := s.db.WithContext(ctx).Where("settled = ? AND expires_at <= ?", false, now)
	if limit > 0 {
		q = q.Limit(limit)
	}
	return s.list(q)
}

func (s *GormStore) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.RentalAgreement{}).Where("settled = ?", false).Count(&n).Error
	if err != nil {
		return 0, errno.ErrDatabase.WithMessage(err.Error())
	}
	return n, nil
}
