package replay

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"marketplace-core/internal/model"
	"marketplace-core/pkg/errno"
)

// GormGuard 依赖 consumed_requests.fingerprint 的唯一索引
type GormGuard struct {
	db *gorm.DB
}

func NewGormGuard(db *gorm.DB) *GormGuard {
	return &GormGuard{db: db}
}

func (g *GormGuard) Consume(ctx context.Context, c Consumption) error {
	row := model.ConsumedRequest{
		Fingerprint: c.Fingerprint,
		Signer:      c.Signer.Hex(),
		Kind:        c.Kind.String(),
		ExpiresAt:   c.ExpiresAt,
	}
	result := g.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "fingerprint"}}, DoNothing: true}).
		Create(&row)
	if result.Error != nil {
		return errno.ErrDatabase.WithMessage(fmt.Sprintf("consume request: %v", result.Error))
	}
	if result.RowsAffected == 0 {
		return errno.ErrReplayedRequest
	}
	return nil
}

func (g *GormGuard) Release(ctx context.Context, fingerprint string) error {
	err := g.db.WithContext(ctx).Where("fingerprint = ?", fingerprint).Delete(&model.ConsumedRequest{}).Error
	if err != nil {
		return errno.ErrDatabase.WithMessage(fmt.Sprintf("release request: %v", err))
	}
	return nil
}

func (g *GormGuard) Consumed(ctx context.Context, fingerprint string) (bool, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&model.ConsumedRequest{}).Where("fingerprint = ?", fingerprint).Count(&count).Error
	if err != nil {
		return false, errno.ErrDatabase.WithMessage(err.Error())
	}
	return count > 0, nil
}
