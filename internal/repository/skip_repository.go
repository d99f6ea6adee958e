package repository

import (
	"context"
	"time"

	"CampusGram/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// skipRepositoryImpl 跳过记录数据访问层实现
type skipRepositoryImpl struct {
	db *gorm.DB
}

// NewSkipRepository 创建跳过仓储实例
func NewSkipRepository(db *gorm.DB) ISkipRepository {
	return &skipRepositoryImpl{db: db}
}

// Upsert 写入跳过记录。
// 重复跳过只刷新 updated_at，推荐流按该时间做时间窗过滤。
func (r *skipRepositoryImpl) Upsert(ctx context.Context, userUuid, skippedUuid string) error {
	now := time.Now()
	skip := &model.Skip{
		UserUuid:    userUuid,
		SkippedUuid: skippedUuid,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_uuid"}, {Name: "skipped_uuid"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"updated_at": now,
		}),
	}).Create(skip).Error
	if err != nil {
		return WrapDBError(err)
	}
	return nil
}
