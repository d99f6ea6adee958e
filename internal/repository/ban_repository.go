package repository

import (
	"context"
	"errors"
	"time"

	"CampusGram/model"

	"gorm.io/gorm"
)

// banRepositoryImpl 封禁记录数据访问层实现。
// 封禁由管理后台写入，本服务只在握手时读取。
type banRepositoryImpl struct {
	db *gorm.DB
}

// NewBanRepository 创建封禁仓储实例
func NewBanRepository(db *gorm.DB) IBanRepository {
	return &banRepositoryImpl{db: db}
}

// ActiveBan 返回用户当前生效的封禁记录（永久或未过期），无则返回 nil
func (r *banRepositoryImpl) ActiveBan(ctx context.Context, userUuid string) (*model.Ban, error) {
	var ban model.Ban
	err := r.db.WithContext(ctx).
		Where("user_uuid = ?", userUuid).
		Where("is_permanent = ? OR ban_end > ?", true, time.Now()).
		Order("is_permanent DESC, ban_end DESC").
		First(&ban).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, WrapDBError(err)
	}
	return &ban, nil
}
