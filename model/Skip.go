package model

import "time"

// Skip 匹配流程中的"跳过"记录。
// 同一有序对只保留一条，重复跳过刷新 updated_at（推荐流按时间窗过滤）。
type Skip struct {
	Id          int64     `gorm:"column:id;primaryKey;autoIncrement;comment:自增id"`
	UserUuid    string    `gorm:"column:user_uuid;type:char(36);not null;uniqueIndex:uidx_user_skipped;comment:操作方uuid"`
	SkippedUuid string    `gorm:"column:skipped_uuid;type:char(36);not null;uniqueIndex:uidx_user_skipped;comment:被跳过方uuid"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime;index"`
}

func (Skip) TableName() string { return "skip" }
