package model

import "time"

// Ban 封禁记录，由管理后台写入，本服务只读。
// 生效条件：IsPermanent 为真，或 BanEnd 晚于当前时间。
type Ban struct {
	Id          int64      `gorm:"column:id;primaryKey;autoIncrement;comment:自增id"`
	UserUuid    string     `gorm:"column:user_uuid;type:char(36);not null;index;comment:被封禁用户uuid"`
	Reason      string     `gorm:"column:reason;type:varchar(255);comment:封禁原因"`
	IsPermanent bool       `gorm:"column:is_permanent;not null;default:0;comment:是否永久封禁"`
	BanStart    time.Time  `gorm:"column:ban_start;autoCreateTime"`
	BanEnd      *time.Time `gorm:"column:ban_end;comment:封禁截止时间，永久封禁时为空"`
}

func (Ban) TableName() string { return "ban" }

// ActiveAt 判断封禁在指定时刻是否生效。
func (b *Ban) ActiveAt(t time.Time) bool {
	if b.IsPermanent {
		return true
	}
	return b.BanEnd != nil && b.BanEnd.After(t)
}
