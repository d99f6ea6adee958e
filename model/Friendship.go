package model

import "time"

// Friendship 维护一对用户的双向好友关系。
// 存储约定：user_low 取两个 uuid 中字典序较小的一个，
// uniqueIndex:uidx_pair 保证同一对用户最多一行，(A,B) 与 (B,A) 不会重复建档。
// 本子系统不删除好友关系（解除好友不在范围内）。
type Friendship struct {
	Id        int64     `gorm:"column:id;primaryKey;autoIncrement;comment:自增id"`
	UserLow   string    `gorm:"column:user_low;type:char(36);not null;uniqueIndex:uidx_pair;index;comment:字典序较小的用户uuid"`
	UserHigh  string    `gorm:"column:user_high;type:char(36);not null;uniqueIndex:uidx_pair;index;comment:字典序较大的用户uuid"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;comment:建立好友关系时间"`
}

func (Friendship) TableName() string { return "friendship" }

// CanonicalPair 返回按字典序排好的规范用户对。
// 好友关系、会话频道都以该顺序为准，保证两个方向得到同一行/同一频道。
func CanonicalPair(a, b string) (low, high string) {
	if a < b {
		return a, b
	}
	return b, a
}

// Contains 判断 uuid 是否为该关系的成员。
func (f *Friendship) Contains(userUUID string) bool {
	return f.UserLow == userUUID || f.UserHigh == userUUID
}

// PeerOf 返回关系中另一方的 uuid；非成员时返回空串。
func (f *Friendship) PeerOf(userUUID string) string {
	switch userUUID {
	case f.UserLow:
		return f.UserHigh
	case f.UserHigh:
		return f.UserLow
	default:
		return ""
	}
}
