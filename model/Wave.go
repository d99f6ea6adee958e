package model

import "time"

// Wave 单向的"挥手"意向信号。
// uniqueIndex:uidx_sender_receiver 保证同一有序对 (sender, receiver) 最多一条；
// 双方互相挥手后由仓储层在同一事务内提升为 Friendship。
type Wave struct {
	Id           int64     `gorm:"column:id;primaryKey;autoIncrement;comment:自增id"`
	SenderUuid   string    `gorm:"column:sender_uuid;type:char(36);not null;uniqueIndex:uidx_sender_receiver;comment:发起方uuid"`
	ReceiverUuid string    `gorm:"column:receiver_uuid;type:char(36);not null;index;uniqueIndex:uidx_sender_receiver;comment:接收方uuid"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Wave) TableName() string { return "wave" }
