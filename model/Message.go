package model

import "time"

// Message 私聊消息。
// Id 由 snowflake 发号器生成（非自增），便于按 id 做稳定二级排序。
// 正文与附件创建后不可变；Seen 只允许 false -> true 单向翻转。
type Message struct {
	Id            int64     `gorm:"column:id;primaryKey;comment:snowflake消息id"`
	SenderUuid    string    `gorm:"column:sender_uuid;type:char(36);not null;index:idx_pair_created;comment:发送方uuid"`
	ReceiverUuid  string    `gorm:"column:receiver_uuid;type:char(36);not null;index:idx_pair_created;comment:接收方uuid"`
	Text          string    `gorm:"column:text;type:varchar(2000);comment:消息正文"`
	AttachmentURL string    `gorm:"column:attachment_url;type:varchar(512);comment:附件URL"`
	Seen          bool      `gorm:"column:seen;not null;default:0;comment:已读标记"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime;index:idx_pair_created"`
}

func (Message) TableName() string { return "message" }
