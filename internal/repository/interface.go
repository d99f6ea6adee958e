package repository

import (
	"context"

	"CampusGram/model"
)

// WaveResult 挥手写入结果。
// Promoted 为 true 表示本次挥手命中了对方的反向挥手，好友关系已在同一事务内建立。
type WaveResult struct {
	Promoted   bool
	Friendship *model.Friendship
}

// Conversation 会话列表中的一项：某个对端的最近一条消息与未读数。
type Conversation struct {
	PeerUuid    string
	LastMessage *model.Message
	UnreadCount int64
}

// IFriendshipRepository 好友关系数据访问层接口
type IFriendshipRepository interface {
	// IsConnected 判断两用户是否已结为好友（无序对语义）。
	IsConnected(ctx context.Context, a, b string) (bool, error)
	// ListFriends 返回用户全部好友关系，按建立时间倒序。
	ListFriends(ctx context.Context, userUuid string) ([]*model.Friendship, error)
	// Prime 在好友关系建立后预热两侧缓存（尽力而为，失败只记日志）。
	Prime(ctx context.Context, a, b string)
}

// IWaveRepository 挥手数据访问层接口
type IWaveRepository interface {
	// RecordWave 记录一次有向挥手；重复挥手返回 ErrDuplicateWave。
	// 反向挥手已存在时在同一事务内建立好友关系（精确一次）。
	RecordWave(ctx context.Context, senderUuid, receiverUuid string) (*WaveResult, error)
}

// IMessageRepository 消息数据访问层接口
type IMessageRepository interface {
	// Create 持久化一条消息（id 由调用方用 snowflake 预先生成）。
	Create(ctx context.Context, msg *model.Message) error
	// ListPage 按会话分页查询，created_at 倒序、id 倒序（新→旧）。
	ListPage(ctx context.Context, userUuid, otherUuid string, page, pageSize int) ([]*model.Message, error)
	// MarkSeen 将 other → viewer 方向的未读消息置为已读，返回翻转的行数。
	MarkSeen(ctx context.Context, viewerUuid, otherUuid string) (int64, error)
	// Conversations 返回用户的会话列表：每个对端的最近一条消息与未读数。
	Conversations(ctx context.Context, userUuid string) ([]*Conversation, error)
}

// ISkipRepository 跳过记录数据访问层接口
type ISkipRepository interface {
	// Upsert 写入跳过记录，已存在时刷新 updated_at。
	Upsert(ctx context.Context, userUuid, skippedUuid string) error
}

// IBanRepository 封禁记录数据访问层接口
type IBanRepository interface {
	// ActiveBan 返回用户当前生效的封禁记录，无则返回 nil。
	ActiveBan(ctx context.Context, userUuid string) (*model.Ban, error)
}
