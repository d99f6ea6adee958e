package service

import (
	"context"

	"CampusGram/internal/repository"
	"CampusGram/model"
)

// Broadcaster 是服务层对在线推送能力的抽象，由 presence.Registry 实现。
// 服务层只管"往哪个频道发什么"，不关心连接细节，测试里用内存 fake。
type Broadcaster interface {
	Broadcast(channel string, payload []byte, excludeConnID string) int
	SendToUser(userUuid string, payload []byte) int
}

// IChatService 聊天服务接口
type IChatService interface {
	// SendMessage 校验、落库并实时分发一条私聊消息。
	SendMessage(ctx context.Context, senderUuid, receiverUuid, text, attachmentURL string) (*model.Message, error)
	// GetMessages 分页拉取会话历史（旧→新），同时把对方发来的未读翻转为已读。
	GetMessages(ctx context.Context, userUuid, otherUuid string, page int) ([]*model.Message, error)
	// MarkSeen 显式已读：翻转未读并通知对方。
	MarkSeen(ctx context.Context, viewerUuid, otherUuid string) error
	// Conversations 返回会话列表（每个对端的最近消息与未读数）。
	Conversations(ctx context.Context, userUuid string) ([]*repository.Conversation, error)
}

// IFriendService 好友服务接口
type IFriendService interface {
	// Wave 向目标用户挥手；双向命中时结为好友并发放积分。
	Wave(ctx context.Context, senderUuid, receiverUuid string) (*repository.WaveResult, error)
	// Skip 在匹配流程中跳过目标用户。
	Skip(ctx context.Context, userUuid, skippedUuid string) error
	// Friends 返回好友的对端 uuid 列表，最近结识的在前。
	Friends(ctx context.Context, userUuid string) ([]string, error)
}

// IPointsPublisher 积分事件发布接口（旁路，永不阻塞主流程）
type IPointsPublisher interface {
	// Award 异步发放积分；失败只记日志与指标。
	Award(ctx context.Context, userUuid string, points int, reason string)
	// Close 释放底层资源。
	Close() error
}
