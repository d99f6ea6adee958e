package handler

import (
	"CampusGram/internal/repository"
	"CampusGram/model"
)

// ==================== 请求 ====================

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	ReceiverUuid  string `json:"receiver_uuid" binding:"required,uuid"`
	Text          string `json:"text" binding:"max=2000"`
	AttachmentURL string `json:"attachment_url" binding:"max=512"`
}

// WaveRequest 挥手请求
type WaveRequest struct {
	ReceiverUuid string `json:"receiver_uuid" binding:"required,uuid"`
}

// SkipRequest 跳过请求
type SkipRequest struct {
	SkippedUuid string `json:"skipped_uuid" binding:"required,uuid"`
}

// MessageListQuery 历史消息分页参数
type MessageListQuery struct {
	Page int `form:"page,default=1" binding:"min=1"`
}

// ==================== 响应 ====================

// MessageView 消息的对外形态
type MessageView struct {
	Id            int64  `json:"id"`
	SenderUuid    string `json:"sender_uuid"`
	ReceiverUuid  string `json:"receiver_uuid"`
	Text          string `json:"text,omitempty"`
	AttachmentURL string `json:"attachment_url,omitempty"`
	Seen          bool   `json:"seen"`
	CreatedAt     int64  `json:"created_at"` // unix 毫秒
}

// ConversationView 会话列表项
type ConversationView struct {
	PeerUuid    string       `json:"peer_uuid"`
	LastMessage *MessageView `json:"last_message"`
	UnreadCount int64        `json:"unread_count"`
}

// WaveResponse 挥手结果
type WaveResponse struct {
	Promoted bool `json:"promoted"`
}

// FriendListResponse 好友列表
type FriendListResponse struct {
	Friends []string `json:"friends"`
}

// AttachmentResponse 附件上传结果
type AttachmentResponse struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// toMessageView 实体转视图
func toMessageView(msg *model.Message) *MessageView {
	if msg == nil {
		return nil
	}
	return &MessageView{
		Id:            msg.Id,
		SenderUuid:    msg.SenderUuid,
		ReceiverUuid:  msg.ReceiverUuid,
		Text:          msg.Text,
		AttachmentURL: msg.AttachmentURL,
		Seen:          msg.Seen,
		CreatedAt:     msg.CreatedAt.UnixMilli(),
	}
}

func toMessageViews(messages []*model.Message) []*MessageView {
	views := make([]*MessageView, 0, len(messages))
	for _, msg := range messages {
		views = append(views, toMessageView(msg))
	}
	return views
}

func toConversationViews(conversations []*repository.Conversation) []*ConversationView {
	views := make([]*ConversationView, 0, len(conversations))
	for _, conv := range conversations {
		views = append(views, &ConversationView{
			PeerUuid:    conv.PeerUuid,
			LastMessage: toMessageView(conv.LastMessage),
			UnreadCount: conv.UnreadCount,
		})
	}
	return views
}
