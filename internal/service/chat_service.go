package service

import (
	"context"
	"strings"
	"time"

	"CampusGram/config"
	"CampusGram/internal/event"
	"CampusGram/internal/metrics"
	"CampusGram/internal/presence"
	"CampusGram/internal/repository"
	"CampusGram/model"
	"CampusGram/pkg/logger"
	"CampusGram/pkg/snowflake"
)

const attachmentPreview = "[附件]"

// chatServiceImpl 聊天服务实现
type chatServiceImpl struct {
	messageRepo    repository.IMessageRepository
	friendshipRepo repository.IFriendshipRepository
	broadcaster    Broadcaster
	cfg            config.ChatConfig
}

// NewChatService 创建聊天服务实例
func NewChatService(
	messageRepo repository.IMessageRepository,
	friendshipRepo repository.IFriendshipRepository,
	broadcaster Broadcaster,
	cfg config.ChatConfig,
) IChatService {
	return &chatServiceImpl{
		messageRepo:    messageRepo,
		friendshipRepo: friendshipRepo,
		broadcaster:    broadcaster,
		cfg:            cfg,
	}
}

// SendMessage 发送一条私聊消息。
// 流程：参数校验 -> 好友门禁 -> 限时落库 -> 会话频道广播 -> 个人频道提醒。
// 好友检查放在落库前的最后一刻，缩短"检查通过但关系已变"的窗口
//（本子系统内好友关系只增不减，这个窗口只会漏拦截新好友，不会放行陌生人）。
func (s *chatServiceImpl) SendMessage(ctx context.Context, senderUuid, receiverUuid, text, attachmentURL string) (*model.Message, error) {
	if senderUuid == "" || receiverUuid == "" || senderUuid == receiverUuid {
		return nil, ErrSelfRelation
	}
	text = strings.TrimSpace(text)
	if text == "" && attachmentURL == "" {
		metrics.MessageSendFailures.WithLabelValues("empty").Inc()
		return nil, ErrInvalidMessage
	}

	connected, err := s.friendshipRepo.IsConnected(ctx, senderUuid, receiverUuid)
	if err != nil {
		metrics.MessageSendFailures.WithLabelValues("gate_error").Inc()
		return nil, err
	}
	if !connected {
		metrics.MessageSendFailures.WithLabelValues("not_friend").Inc()
		return nil, ErrNotFriend
	}

	msg := &model.Message{
		Id:            snowflake.NextID(),
		SenderUuid:    senderUuid,
		ReceiverUuid:  receiverUuid,
		Text:          text,
		AttachmentURL: attachmentURL,
		Seen:          false,
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StorageTimeout)
	defer cancel()
	if err := s.messageRepo.Create(storeCtx, msg); err != nil {
		metrics.MessageSendFailures.WithLabelValues("storage").Inc()
		logger.Error(ctx, "消息落库失败",
			logger.String("sender", senderUuid),
			logger.String("receiver", receiverUuid),
			logger.ErrorField("error", err),
		)
		return nil, err
	}
	metrics.MessagesSent.Inc()

	// 落库之后的分发是尽力而为：离线用户走会话历史补齐
	channel, chErr := presence.ChannelFor(senderUuid, receiverUuid)
	if chErr == nil {
		if frame := event.Marshal(event.TypeNewMessage, toMessagePayload(msg)); frame != nil {
			delivered := s.broadcaster.Broadcast(channel, frame, "")
			metrics.BroadcastDelivered.Add(float64(delivered))
		}
	}

	if frame := event.Marshal(event.TypeMessageNotification, event.NotificationPayload{
		SenderUuid: senderUuid,
		Preview:    s.preview(msg),
	}); frame != nil {
		s.broadcaster.SendToUser(receiverUuid, frame)
	}

	return msg, nil
}

// GetMessages 分页拉取会话历史。
// 存储按新→旧取页（第 1 页永远是最新的 50 条），返回前反转为旧→新供展示。
// 读即已读：有未读被翻转时，往对方个人频道推一帧 messages_seen。
func (s *chatServiceImpl) GetMessages(ctx context.Context, userUuid, otherUuid string, page int) ([]*model.Message, error) {
	if userUuid == "" || otherUuid == "" || userUuid == otherUuid {
		return nil, ErrSelfRelation
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StorageTimeout)
	defer cancel()

	messages, err := s.messageRepo.ListPage(storeCtx, userUuid, otherUuid, page, s.cfg.HistoryPageSize)
	if err != nil {
		return nil, err
	}

	flipped, err := s.messageRepo.MarkSeen(storeCtx, userUuid, otherUuid)
	if err != nil {
		// 翻转失败不影响本次读取，下次拉取还有机会
		logger.Warn(ctx, "已读翻转失败",
			logger.String("viewer", userUuid),
			logger.String("other", otherUuid),
			logger.ErrorField("error", err),
		)
	} else if flipped > 0 {
		s.notifySeen(userUuid, otherUuid)
		// 返回给调用方的快照同步翻转，避免展示和库里状态不一致
		for _, msg := range messages {
			if msg.SenderUuid == otherUuid {
				msg.Seen = true
			}
		}
	}

	// 反转为旧→新
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// MarkSeen 显式已读。
// 无论是否真的翻转了行都通知对方：重复投递无害，对端按幂等处理。
func (s *chatServiceImpl) MarkSeen(ctx context.Context, viewerUuid, otherUuid string) error {
	if viewerUuid == "" || otherUuid == "" || viewerUuid == otherUuid {
		return ErrSelfRelation
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StorageTimeout)
	defer cancel()

	if _, err := s.messageRepo.MarkSeen(storeCtx, viewerUuid, otherUuid); err != nil {
		return err
	}
	s.notifySeen(viewerUuid, otherUuid)
	return nil
}

// Conversations 返回会话列表
func (s *chatServiceImpl) Conversations(ctx context.Context, userUuid string) ([]*repository.Conversation, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StorageTimeout)
	defer cancel()
	return s.messageRepo.Conversations(storeCtx, userUuid)
}

// notifySeen 往对方个人频道推已读回执
func (s *chatServiceImpl) notifySeen(viewerUuid, otherUuid string) {
	if frame := event.Marshal(event.TypeMessagesSeen, event.SeenPayload{ViewerUuid: viewerUuid}); frame != nil {
		s.broadcaster.SendToUser(otherUuid, frame)
	}
}

// preview 生成通知里的正文预览：按 rune 截断，纯附件用占位文案
func (s *chatServiceImpl) preview(msg *model.Message) string {
	if msg.Text == "" {
		return attachmentPreview
	}
	runes := []rune(msg.Text)
	if len(runes) <= s.cfg.PreviewLength {
		return msg.Text
	}
	return string(runes[:s.cfg.PreviewLength]) + "..."
}

// toMessagePayload 将消息实体转为下行载荷
func toMessagePayload(msg *model.Message) event.MessagePayload {
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return event.MessagePayload{
		Id:            msg.Id,
		SenderUuid:    msg.SenderUuid,
		ReceiverUuid:  msg.ReceiverUuid,
		Text:          msg.Text,
		AttachmentURL: msg.AttachmentURL,
		Seen:          msg.Seen,
		CreatedAt:     createdAt.UnixMilli(),
	}
}
