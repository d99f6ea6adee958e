package event

import "encoding/json"

// 下行事件类型
const (
	TypeConnected           = "connected"
	TypeJoinedChannel       = "joined_channel"
	TypeLeftChannel         = "left_channel"
	TypeNewMessage          = "new_message"
	TypeMessageNotification = "message_notification"
	TypeUserTyping          = "user_typing"
	TypeUserStoppedTyping   = "user_stopped_typing"
	TypeMessagesSeen        = "messages_seen"
	TypeWaveResult          = "wave_result"
	TypeHeartbeatAck        = "heartbeat_ack"
	TypeError               = "error"
)

// 上行事件类型
const (
	TypeHeartbeat   = "heartbeat"
	TypeJoinChat    = "join_chat"
	TypeLeaveChat   = "leave_chat"
	TypeSendMessage = "send_message"
	TypeTypingStart = "typing_start"
	TypeTypingStop  = "typing_stop"
	TypeMarkSeen    = "mark_seen"
	TypeWave        = "wave"
)

// Envelope WebSocket 帧的统一信封。
// 上行时 Data 延迟解码，由 handler 按 Type 分发后再解出具体载荷。
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Marshal 编码一个下行帧。编码失败返回 nil（载荷均为本包内可控结构，正常不会发生）。
func Marshal(eventType string, data interface{}) []byte {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil
		}
		raw = encoded
	}
	frame, err := json.Marshal(Envelope{Type: eventType, Data: raw})
	if err != nil {
		return nil
	}
	return frame
}

// ========== 下行载荷 ==========

// MessagePayload 消息实体的下行形态。
type MessagePayload struct {
	Id            int64  `json:"id"`
	SenderUuid    string `json:"sender_uuid"`
	ReceiverUuid  string `json:"receiver_uuid"`
	Text          string `json:"text,omitempty"`
	AttachmentURL string `json:"attachment_url,omitempty"`
	Seen          bool   `json:"seen"`
	CreatedAt     int64  `json:"created_at"` // unix 毫秒
}

// ConnectedPayload 握手成功确认。
type ConnectedPayload struct {
	ConnID   string `json:"conn_id"`
	UserUuid string `json:"user_uuid"`
}

// NotificationPayload 个人频道上的新消息提醒。
type NotificationPayload struct {
	SenderUuid string `json:"sender_uuid"`
	Preview    string `json:"preview"`
}

// TypingPayload 正在输入/停止输入。
type TypingPayload struct {
	UserUuid string `json:"user_uuid"`
}

// SeenPayload 对端已读回执。
type SeenPayload struct {
	ViewerUuid string `json:"viewer_uuid"`
}

// WaveResultPayload 挥手结果，PeerUuid 指向对端。
type WaveResultPayload struct {
	PeerUuid string `json:"peer_uuid"`
	Promoted bool   `json:"promoted"` // true 表示双向挥手命中，已结为好友
}

// ChannelPayload 频道加入/离开确认。
type ChannelPayload struct {
	Channel string `json:"channel"`
}

// ErrorPayload 下行错误帧，只发给出错连接本身。
type ErrorPayload struct {
	Code    int32  `json:"code"`
	Message string `json:"message"`
}

// ========== 上行载荷 ==========

// PeerPayload join_chat/leave_chat/typing_start/typing_stop/mark_seen 共用。
type PeerPayload struct {
	PeerUuid string `json:"peer_uuid"`
}

// SendMessagePayload 上行发消息。
type SendMessagePayload struct {
	ReceiverUuid  string `json:"receiver_uuid"`
	Text          string `json:"text,omitempty"`
	AttachmentURL string `json:"attachment_url,omitempty"`
}

// WavePayload 上行挥手。
type WavePayload struct {
	ReceiverUuid string `json:"receiver_uuid"`
}
