package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"CampusGram/config"
	"CampusGram/consts"
	"CampusGram/internal/event"
	"CampusGram/internal/metrics"
	"CampusGram/internal/presence"
	"CampusGram/internal/repository"
	"CampusGram/internal/service"
	"CampusGram/pkg/ctxmeta"
	"CampusGram/pkg/logger"
	"CampusGram/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// upgrader WebSocket 升级器
// 读写缓冲区各 1KB，聊天帧都很小。跨域检查交给网关层。
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler WebSocket 接入处理器。
// 负责握手鉴权、连接生命周期管理，以及上行帧按类型分发到各服务。
type WSHandler struct {
	registry      *presence.Registry
	typingTracker *presence.TypingTracker
	chatService   service.IChatService
	friendService service.IFriendService
	banRepo       repository.IBanRepository
	authConfig    config.AuthConfig
	chatConfig    config.ChatConfig
}

// NewWSHandler 创建 WebSocket 处理器
func NewWSHandler(
	registry *presence.Registry,
	typingTracker *presence.TypingTracker,
	chatService service.IChatService,
	friendService service.IFriendService,
	banRepo repository.IBanRepository,
	authConfig config.AuthConfig,
	chatConfig config.ChatConfig,
) *WSHandler {
	return &WSHandler{
		registry:      registry,
		typingTracker: typingTracker,
		chatService:   chatService,
		friendService: friendService,
		banRepo:       banRepo,
		authConfig:    authConfig,
		chatConfig:    chatConfig,
	}
}

// ServeWS 处理 WebSocket 握手。
// 浏览器的 WebSocket API 不支持自定义 Header，token 和 device_id 走查询参数。
// 鉴权与封禁检查都在升级前完成，失败直接返回 HTTP 状态码。
// GET /ws?token=xxx&device_id=xxx
func (h *WSHandler) ServeWS(c *gin.Context) {
	token := c.Query("token")
	deviceId := c.Query("device_id")
	if token == "" || deviceId == "" {
		writeAuthError(c, consts.CodeUnauthorized, "缺少 token 或 device_id")
		return
	}

	claims, err := util.ParseToken(h.authConfig, token)
	if err != nil {
		writeAuthError(c, consts.CodeInvalidToken, "Token 无效或已过期")
		return
	}

	connCtx := ctxmeta.WithDeviceID(
		ctxmeta.WithUserUUID(
			ctxmeta.WithTraceID(context.Background(), util.NewUUID()),
			claims.UserUuid),
		deviceId)

	if h.banRepo != nil {
		ban, err := h.banRepo.ActiveBan(connCtx, claims.UserUuid)
		if err != nil {
			logger.Error(connCtx, "封禁状态查询失败", logger.ErrorField("error", err))
			writeAuthError(c, consts.CodeInternalError, "服务暂不可用")
			return
		}
		if ban != nil {
			writeAuthError(c, consts.CodeUserBanned, "账号处于封禁状态")
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 失败时 gorilla 已经写了响应
		logger.Warn(connCtx, "WebSocket 升级失败", logger.ErrorField("error", err))
		return
	}

	connID := util.NewUUID()
	client := presence.NewClient(conn, connID, claims.UserUuid, h.chatConfig.FrameRate, h.chatConfig.FrameBurst)

	if err := h.registry.Register(client); err != nil {
		logger.Warn(connCtx, "连接注册失败",
			logger.String("conn_id", connID),
			logger.ErrorField("error", err),
		)
		client.Close()
		return
	}
	metrics.OnlineConnections.Inc()

	logger.Info(connCtx, "WebSocket 连接建立",
		logger.String("conn_id", connID),
	)

	client.Enqueue(event.Marshal(event.TypeConnected, event.ConnectedPayload{
		ConnID:   connID,
		UserUuid: claims.UserUuid,
	}))

	client.Run(connCtx,
		func(raw []byte) {
			h.handleMessage(connCtx, client, raw)
		},
		func() {
			h.onClose(connCtx, connID)
		},
	)
}

// handleMessage 按事件类型分发一条上行帧。
// 所有失败都转成 error 帧回给本连接，不断开连接。
func (h *WSHandler) handleMessage(ctx context.Context, client *presence.Client, raw []byte) {
	var envelope event.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		h.sendErrorFrame(client, consts.CodeBodyError)
		return
	}

	switch envelope.Type {
	case event.TypeHeartbeat:
		client.Enqueue(event.Marshal(event.TypeHeartbeatAck, nil))
	case event.TypeJoinChat:
		h.handleJoinChat(client, envelope.Data)
	case event.TypeLeaveChat:
		h.handleLeaveChat(client, envelope.Data)
	case event.TypeSendMessage:
		h.handleSendMessage(ctx, client, envelope.Data)
	case event.TypeTypingStart:
		h.handleTypingStart(client, envelope.Data)
	case event.TypeTypingStop:
		h.handleTypingStop(client)
	case event.TypeMarkSeen:
		h.handleMarkSeen(ctx, client, envelope.Data)
	case event.TypeWave:
		h.handleWave(ctx, client, envelope.Data)
	default:
		logger.Debug(ctx, "未知的上行事件类型",
			logger.String("type", envelope.Type),
		)
		h.sendErrorFrame(client, consts.CodeParamError)
	}
}

// handleJoinChat 加入与某人的会话频道
func (h *WSHandler) handleJoinChat(client *presence.Client, data json.RawMessage) {
	var payload event.PeerPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendErrorFrame(client, consts.CodeBodyError)
		return
	}

	channel, err := presence.ChannelFor(client.UserUUID(), payload.PeerUuid)
	if err != nil {
		h.sendErrorFrame(client, consts.CodeSelfRelation)
		return
	}

	if err := h.registry.Join(client.ID(), channel); err != nil {
		h.sendErrorFrame(client, consts.CodeInternalError)
		return
	}
	client.Enqueue(event.Marshal(event.TypeJoinedChannel, event.ChannelPayload{Channel: channel}))
}

// handleLeaveChat 离开会话频道
func (h *WSHandler) handleLeaveChat(client *presence.Client, data json.RawMessage) {
	var payload event.PeerPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendErrorFrame(client, consts.CodeBodyError)
		return
	}

	channel, err := presence.ChannelFor(client.UserUUID(), payload.PeerUuid)
	if err != nil {
		h.sendErrorFrame(client, consts.CodeSelfRelation)
		return
	}

	if err := h.registry.Leave(client.ID(), channel); err != nil {
		h.sendErrorFrame(client, consts.CodeInternalError)
		return
	}
	client.Enqueue(event.Marshal(event.TypeLeftChannel, event.ChannelPayload{Channel: channel}))
}

// handleSendMessage 发送消息。校验、落库和频道分发都在服务层完成。
func (h *WSHandler) handleSendMessage(ctx context.Context, client *presence.Client, data json.RawMessage) {
	var payload event.SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendErrorFrame(client, consts.CodeBodyError)
		return
	}

	if _, err := h.chatService.SendMessage(ctx, client.UserUUID(),
		payload.ReceiverUuid, payload.Text, payload.AttachmentURL); err != nil {
		h.sendErrorFrame(client, service.CodeForError(err))
	}
}

// handleTypingStart 记录输入状态并通知会话频道内的对端（不回显给自己）。
func (h *WSHandler) handleTypingStart(client *presence.Client, data json.RawMessage) {
	var payload event.PeerPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendErrorFrame(client, consts.CodeBodyError)
		return
	}

	channel, err := presence.ChannelFor(client.UserUUID(), payload.PeerUuid)
	if err != nil {
		h.sendErrorFrame(client, consts.CodeSelfRelation)
		return
	}

	if err := h.typingTracker.Start(client.ID(), client.UserUUID(), payload.PeerUuid); err != nil {
		h.sendErrorFrame(client, consts.CodeInternalError)
		return
	}
	h.registry.Broadcast(channel,
		event.Marshal(event.TypeUserTyping, event.TypingPayload{UserUuid: client.UserUUID()}),
		client.ID())
}

// handleTypingStop 清除输入状态。没有活跃的输入记录时静默忽略。
func (h *WSHandler) handleTypingStop(client *presence.Client) {
	indicator, ok := h.typingTracker.Stop(client.ID())
	if !ok {
		return
	}
	h.broadcastTypingStopped(indicator)
}

// handleMarkSeen 标记某会话的消息为已读
func (h *WSHandler) handleMarkSeen(ctx context.Context, client *presence.Client, data json.RawMessage) {
	var payload event.PeerPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendErrorFrame(client, consts.CodeBodyError)
		return
	}

	if err := h.chatService.MarkSeen(ctx, client.UserUUID(), payload.PeerUuid); err != nil {
		h.sendErrorFrame(client, service.CodeForError(err))
	}
}

// handleWave 挥手。结果直接回给本连接，对方的通知由服务层推送。
func (h *WSHandler) handleWave(ctx context.Context, client *presence.Client, data json.RawMessage) {
	var payload event.WavePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendErrorFrame(client, consts.CodeBodyError)
		return
	}

	waveResult, err := h.friendService.Wave(ctx, client.UserUUID(), payload.ReceiverUuid)
	if err != nil {
		h.sendErrorFrame(client, service.CodeForError(err))
		return
	}

	client.Enqueue(event.Marshal(event.TypeWaveResult, event.WaveResultPayload{
		PeerUuid: payload.ReceiverUuid,
		Promoted: waveResult.Promoted,
	}))
}

// onClose 连接关闭后的清理：输入状态、注册表、指标。
// 输入状态要先于注销清理，清理后的广播才能送达仍在频道里的对端。
func (h *WSHandler) onClose(ctx context.Context, connID string) {
	if indicator, ok := h.typingTracker.Stop(connID); ok {
		h.broadcastTypingStopped(indicator)
	}

	if userUuid := h.registry.Unregister(connID); userUuid != "" {
		metrics.OnlineConnections.Dec()
		logger.Info(ctx, "WebSocket 连接关闭",
			logger.String("conn_id", connID),
		)
	}
}

// broadcastTypingStopped 向会话频道广播停止输入（跳过发起方自己的连接）。
func (h *WSHandler) broadcastTypingStopped(indicator presence.Indicator) {
	channel, err := presence.ChannelFor(indicator.UserUuid, indicator.PeerUuid)
	if err != nil {
		return
	}
	h.registry.Broadcast(channel,
		event.Marshal(event.TypeUserStoppedTyping, event.TypingPayload{UserUuid: indicator.UserUuid}),
		indicator.ConnID)
}

// sendErrorFrame 给出错连接发送一帧错误事件
func (h *WSHandler) sendErrorFrame(client *presence.Client, code int32) {
	client.Enqueue(event.Marshal(event.TypeError, event.ErrorPayload{
		Code:    code,
		Message: consts.GetMessage(code),
	}))
}

// writeAuthError 升级前的鉴权失败，直接以 HTTP 状态返回
func writeAuthError(c *gin.Context, code int32, message string) {
	status := http.StatusUnauthorized
	if code == consts.CodeInternalError {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}
