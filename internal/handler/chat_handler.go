package handler

import (
	"CampusGram/consts"
	"CampusGram/internal/middleware"
	"CampusGram/internal/service"
	"CampusGram/pkg/logger"
	"CampusGram/pkg/minio"
	"CampusGram/pkg/result"

	"github.com/gin-gonic/gin"
)

// ChatHandler 聊天 HTTP 接口
type ChatHandler struct {
	chatService service.IChatService
	minioClient *minio.Client
}

// NewChatHandler 创建聊天处理器。minioClient 为 nil 时附件上传接口不可用。
func NewChatHandler(chatService service.IChatService, minioClient *minio.Client) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		minioClient: minioClient,
	}
}

// Conversations 会话列表
// GET /api/v1/chat/conversations
func (h *ChatHandler) Conversations(c *gin.Context) {
	userUuid, _ := middleware.GetUserUUID(c)

	conversations, err := h.chatService.Conversations(middleware.NewContextWithGin(c), userUuid)
	if err != nil {
		result.Fail(c, nil, service.CodeForError(err))
		return
	}

	result.Success(c, toConversationViews(conversations))
}

// GetMessages 分页拉取与某人的历史消息（旧→新）
// GET /api/v1/chat/messages/:peer_uuid?page=N
func (h *ChatHandler) GetMessages(c *gin.Context) {
	userUuid, _ := middleware.GetUserUUID(c)
	peerUuid := c.Param("peer_uuid")

	var query MessageListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	messages, err := h.chatService.GetMessages(middleware.NewContextWithGin(c), userUuid, peerUuid, query.Page)
	if err != nil {
		result.Fail(c, nil, service.CodeForError(err))
		return
	}

	result.Success(c, toMessageViews(messages))
}

// SendMessage 通过 HTTP 发送消息（WebSocket 不在线时的回退通道）
// POST /api/v1/chat/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userUuid, _ := middleware.GetUserUUID(c)

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	msg, err := h.chatService.SendMessage(middleware.NewContextWithGin(c),
		userUuid, req.ReceiverUuid, req.Text, req.AttachmentURL)
	if err != nil {
		result.Fail(c, nil, service.CodeForError(err))
		return
	}

	result.Success(c, toMessageView(msg))
}

// UploadAttachment 上传消息附件，返回可写入消息的 URL
// POST /api/v1/chat/attachments (multipart/form-data, 字段名 file)
func (h *ChatHandler) UploadAttachment(c *gin.Context) {
	if h.minioClient == nil {
		result.FailWithMessage(c, nil, "附件存储未启用", consts.CodeAttachmentFail)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		result.Fail(c, nil, consts.CodeAttachmentFail)
		return
	}
	defer file.Close()

	ctx := middleware.NewContextWithGin(c)
	upload, err := h.minioClient.UploadAttachment(ctx, file, fileHeader.Size, fileHeader.Filename)
	if err != nil {
		logger.Warn(ctx, "附件上传失败",
			logger.String("file_name", fileHeader.Filename),
			logger.Int64("size", fileHeader.Size),
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, consts.CodeAttachmentFail)
		return
	}

	result.Success(c, AttachmentResponse{
		URL:         upload.URL,
		ContentType: upload.ContentType,
		Size:        upload.Size,
	})
}
