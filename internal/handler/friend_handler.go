package handler

import (
	"CampusGram/consts"
	"CampusGram/internal/middleware"
	"CampusGram/internal/service"
	"CampusGram/pkg/result"

	"github.com/gin-gonic/gin"
)

// FriendHandler 好友 HTTP 接口
type FriendHandler struct {
	friendService service.IFriendService
}

// NewFriendHandler 创建好友处理器
func NewFriendHandler(friendService service.IFriendService) *FriendHandler {
	return &FriendHandler{friendService: friendService}
}

// Wave 向目标用户挥手
// POST /api/v1/friend/wave
func (h *FriendHandler) Wave(c *gin.Context) {
	userUuid, _ := middleware.GetUserUUID(c)

	var req WaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	waveResult, err := h.friendService.Wave(middleware.NewContextWithGin(c), userUuid, req.ReceiverUuid)
	if err != nil {
		result.Fail(c, nil, service.CodeForError(err))
		return
	}

	result.Success(c, WaveResponse{Promoted: waveResult.Promoted})
}

// Skip 在匹配流程中跳过目标用户
// POST /api/v1/friend/skip
func (h *FriendHandler) Skip(c *gin.Context) {
	userUuid, _ := middleware.GetUserUUID(c)

	var req SkipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	if err := h.friendService.Skip(middleware.NewContextWithGin(c), userUuid, req.SkippedUuid); err != nil {
		result.Fail(c, nil, service.CodeForError(err))
		return
	}

	result.Success(c, nil)
}

// Friends 好友列表
// GET /api/v1/friend/list
func (h *FriendHandler) Friends(c *gin.Context) {
	userUuid, _ := middleware.GetUserUUID(c)

	friends, err := h.friendService.Friends(middleware.NewContextWithGin(c), userUuid)
	if err != nil {
		result.Fail(c, nil, service.CodeForError(err))
		return
	}

	result.Success(c, FriendListResponse{Friends: friends})
}
