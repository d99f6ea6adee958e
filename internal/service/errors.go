package service

import (
	"errors"

	"CampusGram/consts"
	"CampusGram/internal/repository"
)

// 服务层业务错误。handler 通过 CodeForError 统一转成业务码返回。
var (
	// ErrSelfRelation 不允许对自己发起关系/会话操作
	ErrSelfRelation = errors.New("cannot target yourself")

	// ErrInvalidMessage 正文与附件至少要有一个
	ErrInvalidMessage = errors.New("message requires text or attachment")

	// ErrNotFriend 双方还不是好友，禁止私聊
	ErrNotFriend = errors.New("users are not friends")
)

// CodeForError 将服务层/仓储层错误映射为业务码。
// 未识别的错误一律归为内部错误，不向客户端泄漏细节。
func CodeForError(err error) int32 {
	switch {
	case err == nil:
		return consts.CodeSuccess
	case errors.Is(err, ErrSelfRelation):
		return consts.CodeSelfRelation
	case errors.Is(err, ErrInvalidMessage):
		return consts.CodeMessageEmpty
	case errors.Is(err, ErrNotFriend):
		return consts.CodeNotFriend
	case errors.Is(err, repository.ErrDuplicateWave):
		return consts.CodeDuplicateWave
	case errors.Is(err, repository.ErrStorageTimeout):
		return consts.CodeStorageTimeout
	case errors.Is(err, repository.ErrRecordNotFound):
		return consts.CodeResourceNotFound
	default:
		return consts.CodeInternalError
	}
}
