package consts

// 通用错误码
const (
	CodeSuccess = 0 // 成功
)

// 客户端错误 (1xxxx)
const (
	CodeParamError       = 10001 // 参数验证失败
	CodeBodyError        = 10002 // 请求体格式错误
	CodeResourceNotFound = 10003 // 资源不存在
	CodeTooManyRequests  = 10005 // 请求过于频繁
	CodeBodyTooLarge     = 10006 // 请求体过大
)

// 认证错误 (2xxxx)
const (
	CodeUnauthorized = 20001 // 未认证
	CodeInvalidToken = 20002 // Token 无效
	CodeTokenExpired = 20003 // Token 已过期
	CodeUserBanned   = 20005 // 账号处于封禁状态
)

// 好友模块错误 (12xxx)
const (
	CodeAlreadyFriend = 12001 // 已经是好友
	CodeNotFriend     = 12003 // 不存在该好友关系
	CodeDuplicateWave = 12005 // 已经向该用户挥过手
	CodeSelfRelation  = 12006 // 不能对自己发起关系操作
)

// 消息模块错误 (13xxx)
const (
	CodeMessageSendFail = 13002 // 消息发送失败
	CodeMessageEmpty    = 13005 // 消息内容为空
	CodeAttachmentFail  = 13006 // 附件上传失败
)

// 服务端错误 (3xxxx)
const (
	CodeInternalError  = 30001 // 服务器内部错误
	CodeStorageTimeout = 30003 // 存储操作超时
)

// 错误消息映射
var CodeMessage = map[int32]string{
	CodeSuccess: "success",

	// 客户端错误
	CodeParamError:       "参数验证失败",
	CodeBodyError:        "请求体格式错误",
	CodeResourceNotFound: "资源不存在",
	CodeTooManyRequests:  "请求过于频繁",
	CodeBodyTooLarge:     "请求体过大",

	// 认证错误
	CodeUnauthorized: "未认证",
	CodeInvalidToken: "Token 无效",
	CodeTokenExpired: "Token 已过期",
	CodeUserBanned:   "账号处于封禁状态",

	// 好友模块
	CodeAlreadyFriend: "已经是好友",
	CodeNotFriend:     "不存在该好友关系",
	CodeDuplicateWave: "已经向该用户挥过手",
	CodeSelfRelation:  "不能对自己发起关系操作",

	// 消息模块
	CodeMessageSendFail: "消息发送失败",
	CodeMessageEmpty:    "消息内容为空",
	CodeAttachmentFail:  "附件上传失败",

	// 服务端错误
	CodeInternalError:  "服务器内部错误",
	CodeStorageTimeout: "存储操作超时",
}

// GetMessage 根据错误码获取错误消息
func GetMessage(code int32) string {
	if msg, ok := CodeMessage[code]; ok {
		return msg
	}
	return "未知错误"
}
