package presence

import "errors"

var (
	// ErrSameUser 不允许自己和自己组成会话频道。
	ErrSameUser = errors.New("channel requires two distinct users")
	// ErrEmptyUser 频道成员 uuid 不能为空。
	ErrEmptyUser = errors.New("channel requires non-empty user uuid")
)

// ChannelFor 推导两个用户的私聊频道名。
// 按字典序取小者在前，保证对同一对用户无论参数顺序如何都得到同一个频道。
func ChannelFor(a, b string) (string, error) {
	if a == "" || b == "" {
		return "", ErrEmptyUser
	}
	if a == b {
		return "", ErrSameUser
	}
	low, high := a, b
	if low > high {
		low, high = high, low
	}
	return "chat:" + low + ":" + high, nil
}

// PersonalChannel 推导用户的个人频道名。
// 用户上线即隐式加入，用于接收提醒、已读回执等定向事件。
func PersonalChannel(userUuid string) string {
	return "user:" + userUuid
}
