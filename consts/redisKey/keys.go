package rediskey

import (
	"fmt"
	"time"
)

// ==================== TTL 常量 ====================

const (
	// FriendRelationTTL 好友关系缓存 TTL
	FriendRelationTTL = 24 * time.Hour
	// FriendRelationEmptyTTL 好友关系空值缓存 TTL
	FriendRelationEmptyTTL = 5 * time.Minute

	// UnreadMessageTTL 未读消息计数 TTL
	UnreadMessageTTL = 7 * 24 * time.Hour
)

// ==================== Key 构造函数 ====================

// AccessTokenKey 生成 AccessToken Key: auth:at:{user_uuid}:{device_id}
func AccessTokenKey(userUUID, deviceID string) string {
	return fmt.Sprintf("auth:at:%s:%s", userUUID, deviceID)
}

// FriendRelationKey 生成好友关系 Key: user:relation:friend:{user_uuid}
func FriendRelationKey(userUUID string) string {
	return fmt.Sprintf("user:relation:friend:%s", userUUID)
}

// UnreadMessageKey 生成未读消息计数 Key: chat:unread:{receiver_uuid}:{sender_uuid}
func UnreadMessageKey(receiverUUID, senderUUID string) string {
	return fmt.Sprintf("chat:unread:%s:%s", receiverUUID, senderUUID)
}

// UserRateLimitKey 生成用户限流 Key: rate:limit:user:{user_uuid}
func UserRateLimitKey(userUUID string) string {
	return fmt.Sprintf("rate:limit:user:%s", userUUID)
}

// IPRateLimitKey 生成 IP 限流 Key: rate:limit:ip:{ip}
func IPRateLimitKey(ip string) string {
	return fmt.Sprintf("rate:limit:ip:%s", ip)
}
