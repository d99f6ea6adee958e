package ctxmeta

import (
	"context"

	"github.com/gin-gonic/gin"
)

// 上下文元数据统一走本包读写，避免业务代码散落裸字符串 key。
// 注意：key 仍使用字符串类型，与 gin.Context.Set 的键保持一致，
// 这样 handler 层 c.Set 的值可以被日志层直接取到。

const (
	KeyTraceID  = "trace_id"
	KeyUserUUID = "user_uuid"
	KeyDeviceID = "device_id"
	KeyClientIP = "client_ip"
)

// WithTraceID 注入 trace_id。
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, KeyTraceID, traceID)
}

// WithUserUUID 注入用户 uuid。
func WithUserUUID(ctx context.Context, userUUID string) context.Context {
	return context.WithValue(ctx, KeyUserUUID, userUUID)
}

// WithDeviceID 注入设备 id。
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, KeyDeviceID, deviceID)
}

// WithClientIP 注入客户端 IP。
func WithClientIP(ctx context.Context, clientIP string) context.Context {
	return context.WithValue(ctx, KeyClientIP, clientIP)
}

// TraceID 取出 trace_id，不存在时返回空串。
func TraceID(ctx context.Context) string {
	return stringValue(ctx, KeyTraceID)
}

// UserUUID 取出用户 uuid，不存在时返回空串。
func UserUUID(ctx context.Context) string {
	return stringValue(ctx, KeyUserUUID)
}

// TraceIDFromGin 从 Gin 上下文取出 trace_id（由 Trace 中间件写入）。
func TraceIDFromGin(c *gin.Context) string {
	return c.GetString(KeyTraceID)
}

// Propagate 从父 ctx 拷贝需要跨协程透传的字段到一个全新 ctx。
// 用于异步任务：保留 trace/user 信息，但脱离父 ctx 的取消与超时。
func Propagate(parent context.Context) context.Context {
	ctx := context.Background()
	for _, key := range []string{KeyTraceID, KeyUserUUID, KeyDeviceID, KeyClientIP} {
		if v := stringValue(parent, key); v != "" {
			ctx = context.WithValue(ctx, key, v)
		}
	}
	return ctx
}

func stringValue(ctx context.Context, key string) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
