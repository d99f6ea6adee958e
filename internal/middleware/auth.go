package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"CampusGram/config"
	rediskey "CampusGram/consts/redisKey"
	"CampusGram/pkg/ctxmeta"
	"CampusGram/pkg/logger"
	"CampusGram/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// JWTAuthMiddleware JWT 认证中间件
// 从请求头中提取 Token 并验证，验证通过后将用户信息存入 Context。
// redisClient 非空时附加吊销检查：账号服务在 auth:at:{user}:{device} 写入
// 当前有效 token 的哈希，不匹配视为已被踢下线；key 不存在时降级放行
//（账号服务未同步时不应把所有人挡在门外）。
func JWTAuthMiddleware(authCfg config.AuthConfig, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 从 Header 中获取 Authorization
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			// 客户端请求错误,属于正常业务流程,不记录日志
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    401,
				"message": "未提供认证信息",
			})
			c.Abort()
			return
		}

		// 2. 验证格式: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    401,
				"message": "认证格式错误",
			})
			c.Abort()
			return
		}

		tokenString := parts[1]

		// 3. 解析并验证 Token
		claims, err := util.ParseToken(authCfg, tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    401,
				"message": "Token 无效或已过期",
			})
			c.Abort()
			return
		}

		// 4. 吊销检查（可选）
		if redisClient != nil && !tokenStillActive(c, redisClient, claims, tokenString) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    401,
				"message": "Token 已失效",
			})
			c.Abort()
			return
		}

		// 5. 将用户信息存入 Context，供后续 Handler 使用
		c.Set(ctxmeta.KeyUserUUID, claims.UserUuid)
		c.Set(ctxmeta.KeyDeviceID, claims.DeviceId)

		c.Next()
	}
}

// tokenStillActive 校验 token 是否仍是该设备的当前 token。
// Redis 故障时降级放行，JWT 签名校验已经通过。
func tokenStillActive(c *gin.Context, redisClient *redis.Client, claims *util.Claims, tokenString string) bool {
	stored, err := redisClient.Get(c.Request.Context(),
		rediskey.AccessTokenKey(claims.UserUuid, claims.DeviceId)).Result()
	if err == redis.Nil {
		return true
	}
	if err != nil {
		logger.Warn(c.Request.Context(), "Token 吊销检查失败，降级放行",
			logger.String("user_uuid", claims.UserUuid),
			logger.ErrorField("error", err),
		)
		return true
	}
	return stored == HashToken(tokenString)
}

// HashToken 计算 token 的存储哈希（避免在 Redis 里存明文 token）。
func HashToken(tokenString string) string {
	sum := sha256.Sum256([]byte(tokenString))
	return hex.EncodeToString(sum[:])
}

// GetUserUUID 从 Context 中获取当前登录用户的 UUID
func GetUserUUID(c *gin.Context) (string, bool) {
	userUuid, exists := c.Get(ctxmeta.KeyUserUUID)
	if !exists {
		return "", false
	}
	uuid, ok := userUuid.(string)
	return uuid, ok
}

// GetDeviceID 从 Context 中获取当前设备 ID
func GetDeviceID(c *gin.Context) (string, bool) {
	deviceId, exists := c.Get(ctxmeta.KeyDeviceID)
	if !exists {
		return "", false
	}
	id, ok := deviceId.(string)
	return id, ok
}
