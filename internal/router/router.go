package router

import (
	"net/http"
	"os"

	"CampusGram/config"
	"CampusGram/internal/handler"
	"CampusGram/internal/middleware"
	"CampusGram/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// InitRouter 初始化路由
// 限流策略：接入层按 IP 粗限，认证后的 API 按用户细限。
func InitRouter(
	authCfg config.AuthConfig,
	redisClient *redis.Client,
	wsHandler *handler.WSHandler,
	chatHandler *handler.ChatHandler,
	friendHandler *handler.FriendHandler,
) *gin.Engine {
	// Gin 运行模式优先读取 GIN_MODE，未设置时默认 release
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "" {
		ginMode = gin.ReleaseMode
	}
	gin.SetMode(ginMode)

	r := gin.New()

	// 恢复中间件
	r.Use(gin.Recovery())

	// 追踪中间件 (生成 trace_id)
	r.Use(util.TraceLogger())

	// 日志中间件
	r.Use(middleware.GinLogger())

	// IP 限流（认证之前，连握手失败的请求也计入）
	ipLimiter := middleware.NewRedisRateLimiter(redisClient, 50, 100)
	r.Use(middleware.IPRateLimitMiddleware(ipLimiter))

	// 健康检查（无需认证）
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// Prometheus 指标暴露接口
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// WebSocket 接入（token 走查询参数，在 handler 内鉴权）
	r.GET("/ws", wsHandler.ServeWS)

	// API 路由组（全部需要认证）
	userLimiter := middleware.NewRedisRateLimiter(redisClient, 10, 20)
	api := r.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware(authCfg, redisClient))
	api.Use(middleware.UserRateLimitMiddleware(userLimiter))
	{
		chat := api.Group("/chat")
		{
			chat.GET("/conversations", chatHandler.Conversations)
			chat.GET("/messages/:peer_uuid", chatHandler.GetMessages)
			chat.POST("/messages", chatHandler.SendMessage)
			chat.POST("/attachments", chatHandler.UploadAttachment)
		}

		friend := api.Group("/friend")
		{
			friend.POST("/wave", friendHandler.Wave)
			friend.POST("/skip", friendHandler.Skip)
			friend.GET("/list", friendHandler.Friends)
		}
	}

	return r
}
