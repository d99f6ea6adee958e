package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"CampusGram/config"
	"CampusGram/internal/handler"
	"CampusGram/internal/presence"
	"CampusGram/internal/repository"
	"CampusGram/internal/router"
	"CampusGram/internal/server"
	"CampusGram/internal/service"
	"CampusGram/pkg/async"
	"CampusGram/pkg/ctxmeta"
	"CampusGram/pkg/database"
	"CampusGram/pkg/logger"
	pkgminio "CampusGram/pkg/minio"
	pkgredis "CampusGram/pkg/redis"
	"CampusGram/pkg/snowflake"
)

func main() {
	// 初始化根上下文，并放入一个固定 trace_id 用于启动期日志串联。
	ctx := ctxmeta.WithTraceID(context.Background(), "0")

	// 1) 初始化日志组件（必须最先完成，后续模块初始化都依赖日志输出）。
	logCfg := config.DefaultLoggerConfig()
	l, err := logger.Build(logCfg)
	if err != nil {
		panic(err)
	}
	logger.ReplaceGlobal(l)
	defer func() {
		_ = l.Sync()
	}()

	// 2) 初始化异步任务池，并注册上下文透传函数。
	// 缓存预热、未读计数、积分投递等旁路任务都跑在这个池子里。
	async.SetContextPropagator(ctxmeta.Propagate)
	if err := async.Init(config.DefaultAsyncConfig()); err != nil {
		logger.Fatal(ctx, "异步任务池初始化失败", logger.ErrorField("error", err))
	}

	// 3) 初始化 MySQL（硬依赖，失败直接退出）。
	db, err := database.Build(config.DefaultMySQLConfig())
	if err != nil {
		logger.Fatal(ctx, "MySQL 初始化失败", logger.ErrorField("error", err))
	}
	database.ReplaceGlobal(db)

	// 4) 初始化 Redis。
	// 降级策略：Redis 不可用时服务仍可启动，缓存与限流能力受限。
	redisCfg := config.DefaultRedisConfig()
	redisClient, err := pkgredis.Build(redisCfg)
	if err != nil {
		logger.Warn(ctx, "Redis 初始化失败，降级为无 Redis 模式",
			logger.ErrorField("error", err),
		)
		redisClient = nil
	} else {
		pkgredis.ReplaceGlobal(redisClient)
		logger.Info(ctx, "Redis 初始化成功",
			logger.String("addr", redisCfg.Addr),
		)
	}

	// 5) 初始化雪花 ID 节点（消息主键依赖）。
	if err := snowflake.Init(config.DefaultSnowflakeConfig()); err != nil {
		logger.Fatal(ctx, "雪花 ID 节点初始化失败", logger.ErrorField("error", err))
	}

	// 6) 初始化附件存储。
	// 降级策略：MinIO 不可用时附件上传接口返回失败，消息收发不受影响。
	minioClient, err := pkgminio.Build(config.DefaultMinIOConfig())
	if err != nil {
		logger.Warn(ctx, "附件存储初始化失败，附件上传不可用",
			logger.ErrorField("error", err),
		)
		minioClient = nil
	} else {
		pkgminio.ReplaceGlobal(minioClient)
	}

	// 7) 组装数据访问层。
	friendshipRepo := repository.NewFriendshipRepository(db, redisClient)
	waveRepo := repository.NewWaveRepository(db)
	messageRepo := repository.NewMessageRepository(db, redisClient)
	skipRepo := repository.NewSkipRepository(db)
	banRepo := repository.NewBanRepository(db)

	// 8) 组装在线态与服务层。
	// 积分投递走 Kafka 旁路，POINTS_DISABLED=1 时换成空实现（本地开发免 Kafka）。
	registry := presence.NewRegistry()
	typingTracker := presence.NewTypingTracker(registry)

	var points service.IPointsPublisher
	if os.Getenv("POINTS_DISABLED") == "1" {
		points = service.NewNoopPointsPublisher()
	} else {
		points = service.NewPointsPublisher(config.DefaultKafkaConfig())
	}

	chatCfg := config.DefaultChatConfig()
	authCfg := config.DefaultAuthConfig()
	chatService := service.NewChatService(messageRepo, friendshipRepo, registry, chatCfg)
	friendService := service.NewFriendService(friendshipRepo, waveRepo, skipRepo, registry, points)

	// 9) 组装接入层并构建 HTTP 服务。
	wsHandler := handler.NewWSHandler(registry, typingTracker, chatService, friendService, banRepo, authCfg, chatCfg)
	chatHandler := handler.NewChatHandler(chatService, minioClient)
	friendHandler := handler.NewFriendHandler(friendService)

	engine := router.InitRouter(authCfg, redisClient, wsHandler, chatHandler, friendHandler)
	srvCfg := config.DefaultServerConfig()
	srv := server.New(srvCfg, engine)

	// 10) 后台启动 HTTP 监听。
	go func() {
		logger.Info(ctx, "服务启动中",
			logger.String("addr", srvCfg.Addr),
		)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "服务启动失败",
				logger.ErrorField("error", err),
			)
		}
	}()

	// 11) 阻塞等待系统退出信号（Ctrl+C / SIGTERM）。
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// 12) 优雅关闭流程：
	// - 先关闭在线注册表，主动断开所有 WebSocket 连接；
	// - 再关闭 HTTP 服务，等待进行中的请求结束；
	// - 最后依次释放异步池与外部连接。
	logger.Info(ctx, "服务开始优雅停机")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	registry.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "HTTP 服务优雅停机失败",
			logger.ErrorField("error", err),
		)
	}

	if err := async.Release(); err != nil {
		logger.Warn(ctx, "异步任务池释放失败", logger.ErrorField("error", err))
	}
	if err := points.Close(); err != nil {
		logger.Warn(ctx, "积分投递通道关闭失败", logger.ErrorField("error", err))
	}
	if redisClient != nil {
		if err := pkgredis.Close(); err != nil {
			logger.Warn(ctx, "Redis 连接关闭失败", logger.ErrorField("error", err))
		}
	}
	if err := database.Close(); err != nil {
		logger.Warn(ctx, "MySQL 连接关闭失败", logger.ErrorField("error", err))
	}

	logger.Info(ctx, "服务已退出")
}
