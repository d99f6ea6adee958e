package service

import (
	"context"
	"encoding/json"
	"time"

	"CampusGram/config"
	"CampusGram/internal/metrics"
	"CampusGram/pkg/async"
	"CampusGram/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
)

// pointsEvent 积分事件载荷，由下游积分服务消费。
type pointsEvent struct {
	UserUuid  string `json:"user_uuid"`
	Points    int    `json:"points"`
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"` // unix 毫秒
}

// kafkaPointsPublisher 通过 Kafka 投递积分事件。
// 熔断器包住写入：Kafka 不可用时快速失败，不让旁路任务堆满协程池。
type kafkaPointsPublisher struct {
	writer  *kafka.Writer
	breaker *gobreaker.CircuitBreaker
}

// NewPointsPublisher 创建积分事件发布器。
func NewPointsPublisher(cfg config.KafkaConfig) IPointsPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.PointsTopic,
		Balancer:     &kafka.Hash{}, // 按 user_uuid 分区，同一用户的事件保序
		WriteTimeout: cfg.WriteTimeout,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireOne,
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "points-publisher",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "积分发布器熔断状态变更",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})

	return &kafkaPointsPublisher{writer: writer, breaker: breaker}
}

// Award 异步投递一条积分事件。
// 投递失败（含熔断开路）只记日志与指标，调用方永远看不到错误。
func (p *kafkaPointsPublisher) Award(ctx context.Context, userUuid string, points int, reason string) {
	if userUuid == "" || points == 0 {
		return
	}

	payload, err := json.Marshal(pointsEvent{
		UserUuid:  userUuid,
		Points:    points,
		Reason:    reason,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return
	}

	async.RunSafe(ctx, func(runCtx context.Context) {
		_, err := p.breaker.Execute(func() (interface{}, error) {
			return nil, p.writer.WriteMessages(runCtx, kafka.Message{
				Key:   []byte(userUuid),
				Value: payload,
			})
		})
		if err != nil {
			metrics.PointsPublishFailures.Inc()
			logger.Warn(runCtx, "积分事件投递失败",
				logger.String("user_uuid", userUuid),
				logger.Int("points", points),
				logger.String("reason", reason),
				logger.ErrorField("error", err),
			)
		}
	}, 10*time.Second)
}

// Close 关闭底层 Kafka writer。
func (p *kafkaPointsPublisher) Close() error {
	return p.writer.Close()
}

// noopPointsPublisher 空实现，测试或未配置 Kafka 时使用。
type noopPointsPublisher struct{}

// NewNoopPointsPublisher 创建空积分发布器。
func NewNoopPointsPublisher() IPointsPublisher {
	return noopPointsPublisher{}
}

func (noopPointsPublisher) Award(context.Context, string, int, string) {}
func (noopPointsPublisher) Close() error                               { return nil }
