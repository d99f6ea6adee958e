package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 业务指标统一挂在默认 Registry 上，由 /metrics 暴露。

var (
	// OnlineConnections 当前在线 WebSocket 连接数。
	OnlineConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "campusgram",
		Subsystem: "presence",
		Name:      "online_connections",
		Help:      "Current number of registered websocket connections.",
	})

	// MessagesSent 持久化成功的消息数。
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "campusgram",
		Subsystem: "chat",
		Name:      "messages_sent_total",
		Help:      "Total messages persisted and fanned out.",
	})

	// MessageSendFailures 发送失败数，按原因分类。
	MessageSendFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campusgram",
		Subsystem: "chat",
		Name:      "message_send_failures_total",
		Help:      "Total message send failures by reason.",
	}, []string{"reason"})

	// WavesRecorded 挥手记录数，promoted 标签区分是否促成好友关系。
	WavesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campusgram",
		Subsystem: "friend",
		Name:      "waves_recorded_total",
		Help:      "Total waves recorded, labeled by whether the wave promoted a friendship.",
	}, []string{"promoted"})

	// BroadcastDelivered 广播实际入队的帧数。
	BroadcastDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "campusgram",
		Subsystem: "presence",
		Name:      "broadcast_frames_delivered_total",
		Help:      "Total frames enqueued to client send queues by broadcasts.",
	})

	// PointsPublishFailures 积分事件投递失败数（含熔断拒绝）。
	PointsPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "campusgram",
		Subsystem: "points",
		Name:      "publish_failures_total",
		Help:      "Total failed points event publishes, including breaker rejections.",
	})
)
