package config

import (
	"os"
	"strings"
	"time"
)

// KafkaConfig 积分事件投递配置。
// 积分发放是旁路链路：写失败只影响积分到账，不影响主流程。
type KafkaConfig struct {
	Brokers      []string      `json:"brokers" yaml:"brokers"`
	PointsTopic  string        `json:"pointsTopic" yaml:"pointsTopic"`   // 积分事件 topic
	WriteTimeout time.Duration `json:"writeTimeout" yaml:"writeTimeout"` // 单次写入超时
	BatchTimeout time.Duration `json:"batchTimeout" yaml:"batchTimeout"` // 批量聚合等待时间
}

// DefaultKafkaConfig 返回本地开发的默认配置。
// Broker 优先读取 KAFKA_BROKERS（逗号分隔），未设置时默认连接本机。
func DefaultKafkaConfig() KafkaConfig {
	brokers := []string{"127.0.0.1:9092"}
	if env := os.Getenv("KAFKA_BROKERS"); env != "" {
		brokers = strings.Split(env, ",")
	}
	return KafkaConfig{
		Brokers:      brokers,
		PointsTopic:  "campusgram.points",
		WriteTimeout: 3 * time.Second,
		BatchTimeout: 100 * time.Millisecond,
	}
}
