package config

import (
	"os"
	"strconv"
)

// SnowflakeConfig 消息 ID 发号器配置。
// 单进程部署时节点号固定即可；多实例部署需要保证节点号唯一。
type SnowflakeConfig struct {
	NodeID int64 `json:"nodeId" yaml:"nodeId"`
}

// DefaultSnowflakeConfig 返回默认配置。
// 节点号优先读取 SNOWFLAKE_NODE_ID。
func DefaultSnowflakeConfig() SnowflakeConfig {
	nodeID := int64(1)
	if env := os.Getenv("SNOWFLAKE_NODE_ID"); env != "" {
		if parsed, err := strconv.ParseInt(env, 10, 64); err == nil {
			nodeID = parsed
		}
	}
	return SnowflakeConfig{NodeID: nodeID}
}
