package snowflake

import (
	"fmt"

	"CampusGram/config"

	"github.com/bwmarrin/snowflake"
)

var node *snowflake.Node

// Init 初始化发号器（进程启动时调用一次）。
// 多实例部署时各实例的 NodeID 必须不同，否则会发出重复 id。
func Init(cfg config.SnowflakeConfig) error {
	n, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return fmt.Errorf("failed to create snowflake node: %w", err)
	}
	node = n
	return nil
}

// NextID 生成下一个消息 id。
// snowflake id 按时间递增，同一毫秒内按序列号递增，可直接用作排序键。
func NextID() int64 {
	return node.Generate().Int64()
}
