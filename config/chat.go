package config

import "time"

// ChatConfig 聊天链路配置。
type ChatConfig struct {
	// StorageTimeout 单次持久化操作的超时上限。
	// 超时会映射为 StorageTimeout 错误返回给调用方，而不是挂起连接处理协程。
	StorageTimeout time.Duration `json:"storageTimeout" yaml:"storageTimeout"`
	// HistoryPageSize 历史消息单页条数。
	HistoryPageSize int `json:"historyPageSize" yaml:"historyPageSize"`
	// PreviewLength 消息通知中正文预览的最大长度（按 rune 截断）。
	PreviewLength int `json:"previewLength" yaml:"previewLength"`
	// FrameRate / FrameBurst 单连接上行帧限速（令牌桶）。
	FrameRate  float64 `json:"frameRate" yaml:"frameRate"`
	FrameBurst int     `json:"frameBurst" yaml:"frameBurst"`
}

// DefaultChatConfig 返回默认配置。
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		StorageTimeout:  3 * time.Second,
		HistoryPageSize: 50,
		PreviewLength:   64,
		FrameRate:       20,
		FrameBurst:      40,
	}
}
