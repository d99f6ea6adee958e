package config

// LoggerConfig 日志组件配置。
type LoggerConfig struct {
	Level            string   `json:"level" yaml:"level"`                       // 日志级别: debug/info/warn/error
	Encoding         string   `json:"encoding" yaml:"encoding"`                 // 编码: json/console
	EnableColor      bool     `json:"enableColor" yaml:"enableColor"`           // console 模式下是否彩色输出
	Development      bool     `json:"development" yaml:"development"`           // 开发模式（error 级别带堆栈）
	OutputPaths      []string `json:"outputPaths" yaml:"outputPaths"`           // 普通日志输出（stdout/stderr/文件路径）
	ErrorOutputPaths []string `json:"errorOutputPaths" yaml:"errorOutputPaths"` // 错误日志输出
}

// DefaultLoggerConfig 返回本地开发的默认配置。
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:       "info",
		Encoding:    "json",
		EnableColor: false,
		Development: false,
	}
}
