package config

import (
	"os"
	"time"
)

// MinIOConfig 聊天附件对象存储配置。
// 消息表只存上传后的 URL，文件字节不落库。
type MinIOConfig struct {
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `json:"accessKeyId" yaml:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey" yaml:"secretAccessKey"`
	UseSSL          bool   `json:"useSSL" yaml:"useSSL"`

	BucketName string `json:"bucketName" yaml:"bucketName"`
	Location   string `json:"location" yaml:"location"`

	MaxFileSize   int64         `json:"maxFileSize" yaml:"maxFileSize"`     // 单附件大小上限（字节）
	AllowedTypes  []string      `json:"allowedTypes" yaml:"allowedTypes"`   // 允许的 MIME 类型
	UploadTimeout time.Duration `json:"uploadTimeout" yaml:"uploadTimeout"` // 上传超时

	PublicRead bool   `json:"publicRead" yaml:"publicRead"` // 附件是否公开读取
	BaseURL    string `json:"baseUrl" yaml:"baseUrl"`       // 返回给客户端的外部访问基础 URL
}

// DefaultMinIOConfig 返回本地开发的默认配置。
func DefaultMinIOConfig() MinIOConfig {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "127.0.0.1:9000"
	}
	return MinIOConfig{
		Endpoint:        endpoint,
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
		UseSSL:          false,

		BucketName: "campusgram",
		Location:   "us-east-1",

		MaxFileSize: 10 * 1024 * 1024, // 10MB
		AllowedTypes: []string{
			"image/jpeg", "image/png", "image/gif", "image/webp",
			"audio/mpeg", "audio/wav", "video/mp4",
		},
		UploadTimeout: 30 * time.Second,

		PublicRead: true,
		BaseURL:    "http://127.0.0.1:9000",
	}
}
