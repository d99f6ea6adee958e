package config

import (
	"os"
	"time"
)

// AuthConfig 鉴权配置。
// 账号/密码体系由外部账号服务负责，本服务只校验签发好的 JWT。
type AuthConfig struct {
	JWTSecret      string        `json:"jwtSecret" yaml:"jwtSecret"`
	AccessTokenTTL time.Duration `json:"accessTokenTTL" yaml:"accessTokenTTL"`
}

// DefaultAuthConfig 返回默认配置。
// 密钥优先读取 JWT_SECRET，本地开发允许使用内置默认值。
func DefaultAuthConfig() AuthConfig {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "campusgram-dev-secret"
	}
	return AuthConfig{
		JWTSecret:      secret,
		AccessTokenTTL: 24 * time.Hour,
	}
}
