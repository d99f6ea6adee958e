package util

import (
	"errors"
	"time"

	"CampusGram/config"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims 访问令牌载荷。
// 令牌由外部账号服务签发，双方共享同一个 HMAC 密钥。
type Claims struct {
	UserUuid string `json:"user_uuid"`
	DeviceId string `json:"device_id,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken 签发访问令牌（测试与本地调试用，线上由账号服务签发）。
func GenerateToken(cfg config.AuthConfig, userUuid, deviceId string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserUuid: userUuid,
		DeviceId: deviceId,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.AccessTokenTTL)),
			Subject:   userUuid,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// ParseToken 解析并校验访问令牌。
// 过期返回 ErrTokenExpired，其余校验失败统一返回 ErrInvalidToken。
func ParseToken(cfg config.AuthConfig, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.UserUuid == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
