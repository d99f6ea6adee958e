package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	rediskey "CampusGram/consts/redisKey"
	"CampusGram/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// luaTokenBucket Redis 令牌桶 Lua 脚本
// 原子性地补充令牌并判断本次请求是否放行
// KEYS[1]: 限流 key
// ARGV[1]: 当前时间戳（毫秒）
// ARGV[2]: 令牌桶容量
// ARGV[3]: 每秒产生的令牌数
// ARGV[4]: 本次消耗的令牌数
// 返回: 1 放行, 0 限流
const luaTokenBucket = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local rate = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

local info = redis.call('HMGET', key, 'tokens', 'last_time')
local current_tokens = tonumber(info[1])
local last_time = tonumber(info[2])

if current_tokens == nil then
    current_tokens = capacity
end
if last_time == nil then
    last_time = now
end

local time_diff = math.max(0, now - last_time)
local new_tokens = math.floor((time_diff * rate) / 1000)
if new_tokens > 0 then
    current_tokens = math.min(capacity, current_tokens + new_tokens)
    last_time = now
end

local allowed = 0
if current_tokens >= requested then
    current_tokens = current_tokens - requested
    allowed = 1
end

redis.call('HMSET', key, 'tokens', current_tokens, 'last_time', last_time)

local fill_time = math.ceil(capacity / rate)
local ttl = math.max(60, fill_time * 2)
redis.call('EXPIRE', key, ttl)

return allowed
`

// RedisRateLimiter 基于 Redis 令牌桶的限流器。
// Redis 故障时一律降级放行：限流是保护手段，不能变成单点。
type RedisRateLimiter struct {
	redisClient *redis.Client
	rate        float64 // 每秒产生的令牌数
	burst       int     // 令牌桶容量
}

// NewRedisRateLimiter 创建限流器
func NewRedisRateLimiter(redisClient *redis.Client, rate float64, burst int) *RedisRateLimiter {
	return &RedisRateLimiter{redisClient: redisClient, rate: rate, burst: burst}
}

// Allow 检查是否允许请求通过。
// Redis 操作带 50ms 独立超时，响应慢时降级放行而不是拖死请求。
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) bool {
	if r.redisClient == nil {
		return true
	}

	redisCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	result, err := r.redisClient.Eval(redisCtx, luaTokenBucket,
		[]string{key}, time.Now().UnixMilli(), r.burst, r.rate, 1).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			logger.Warn(ctx, "Redis 限流检查超时，降级放行",
				logger.String("key", key),
			)
			return true
		}
		logger.Error(ctx, "Redis 限流检查失败，降级放行",
			logger.String("key", key),
			logger.ErrorField("error", err),
		)
		return true
	}

	allowed, ok := result.(int64)
	if !ok {
		return true
	}
	return allowed == 1
}

// UserRateLimitMiddleware 基于用户 UUID 的限流中间件。
// 需要在 JWTAuthMiddleware 之后使用。
func UserRateLimitMiddleware(limiter *RedisRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userUuid, exists := GetUserUUID(c)
		if !exists || userUuid == "" {
			c.Next()
			return
		}

		if !limiter.Allow(NewContextWithGin(c), rediskey.UserRateLimitKey(userUuid)) {
			logger.Warn(NewContextWithGin(c), "用户请求被限流",
				logger.String("path", c.Request.URL.Path),
				logger.String("method", c.Request.Method),
			)
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    10005,
				"message": "请求过于频繁，请稍后再试",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// IPRateLimitMiddleware 基于客户端 IP 的限流中间件，挂在认证之前。
func IPRateLimitMiddleware(limiter *RedisRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			c.Next()
			return
		}

		if !limiter.Allow(NewContextWithGin(c), rediskey.IPRateLimitKey(ip)) {
			logger.Warn(NewContextWithGin(c), "IP 请求被限流",
				logger.String("ip", ip),
				logger.String("path", c.Request.URL.Path),
			)
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    10005,
				"message": "请求过于频繁，请稍后再试",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
