package repository

const (
	// luaIncrementWithExpire 递增计数器，仅在首次创建时设置过期时间
	// KEYS[1]: 计数器 key
	// ARGV[1]: 过期时间（秒）
	// 返回: 递增后的值
	luaIncrementWithExpire = `
local key = KEYS[1]
local expire = tonumber(ARGV[1])
local current = redis.call('INCR', key)

-- 如果是第一次创建值为1,则设置过期时间
if current == 1 then
	redis.call('EXPIRE', key, expire)
end

return current
`

	// luaInsertFriendIfExists 好友写入（仅在 key 存在时增量更新）
	// 好友关系只增不减，HSETNX 足够；key 不存在时留给下次读回源重建
	// KEYS[1]: 好友关系 Hash
	// ARGV[1]: field(peer_uuid)
	// ARGV[2]: value(占位)
	// ARGV[3]: 过期时间（秒）
	// 返回: 1 表示写入成功，0 表示 key 不存在
	luaInsertFriendIfExists = `
if redis.call('EXISTS', KEYS[1]) == 1 then
	redis.call('HDEL', KEYS[1], '__EMPTY__')
	redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2])
	redis.call('EXPIRE', KEYS[1], ARGV[3])
	return 1
end
return 0
`
)
