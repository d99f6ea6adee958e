package repository

import (
	"context"

	rediskey "CampusGram/consts/redisKey"
	"CampusGram/model"
	"CampusGram/pkg/async"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const friendshipL1Size = 65536

// friendshipRepositoryImpl 好友关系数据访问层实现。
// 三级读路径：进程内 LRU -> Redis Hash -> MySQL。
// 好友关系在本子系统内只增不减，所以正向结论可以无限期缓存；
// 负向结论只依赖 Redis/DB，避免"挥手成功后 L1 还说不是好友"。
type friendshipRepositoryImpl struct {
	db          *gorm.DB
	redisClient *redis.Client
	l1          *lru.Cache[string, struct{}]
}

// NewFriendshipRepository 创建好友关系仓储实例
func NewFriendshipRepository(db *gorm.DB, redisClient *redis.Client) IFriendshipRepository {
	l1, _ := lru.New[string, struct{}](friendshipL1Size)
	return &friendshipRepositoryImpl{db: db, redisClient: redisClient, l1: l1}
}

func pairKey(a, b string) string {
	low, high := model.CanonicalPair(a, b)
	return low + "|" + high
}

// IsConnected 判断两用户是否已结为好友
// 采用 Cache-Aside Pattern：L1 只存正向结论，未命中则查 Redis Hash，再回源 MySQL 并重建缓存
func (r *friendshipRepositoryImpl) IsConnected(ctx context.Context, a, b string) (bool, error) {
	if a == "" || b == "" || a == b {
		return false, nil
	}

	// ==================== 0. 进程内 L1 ====================
	if _, ok := r.l1.Get(pairKey(a, b)); ok {
		return true, nil
	}

	// ==================== 1. 组合查询 Redis (Pipeline) ====================
	if connected, decided := r.redisLookup(ctx, a, b); decided {
		return connected, nil
	}

	// ==================== 2. 回源查询 MySQL ====================
	friendships, err := r.queryFriendships(ctx, a)
	if err != nil {
		return false, err
	}

	// ==================== 3. 重建缓存 (Hash) ====================
	r.rebuildFriendCacheAsync(ctx, a, friendships)

	for _, f := range friendships {
		peer := f.PeerOf(a)
		r.l1.Add(pairKey(a, peer), struct{}{})
		if peer == b {
			return true, nil
		}
	}
	return false, nil
}

// redisLookup 查询 a 侧好友 Hash。
// decided 为 true 表示缓存给出了结论（命中且字段明确），false 表示要回源 DB。
// Redis 未启用（降级模式）或出错时一律回源，绝不让缓存层失败阻断好友门禁。
func (r *friendshipRepositoryImpl) redisLookup(ctx context.Context, a, b string) (connected, decided bool) {
	if r.redisClient == nil {
		return false, false
	}

	// 以 a 侧的 Hash 为准：field 为对端 uuid
	cacheKey := rediskey.FriendRelationKey(a)
	pipe := r.redisClient.Pipeline()
	existsCmd := pipe.Exists(ctx, cacheKey)
	fieldCmd := pipe.HGet(ctx, cacheKey, b)

	// 概率续期优化：1% 的概率在读取时顺便续期
	if getRandomBool(0.01) {
		pipe.Expire(ctx, cacheKey, getRandomExpireTime(rediskey.FriendRelationTTL))
	}

	_, err := pipe.Exec(ctx)
	if err != nil && err != redis.Nil {
		if isRedisWrongType(err) {
			_ = r.redisClient.Del(ctx, cacheKey).Err()
		} else {
			// Redis 挂了，记录日志，降级去查 DB
			LogRedisError(ctx, err)
		}
		return false, false
	}

	if existsCmd.Val() == 0 {
		// 缓存未命中，继续走 DB
		return false, false
	}
	if fieldCmd.Err() == nil {
		r.l1.Add(pairKey(a, b), struct{}{})
		return true, true
	}
	if fieldCmd.Err() == redis.Nil {
		return false, true
	}
	if isRedisWrongType(fieldCmd.Err()) {
		_ = r.redisClient.Del(ctx, cacheKey).Err()
	} else {
		LogRedisError(ctx, fieldCmd.Err())
	}
	return false, false
}

// ListFriends 返回用户全部好友关系，按建立时间倒序
func (r *friendshipRepositoryImpl) ListFriends(ctx context.Context, userUuid string) ([]*model.Friendship, error) {
	var friendships []*model.Friendship
	err := r.db.WithContext(ctx).
		Where("user_low = ? OR user_high = ?", userUuid, userUuid).
		Order("created_at DESC, id DESC").
		Find(&friendships).Error
	if err != nil {
		return nil, WrapDBError(err)
	}
	return friendships, nil
}

// Prime 好友关系建立后预热缓存：
// - L1 直接写入；
// - Redis 两侧 Hash 各做一次 lua 增量写（仅 key 存在时，避免写出不完整 Hash）。
func (r *friendshipRepositoryImpl) Prime(ctx context.Context, a, b string) {
	if a == "" || b == "" {
		return
	}
	r.l1.Add(pairKey(a, b), struct{}{})

	if r.redisClient == nil {
		return
	}
	async.RunSafe(ctx, func(runCtx context.Context) {
		pairs := []struct{ cacheKey, peer string }{
			{rediskey.FriendRelationKey(a), b},
			{rediskey.FriendRelationKey(b), a},
		}
		expireSeconds := int(getRandomExpireTime(rediskey.FriendRelationTTL).Seconds())
		luaScript := redis.NewScript(luaInsertFriendIfExists)

		for _, pair := range pairs {
			_, err := luaScript.Run(runCtx, r.redisClient,
				[]string{pair.cacheKey},
				pair.peer,
				"1",
				expireSeconds,
			).Result()
			if err != nil && err != redis.Nil {
				if isRedisWrongType(err) {
					_ = r.redisClient.Del(runCtx, pair.cacheKey).Err()
					continue
				}
				LogRedisError(runCtx, err)
			}
		}
	}, 0)
}

func (r *friendshipRepositoryImpl) queryFriendships(ctx context.Context, userUuid string) ([]*model.Friendship, error) {
	var friendships []*model.Friendship
	err := r.db.WithContext(ctx).
		Where("user_low = ? OR user_high = ?", userUuid, userUuid).
		Find(&friendships).Error
	if err != nil {
		return nil, WrapDBError(err)
	}
	return friendships, nil
}

// rebuildFriendCacheAsync 异步重建好友关系缓存（Hash）
// 空集合写 __EMPTY__ 占位并用短 TTL，防止缓存穿透
func (r *friendshipRepositoryImpl) rebuildFriendCacheAsync(ctx context.Context, userUuid string, friendships []*model.Friendship) {
	if r.redisClient == nil {
		return
	}
	cacheKey := rediskey.FriendRelationKey(userUuid)
	async.RunSafe(ctx, func(runCtx context.Context) {
		pipe := r.redisClient.Pipeline()
		pipe.Del(runCtx, cacheKey)

		if len(friendships) == 0 {
			pipe.HSet(runCtx, cacheKey, "__EMPTY__", "1")
			pipe.Expire(runCtx, cacheKey, rediskey.FriendRelationEmptyTTL)
		} else {
			fields := make(map[string]interface{}, len(friendships))
			for _, f := range friendships {
				peer := f.PeerOf(userUuid)
				if peer == "" {
					continue
				}
				fields[peer] = "1"
			}
			if len(fields) > 0 {
				pipe.HSet(runCtx, cacheKey, fields)
			}
			pipe.Expire(runCtx, cacheKey, getRandomExpireTime(rediskey.FriendRelationTTL))
		}

		if _, err := pipe.Exec(runCtx); err != nil && err != redis.Nil {
			if isRedisWrongType(err) {
				_ = r.redisClient.Del(runCtx, cacheKey).Err()
				return
			}
			LogRedisError(runCtx, err)
		}
	}, 0)
}
