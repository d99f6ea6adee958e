package repository

import (
	"context"

	rediskey "CampusGram/consts/redisKey"
	"CampusGram/model"
	"CampusGram/pkg/async"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// messageRepositoryImpl 消息数据访问层实现。
// 未读计数走 Redis 计数器（会话列表展示用），DB 的 seen 列是权威来源：
// 计数器丢了最多会话列表未读数归零，不影响消息本身的已读状态。
type messageRepositoryImpl struct {
	db          *gorm.DB
	redisClient *redis.Client
}

// NewMessageRepository 创建消息仓储实例
func NewMessageRepository(db *gorm.DB, redisClient *redis.Client) IMessageRepository {
	return &messageRepositoryImpl{db: db, redisClient: redisClient}
}

// Create 持久化一条消息并异步累加接收方的未读计数
func (r *messageRepositoryImpl) Create(ctx context.Context, msg *model.Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return WrapDBError(err)
	}

	r.incrUnreadAsync(ctx, msg.ReceiverUuid, msg.SenderUuid)
	return nil
}

// ListPage 按会话分页查询，新→旧
func (r *messageRepositoryImpl) ListPage(ctx context.Context, userUuid, otherUuid string, page, pageSize int) ([]*model.Message, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	var messages []*model.Message
	err := r.db.WithContext(ctx).
		Where("(sender_uuid = ? AND receiver_uuid = ?) OR (sender_uuid = ? AND receiver_uuid = ?)",
			userUuid, otherUuid, otherUuid, userUuid).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&messages).Error
	if err != nil {
		return nil, WrapDBError(err)
	}
	return messages, nil
}

// MarkSeen 单向翻转未读：other → viewer 方向 seen=0 的行全部置 1。
// 已读不可回退，重复调用是无害的（第二次 0 行受影响）。
func (r *messageRepositoryImpl) MarkSeen(ctx context.Context, viewerUuid, otherUuid string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("sender_uuid = ? AND receiver_uuid = ? AND seen = ?", otherUuid, viewerUuid, false).
		Update("seen", true)
	if result.Error != nil {
		return 0, WrapDBError(result.Error)
	}

	if result.RowsAffected > 0 {
		r.clearUnreadAsync(ctx, viewerUuid, otherUuid)
	}
	return result.RowsAffected, nil
}

// Conversations 返回用户的会话列表。
// 每个对端取最近一条消息（snowflake id 随时间递增，MAX(id) 即最新），
// 未读数用一条 GROUP BY 补齐，共两条 SQL。
func (r *messageRepositoryImpl) Conversations(ctx context.Context, userUuid string) ([]*Conversation, error) {
	var lastMessages []*model.Message
	err := r.db.WithContext(ctx).Raw(`
		SELECT m.* FROM message m
		JOIN (
			SELECT MAX(id) AS id FROM message
			WHERE sender_uuid = ? OR receiver_uuid = ?
			GROUP BY IF(sender_uuid = ?, receiver_uuid, sender_uuid)
		) latest ON m.id = latest.id
		ORDER BY m.created_at DESC, m.id DESC`,
		userUuid, userUuid, userUuid,
	).Scan(&lastMessages).Error
	if err != nil {
		return nil, WrapDBError(err)
	}

	type unreadRow struct {
		SenderUuid string
		Count      int64
	}
	var unreadRows []unreadRow
	err = r.db.WithContext(ctx).
		Model(&model.Message{}).
		Select("sender_uuid, COUNT(*) AS count").
		Where("receiver_uuid = ? AND seen = ?", userUuid, false).
		Group("sender_uuid").
		Scan(&unreadRows).Error
	if err != nil {
		return nil, WrapDBError(err)
	}
	unreadByPeer := make(map[string]int64, len(unreadRows))
	for _, row := range unreadRows {
		unreadByPeer[row.SenderUuid] = row.Count
	}

	conversations := make([]*Conversation, 0, len(lastMessages))
	for _, msg := range lastMessages {
		peer := msg.SenderUuid
		if peer == userUuid {
			peer = msg.ReceiverUuid
		}
		conversations = append(conversations, &Conversation{
			PeerUuid:    peer,
			LastMessage: msg,
			UnreadCount: unreadByPeer[peer],
		})
	}
	return conversations, nil
}

// incrUnreadAsync 异步累加未读计数，首次创建时设置 TTL
func (r *messageRepositoryImpl) incrUnreadAsync(ctx context.Context, receiverUuid, senderUuid string) {
	if r.redisClient == nil {
		return
	}
	cacheKey := rediskey.UnreadMessageKey(receiverUuid, senderUuid)
	async.RunSafe(ctx, func(runCtx context.Context) {
		luaScript := redis.NewScript(luaIncrementWithExpire)
		_, err := luaScript.Run(runCtx, r.redisClient,
			[]string{cacheKey},
			int(rediskey.UnreadMessageTTL.Seconds()),
		).Result()
		if err != nil && err != redis.Nil {
			LogRedisError(runCtx, err)
		}
	}, 0)
}

// clearUnreadAsync 异步清零未读计数
func (r *messageRepositoryImpl) clearUnreadAsync(ctx context.Context, viewerUuid, otherUuid string) {
	if r.redisClient == nil {
		return
	}
	cacheKey := rediskey.UnreadMessageKey(viewerUuid, otherUuid)
	async.RunSafe(ctx, func(runCtx context.Context) {
		if err := r.redisClient.Del(runCtx, cacheKey).Err(); err != nil && err != redis.Nil {
			LogRedisError(runCtx, err)
		}
	}, 0)
}
