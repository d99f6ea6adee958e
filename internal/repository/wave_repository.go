package repository

import (
	"context"
	"errors"
	"time"

	"CampusGram/model"
	"CampusGram/pkg/logger"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	waveTxMaxRetries = 3
	waveTxRetryDelay = 20 * time.Millisecond
)

// waveRepositoryImpl 挥手数据访问层实现
type waveRepositoryImpl struct {
	db *gorm.DB
}

// NewWaveRepository 创建挥手仓储实例
func NewWaveRepository(db *gorm.DB) IWaveRepository {
	return &waveRepositoryImpl{db: db}
}

// RecordWave 记录挥手并在双向命中时建立好友关系。
// 全部工作在一个事务内完成：
//  1. 插入有向挥手（ON CONFLICT DO NOTHING），0 行受影响说明重复挥手；
//  2. FOR UPDATE 锁定反向挥手行，拦住对向事务在检查与建档之间插入的窗口；
//  3. 反向存在则以规范对 upsert 好友关系（DO NOTHING 保证幂等）。
//
// 两个方向并发执行时，行锁会把后提交的一方挡到先提交的一方之后，
// 最终恰好一行 Friendship。死锁/锁等待超时在同一调用内有限次重试。
func (r *waveRepositoryImpl) RecordWave(ctx context.Context, senderUuid, receiverUuid string) (*WaveResult, error) {
	var lastErr error
	for attempt := 0; attempt < waveTxMaxRetries; attempt++ {
		if attempt > 0 {
			logger.Warn(ctx, "挥手事务重试",
				logger.Int("attempt", attempt),
				logger.ErrorField("error", lastErr),
			)
			time.Sleep(waveTxRetryDelay)
		}

		result, err := r.recordWaveOnce(ctx, senderUuid, receiverUuid)
		if err == nil {
			return result, nil
		}
		if !isRetryableTxError(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, WrapDBError(lastErr)
}

func (r *waveRepositoryImpl) recordWaveOnce(ctx context.Context, senderUuid, receiverUuid string) (*WaveResult, error) {
	result := &WaveResult{}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 插入有向挥手，唯一索引冲突时静默跳过
		wave := &model.Wave{SenderUuid: senderUuid, ReceiverUuid: receiverUuid}
		insert := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(wave)
		if insert.Error != nil {
			return insert.Error
		}
		if insert.RowsAffected == 0 {
			return ErrDuplicateWave
		}

		// 2. 锁定反向挥手行
		var reciprocal model.Wave
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("sender_uuid = ? AND receiver_uuid = ?", receiverUuid, senderUuid).
			First(&reciprocal).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 对方还没挥手，本次停留在 pending
			return nil
		}
		if err != nil {
			return err
		}

		// 3. 双向命中，建立好友关系（幂等 upsert）
		low, high := model.CanonicalPair(senderUuid, receiverUuid)
		friendship := &model.Friendship{UserLow: low, UserHigh: high}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(friendship).Error; err != nil {
			return err
		}
		if friendship.Id == 0 {
			// DO NOTHING 命中已有行，读回 created_at 等字段
			if err := tx.Where("user_low = ? AND user_high = ?", low, high).First(friendship).Error; err != nil {
				return err
			}
		}

		result.Promoted = true
		result.Friendship = friendship
		return nil
	})

	if err != nil {
		if errors.Is(err, ErrDuplicateWave) {
			return nil, ErrDuplicateWave
		}
		if isRetryableTxError(err) {
			return nil, err
		}
		return nil, WrapDBError(err)
	}
	return result, nil
}

// isRetryableTxError 判断是否为可重试的事务错误（MySQL 死锁/锁等待超时）。
func isRetryableTxError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		// 1213: Deadlock found; 1205: Lock wait timeout
		return mysqlErr.Number == 1213 || mysqlErr.Number == 1205
	}
	return false
}
