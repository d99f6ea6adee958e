package service

import (
	"context"
	"errors"

	"CampusGram/internal/event"
	"CampusGram/internal/metrics"
	"CampusGram/internal/repository"
	"CampusGram/pkg/logger"
)

const (
	newFriendPoints = 2
	newFriendReason = "New friend"
)

// friendServiceImpl 好友服务实现
type friendServiceImpl struct {
	friendshipRepo repository.IFriendshipRepository
	waveRepo       repository.IWaveRepository
	skipRepo       repository.ISkipRepository
	broadcaster    Broadcaster
	points         IPointsPublisher
}

// NewFriendService 创建好友服务实例
func NewFriendService(
	friendshipRepo repository.IFriendshipRepository,
	waveRepo repository.IWaveRepository,
	skipRepo repository.ISkipRepository,
	broadcaster Broadcaster,
	points IPointsPublisher,
) IFriendService {
	return &friendServiceImpl{
		friendshipRepo: friendshipRepo,
		waveRepo:       waveRepo,
		skipRepo:       skipRepo,
		broadcaster:    broadcaster,
		points:         points,
	}
}

// Wave 向目标用户挥手。
// 双向命中时仓储层已在事务内建档，这里做事务外的后续动作：
// 预热缓存、发放双方积分、给对方个人频道推一帧 wave_result。
// 这些动作都是尽力而为，失败不回滚已建立的好友关系。
func (s *friendServiceImpl) Wave(ctx context.Context, senderUuid, receiverUuid string) (*repository.WaveResult, error) {
	if senderUuid == "" || receiverUuid == "" || senderUuid == receiverUuid {
		return nil, ErrSelfRelation
	}

	result, err := s.waveRepo.RecordWave(ctx, senderUuid, receiverUuid)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateWave) {
			return nil, err
		}
		logger.Error(ctx, "挥手记录失败",
			logger.String("sender", senderUuid),
			logger.String("receiver", receiverUuid),
			logger.ErrorField("error", err),
		)
		return nil, err
	}

	if result.Promoted {
		metrics.WavesRecorded.WithLabelValues("true").Inc()
		s.friendshipRepo.Prime(ctx, senderUuid, receiverUuid)
		s.points.Award(ctx, senderUuid, newFriendPoints, newFriendReason)
		s.points.Award(ctx, receiverUuid, newFriendPoints, newFriendReason)

		if frame := event.Marshal(event.TypeWaveResult, event.WaveResultPayload{
			PeerUuid: senderUuid,
			Promoted: true,
		}); frame != nil {
			s.broadcaster.SendToUser(receiverUuid, frame)
		}

		logger.Info(ctx, "双向挥手，结为好友",
			logger.String("sender", senderUuid),
			logger.String("receiver", receiverUuid),
		)
	} else {
		metrics.WavesRecorded.WithLabelValues("false").Inc()
	}

	return result, nil
}

// Skip 在匹配流程中跳过目标用户
func (s *friendServiceImpl) Skip(ctx context.Context, userUuid, skippedUuid string) error {
	if userUuid == "" || skippedUuid == "" || userUuid == skippedUuid {
		return ErrSelfRelation
	}
	return s.skipRepo.Upsert(ctx, userUuid, skippedUuid)
}

// Friends 返回好友对端 uuid 列表，最近结识的在前
func (s *friendServiceImpl) Friends(ctx context.Context, userUuid string) ([]string, error) {
	friendships, err := s.friendshipRepo.ListFriends(ctx, userUuid)
	if err != nil {
		return nil, err
	}

	peers := make([]string, 0, len(friendships))
	for _, f := range friendships {
		if peer := f.PeerOf(userUuid); peer != "" {
			peers = append(peers, peer)
		}
	}
	return peers, nil
}
