package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"CampusGram/consts"
	"CampusGram/internal/event"
	"CampusGram/internal/repository"
	"CampusGram/model"
	"CampusGram/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var serviceLoggerOnce sync.Once

func initServiceTestLogger() {
	serviceLoggerOnce.Do(func() {
		logger.ReplaceGlobal(zap.NewNop())
	})
}

// ==================== fakes ====================

type fakeFriendshipRepo struct {
	isConnectedFn func(context.Context, string, string) (bool, error)
	listFriendsFn func(context.Context, string) ([]*model.Friendship, error)

	mu     sync.Mutex
	primed [][2]string
}

func (f *fakeFriendshipRepo) IsConnected(ctx context.Context, a, b string) (bool, error) {
	if f.isConnectedFn == nil {
		return false, nil
	}
	return f.isConnectedFn(ctx, a, b)
}

func (f *fakeFriendshipRepo) ListFriends(ctx context.Context, userUuid string) ([]*model.Friendship, error) {
	if f.listFriendsFn == nil {
		return nil, nil
	}
	return f.listFriendsFn(ctx, userUuid)
}

func (f *fakeFriendshipRepo) Prime(ctx context.Context, a, b string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.primed = append(f.primed, [2]string{a, b})
}

type fakeWaveRepo struct {
	recordWaveFn func(context.Context, string, string) (*repository.WaveResult, error)
}

func (f *fakeWaveRepo) RecordWave(ctx context.Context, sender, receiver string) (*repository.WaveResult, error) {
	if f.recordWaveFn == nil {
		return &repository.WaveResult{}, nil
	}
	return f.recordWaveFn(ctx, sender, receiver)
}

type fakeSkipRepo struct {
	upsertFn func(context.Context, string, string) error
}

func (f *fakeSkipRepo) Upsert(ctx context.Context, userUuid, skippedUuid string) error {
	if f.upsertFn == nil {
		return nil
	}
	return f.upsertFn(ctx, userUuid, skippedUuid)
}

// fakeBroadcaster 记录所有下行帧，按频道/用户分桶。
type fakeBroadcaster struct {
	mu        sync.Mutex
	byChannel map[string][][]byte
	byUser    map[string][][]byte
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{
		byChannel: make(map[string][][]byte),
		byUser:    make(map[string][][]byte),
	}
}

func (f *fakeBroadcaster) Broadcast(channel string, payload []byte, excludeConnID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byChannel[channel] = append(f.byChannel[channel], payload)
	return 1
}

func (f *fakeBroadcaster) SendToUser(userUuid string, payload []byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byUser[userUuid] = append(f.byUser[userUuid], payload)
	return 1
}

func (f *fakeBroadcaster) userFrames(userUuid string) []event.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var envelopes []event.Envelope
	for _, raw := range f.byUser[userUuid] {
		var envelope event.Envelope
		if err := json.Unmarshal(raw, &envelope); err == nil {
			envelopes = append(envelopes, envelope)
		}
	}
	return envelopes
}

func (f *fakeBroadcaster) channelFrames(channel string) []event.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var envelopes []event.Envelope
	for _, raw := range f.byChannel[channel] {
		var envelope event.Envelope
		if err := json.Unmarshal(raw, &envelope); err == nil {
			envelopes = append(envelopes, envelope)
		}
	}
	return envelopes
}

// fakePoints 记录积分发放调用。
type fakePoints struct {
	mu     sync.Mutex
	awards []string // "user:points:reason"
}

func (f *fakePoints) Award(_ context.Context, userUuid string, points int, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.awards = append(f.awards, userUuid)
	_ = points
	_ = reason
}

func (f *fakePoints) Close() error { return nil }

func (f *fakePoints) awarded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.awards...)
}

// ==================== tests ====================

func TestWavePending(t *testing.T) {
	initServiceTestLogger()

	waveRepo := &fakeWaveRepo{
		recordWaveFn: func(_ context.Context, sender, receiver string) (*repository.WaveResult, error) {
			assert.Equal(t, "alice", sender)
			assert.Equal(t, "bob", receiver)
			return &repository.WaveResult{Promoted: false}, nil
		},
	}
	friendshipRepo := &fakeFriendshipRepo{}
	points := &fakePoints{}
	svc := NewFriendService(friendshipRepo, waveRepo, &fakeSkipRepo{}, newFakeBroadcaster(), points)

	result, err := svc.Wave(context.Background(), "alice", "bob")
	require.NoError(t, err)
	assert.False(t, result.Promoted)
	assert.Empty(t, points.awarded())
	assert.Empty(t, friendshipRepo.primed)
}

func TestWavePromotionAwardsBothSides(t *testing.T) {
	initServiceTestLogger()

	friendship := &model.Friendship{UserLow: "alice", UserHigh: "bob"}
	waveRepo := &fakeWaveRepo{
		recordWaveFn: func(context.Context, string, string) (*repository.WaveResult, error) {
			return &repository.WaveResult{Promoted: true, Friendship: friendship}, nil
		},
	}
	friendshipRepo := &fakeFriendshipRepo{}
	broadcaster := newFakeBroadcaster()
	points := &fakePoints{}
	svc := NewFriendService(friendshipRepo, waveRepo, &fakeSkipRepo{}, broadcaster, points)

	result, err := svc.Wave(context.Background(), "alice", "bob")
	require.NoError(t, err)
	assert.True(t, result.Promoted)
	assert.ElementsMatch(t, []string{"alice", "bob"}, points.awarded())
	require.Len(t, friendshipRepo.primed, 1)

	frames := broadcaster.userFrames("bob")
	require.Len(t, frames, 1)
	assert.Equal(t, event.TypeWaveResult, frames[0].Type)
}

func TestWaveDuplicate(t *testing.T) {
	initServiceTestLogger()

	waveRepo := &fakeWaveRepo{
		recordWaveFn: func(context.Context, string, string) (*repository.WaveResult, error) {
			return nil, repository.ErrDuplicateWave
		},
	}
	svc := NewFriendService(&fakeFriendshipRepo{}, waveRepo, &fakeSkipRepo{}, newFakeBroadcaster(), &fakePoints{})

	_, err := svc.Wave(context.Background(), "alice", "bob")
	assert.ErrorIs(t, err, repository.ErrDuplicateWave)
	assert.Equal(t, int32(consts.CodeDuplicateWave), CodeForError(err))
}

func TestWaveSelfRejected(t *testing.T) {
	initServiceTestLogger()

	svc := NewFriendService(&fakeFriendshipRepo{}, &fakeWaveRepo{}, &fakeSkipRepo{}, newFakeBroadcaster(), &fakePoints{})

	_, err := svc.Wave(context.Background(), "alice", "alice")
	assert.ErrorIs(t, err, ErrSelfRelation)
}

func TestSkipDelegatesToRepo(t *testing.T) {
	initServiceTestLogger()

	called := false
	skipRepo := &fakeSkipRepo{
		upsertFn: func(_ context.Context, userUuid, skippedUuid string) error {
			called = true
			assert.Equal(t, "alice", userUuid)
			assert.Equal(t, "bob", skippedUuid)
			return nil
		},
	}
	svc := NewFriendService(&fakeFriendshipRepo{}, &fakeWaveRepo{}, skipRepo, newFakeBroadcaster(), &fakePoints{})

	require.NoError(t, svc.Skip(context.Background(), "alice", "bob"))
	assert.True(t, called)
}

func TestFriendsExpandsPeers(t *testing.T) {
	initServiceTestLogger()

	friendshipRepo := &fakeFriendshipRepo{
		listFriendsFn: func(context.Context, string) ([]*model.Friendship, error) {
			return []*model.Friendship{
				{UserLow: "alice", UserHigh: "carol"},
				{UserLow: "alice", UserHigh: "bob"},
				{UserLow: "aaa", UserHigh: "alice"},
			}, nil
		},
	}
	svc := NewFriendService(friendshipRepo, &fakeWaveRepo{}, &fakeSkipRepo{}, newFakeBroadcaster(), &fakePoints{})

	peers, err := svc.Friends(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"carol", "bob", "aaa"}, peers)
}

func TestFriendsPropagatesRepoError(t *testing.T) {
	initServiceTestLogger()

	friendshipRepo := &fakeFriendshipRepo{
		listFriendsFn: func(context.Context, string) ([]*model.Friendship, error) {
			return nil, errors.New("db down")
		},
	}
	svc := NewFriendService(friendshipRepo, &fakeWaveRepo{}, &fakeSkipRepo{}, newFakeBroadcaster(), &fakePoints{})

	_, err := svc.Friends(context.Background(), "alice")
	require.Error(t, err)
	assert.Equal(t, int32(consts.CodeInternalError), CodeForError(err))
}
