package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"CampusGram/config"
	"CampusGram/consts"
	"CampusGram/internal/event"
	"CampusGram/internal/presence"
	"CampusGram/internal/repository"
	"CampusGram/model"
	"CampusGram/pkg/snowflake"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var snowflakeOnce sync.Once

func initTestSnowflake(t *testing.T) {
	t.Helper()
	snowflakeOnce.Do(func() {
		if err := snowflake.Init(config.DefaultSnowflakeConfig()); err != nil {
			t.Fatalf("init snowflake: %v", err)
		}
	})
}

type fakeMessageRepo struct {
	createFn        func(context.Context, *model.Message) error
	listPageFn      func(context.Context, string, string, int, int) ([]*model.Message, error)
	markSeenFn      func(context.Context, string, string) (int64, error)
	conversationsFn func(context.Context, string) ([]*repository.Conversation, error)

	mu      sync.Mutex
	created []*model.Message
}

func (f *fakeMessageRepo) Create(ctx context.Context, msg *model.Message) error {
	f.mu.Lock()
	f.created = append(f.created, msg)
	f.mu.Unlock()
	if f.createFn == nil {
		return nil
	}
	return f.createFn(ctx, msg)
}

func (f *fakeMessageRepo) ListPage(ctx context.Context, userUuid, otherUuid string, page, pageSize int) ([]*model.Message, error) {
	if f.listPageFn == nil {
		return nil, nil
	}
	return f.listPageFn(ctx, userUuid, otherUuid, page, pageSize)
}

func (f *fakeMessageRepo) MarkSeen(ctx context.Context, viewerUuid, otherUuid string) (int64, error) {
	if f.markSeenFn == nil {
		return 0, nil
	}
	return f.markSeenFn(ctx, viewerUuid, otherUuid)
}

func (f *fakeMessageRepo) Conversations(ctx context.Context, userUuid string) ([]*repository.Conversation, error) {
	if f.conversationsFn == nil {
		return nil, nil
	}
	return f.conversationsFn(ctx, userUuid)
}

func newChatService(messageRepo repository.IMessageRepository, friendshipRepo repository.IFriendshipRepository, broadcaster Broadcaster) IChatService {
	return NewChatService(messageRepo, friendshipRepo, broadcaster, config.DefaultChatConfig())
}

func connectedRepo() *fakeFriendshipRepo {
	return &fakeFriendshipRepo{
		isConnectedFn: func(context.Context, string, string) (bool, error) {
			return true, nil
		},
	}
}

func TestSendMessagePersistsAndFansOut(t *testing.T) {
	initServiceTestLogger()
	initTestSnowflake(t)

	messageRepo := &fakeMessageRepo{}
	broadcaster := newFakeBroadcaster()
	svc := newChatService(messageRepo, connectedRepo(), broadcaster)

	msg, err := svc.SendMessage(context.Background(), "alice", "bob", "hello", "")
	require.NoError(t, err)
	assert.NotZero(t, msg.Id)
	assert.False(t, msg.Seen)
	require.Len(t, messageRepo.created, 1)

	channel, err := presence.ChannelFor("alice", "bob")
	require.NoError(t, err)
	frames := broadcaster.channelFrames(channel)
	require.Len(t, frames, 1)
	assert.Equal(t, event.TypeNewMessage, frames[0].Type)

	var payload event.MessagePayload
	require.NoError(t, json.Unmarshal(frames[0].Data, &payload))
	assert.Equal(t, "hello", payload.Text)

	notifications := broadcaster.userFrames("bob")
	require.Len(t, notifications, 1)
	assert.Equal(t, event.TypeMessageNotification, notifications[0].Type)
}

func TestSendMessageAttachmentOnly(t *testing.T) {
	initServiceTestLogger()
	initTestSnowflake(t)

	broadcaster := newFakeBroadcaster()
	svc := newChatService(&fakeMessageRepo{}, connectedRepo(), broadcaster)

	msg, err := svc.SendMessage(context.Background(), "alice", "bob", "", "http://cdn/voice.mp3")
	require.NoError(t, err)
	assert.Equal(t, "http://cdn/voice.mp3", msg.AttachmentURL)

	notifications := broadcaster.userFrames("bob")
	require.Len(t, notifications, 1)
	var payload event.NotificationPayload
	require.NoError(t, json.Unmarshal(notifications[0].Data, &payload))
	assert.Equal(t, "[附件]", payload.Preview)
}

func TestSendMessageEmptyRejected(t *testing.T) {
	initServiceTestLogger()
	initTestSnowflake(t)

	svc := newChatService(&fakeMessageRepo{}, connectedRepo(), newFakeBroadcaster())

	_, err := svc.SendMessage(context.Background(), "alice", "bob", "   ", "")
	assert.ErrorIs(t, err, ErrInvalidMessage)
	assert.Equal(t, int32(consts.CodeMessageEmpty), CodeForError(err))
}

func TestSendMessageGateRejectsStrangers(t *testing.T) {
	initServiceTestLogger()
	initTestSnowflake(t)

	messageRepo := &fakeMessageRepo{}
	svc := newChatService(messageRepo, &fakeFriendshipRepo{}, newFakeBroadcaster())

	_, err := svc.SendMessage(context.Background(), "alice", "bob", "hi", "")
	assert.ErrorIs(t, err, ErrNotFriend)
	assert.Empty(t, messageRepo.created, "被门禁拦下的消息不能落库")
}

func TestSendMessageStorageTimeout(t *testing.T) {
	initServiceTestLogger()
	initTestSnowflake(t)

	messageRepo := &fakeMessageRepo{
		createFn: func(context.Context, *model.Message) error {
			return repository.ErrStorageTimeout
		},
	}
	broadcaster := newFakeBroadcaster()
	svc := newChatService(messageRepo, connectedRepo(), broadcaster)

	_, err := svc.SendMessage(context.Background(), "alice", "bob", "hi", "")
	assert.ErrorIs(t, err, repository.ErrStorageTimeout)
	assert.Equal(t, int32(consts.CodeStorageTimeout), CodeForError(err))
	assert.Empty(t, broadcaster.byChannel, "落库失败不广播")
}

func TestGetMessagesReversesAndFlipsSeen(t *testing.T) {
	initServiceTestLogger()
	initTestSnowflake(t)

	now := time.Now()
	messageRepo := &fakeMessageRepo{
		listPageFn: func(_ context.Context, _, _ string, page, pageSize int) ([]*model.Message, error) {
			assert.Equal(t, 1, page)
			assert.Equal(t, 50, pageSize)
			// 仓储返回新→旧
			return []*model.Message{
				{Id: 3, SenderUuid: "bob", ReceiverUuid: "alice", Text: "newest", CreatedAt: now},
				{Id: 2, SenderUuid: "alice", ReceiverUuid: "bob", Text: "middle", CreatedAt: now.Add(-time.Minute)},
				{Id: 1, SenderUuid: "bob", ReceiverUuid: "alice", Text: "oldest", CreatedAt: now.Add(-2 * time.Minute)},
			}, nil
		},
		markSeenFn: func(_ context.Context, viewer, other string) (int64, error) {
			assert.Equal(t, "alice", viewer)
			assert.Equal(t, "bob", other)
			return 2, nil
		},
	}
	broadcaster := newFakeBroadcaster()
	svc := newChatService(messageRepo, connectedRepo(), broadcaster)

	messages, err := svc.GetMessages(context.Background(), "alice", "bob", 1)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "oldest", messages[0].Text)
	assert.Equal(t, "newest", messages[2].Text)
	// bob 发来的消息在返回快照里已标为已读
	assert.True(t, messages[0].Seen)
	assert.True(t, messages[2].Seen)

	frames := broadcaster.userFrames("bob")
	require.Len(t, frames, 1)
	assert.Equal(t, event.TypeMessagesSeen, frames[0].Type)
}

func TestGetMessagesNoUnreadNoNotification(t *testing.T) {
	initServiceTestLogger()
	initTestSnowflake(t)

	messageRepo := &fakeMessageRepo{
		markSeenFn: func(context.Context, string, string) (int64, error) {
			return 0, nil
		},
	}
	broadcaster := newFakeBroadcaster()
	svc := newChatService(messageRepo, connectedRepo(), broadcaster)

	_, err := svc.GetMessages(context.Background(), "alice", "bob", 1)
	require.NoError(t, err)
	assert.Empty(t, broadcaster.userFrames("bob"))
}

func TestMarkSeenAlwaysNotifies(t *testing.T) {
	initServiceTestLogger()
	initTestSnowflake(t)

	messageRepo := &fakeMessageRepo{
		markSeenFn: func(context.Context, string, string) (int64, error) {
			return 0, nil // 没有未读也通知，幂等
		},
	}
	broadcaster := newFakeBroadcaster()
	svc := newChatService(messageRepo, connectedRepo(), broadcaster)

	require.NoError(t, svc.MarkSeen(context.Background(), "alice", "bob"))
	frames := broadcaster.userFrames("bob")
	require.Len(t, frames, 1)
	assert.Equal(t, event.TypeMessagesSeen, frames[0].Type)

	var payload event.SeenPayload
	require.NoError(t, json.Unmarshal(frames[0].Data, &payload))
	assert.Equal(t, "alice", payload.ViewerUuid)
}

// 完整链路：互相挥手成为好友 -> 发消息 -> 对方拉历史触发已读回执。
func TestMutualWaveThenMessageThenSeen(t *testing.T) {
	initServiceTestLogger()
	initTestSnowflake(t)

	broadcaster := newFakeBroadcaster()
	points := &fakePoints{}

	waveCount := 0
	waveRepo := &fakeWaveRepo{
		recordWaveFn: func(context.Context, string, string) (*repository.WaveResult, error) {
			waveCount++
			if waveCount == 1 {
				return &repository.WaveResult{Promoted: false}, nil
			}
			return &repository.WaveResult{
				Promoted:   true,
				Friendship: &model.Friendship{UserLow: "alice", UserHigh: "bob"},
			}, nil
		},
	}
	friendshipRepo := connectedRepo()
	friendSvc := NewFriendService(friendshipRepo, waveRepo, &fakeSkipRepo{}, broadcaster, points)

	first, err := friendSvc.Wave(context.Background(), "alice", "bob")
	require.NoError(t, err)
	assert.False(t, first.Promoted)

	second, err := friendSvc.Wave(context.Background(), "bob", "alice")
	require.NoError(t, err)
	assert.True(t, second.Promoted)
	assert.Len(t, points.awarded(), 2)

	messageRepo := &fakeMessageRepo{
		markSeenFn: func(context.Context, string, string) (int64, error) { return 1, nil },
		listPageFn: func(context.Context, string, string, int, int) ([]*model.Message, error) {
			return []*model.Message{
				{Id: 10, SenderUuid: "alice", ReceiverUuid: "bob", Text: "hi bob"},
			}, nil
		},
	}
	chatSvc := newChatService(messageRepo, friendshipRepo, broadcaster)

	_, err = chatSvc.SendMessage(context.Background(), "alice", "bob", "hi bob", "")
	require.NoError(t, err)

	messages, err := chatSvc.GetMessages(context.Background(), "bob", "alice", 1)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	// alice 收到 bob 的已读回执
	var seenFrame *event.Envelope
	for _, frame := range broadcaster.userFrames("alice") {
		if frame.Type == event.TypeMessagesSeen {
			f := frame
			seenFrame = &f
		}
	}
	require.NotNil(t, seenFrame)
}
