package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"CampusGram/config"
	"CampusGram/consts"
	"CampusGram/internal/event"
	"CampusGram/internal/handler"
	"CampusGram/internal/presence"
	"CampusGram/internal/repository"
	"CampusGram/internal/service"
	"CampusGram/model"
	"CampusGram/pkg/logger"
	"CampusGram/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var routerTestInit sync.Once

func initRouterTest() {
	routerTestInit.Do(func() {
		gin.SetMode(gin.TestMode)
		logger.ReplaceGlobal(zap.NewNop())
	})
}

type fakeChatService struct {
	sendMessageFn   func(ctx context.Context, senderUuid, receiverUuid, text, attachmentURL string) (*model.Message, error)
	getMessagesFn   func(ctx context.Context, userUuid, otherUuid string, page int) ([]*model.Message, error)
	markSeenFn      func(ctx context.Context, viewerUuid, otherUuid string) error
	conversationsFn func(ctx context.Context, userUuid string) ([]*repository.Conversation, error)
}

var _ service.IChatService = (*fakeChatService)(nil)

func (f *fakeChatService) SendMessage(ctx context.Context, senderUuid, receiverUuid, text, attachmentURL string) (*model.Message, error) {
	if f.sendMessageFn == nil {
		return &model.Message{}, nil
	}
	return f.sendMessageFn(ctx, senderUuid, receiverUuid, text, attachmentURL)
}

func (f *fakeChatService) GetMessages(ctx context.Context, userUuid, otherUuid string, page int) ([]*model.Message, error) {
	if f.getMessagesFn == nil {
		return nil, nil
	}
	return f.getMessagesFn(ctx, userUuid, otherUuid, page)
}

func (f *fakeChatService) MarkSeen(ctx context.Context, viewerUuid, otherUuid string) error {
	if f.markSeenFn == nil {
		return nil
	}
	return f.markSeenFn(ctx, viewerUuid, otherUuid)
}

func (f *fakeChatService) Conversations(ctx context.Context, userUuid string) ([]*repository.Conversation, error) {
	if f.conversationsFn == nil {
		return nil, nil
	}
	return f.conversationsFn(ctx, userUuid)
}

type fakeFriendService struct {
	waveFn    func(ctx context.Context, senderUuid, receiverUuid string) (*repository.WaveResult, error)
	skipFn    func(ctx context.Context, userUuid, skippedUuid string) error
	friendsFn func(ctx context.Context, userUuid string) ([]string, error)
}

var _ service.IFriendService = (*fakeFriendService)(nil)

func (f *fakeFriendService) Wave(ctx context.Context, senderUuid, receiverUuid string) (*repository.WaveResult, error) {
	if f.waveFn == nil {
		return &repository.WaveResult{}, nil
	}
	return f.waveFn(ctx, senderUuid, receiverUuid)
}

func (f *fakeFriendService) Skip(ctx context.Context, userUuid, skippedUuid string) error {
	if f.skipFn == nil {
		return nil
	}
	return f.skipFn(ctx, userUuid, skippedUuid)
}

func (f *fakeFriendService) Friends(ctx context.Context, userUuid string) ([]string, error) {
	if f.friendsFn == nil {
		return nil, nil
	}
	return f.friendsFn(ctx, userUuid)
}

type fakeBanRepo struct {
	activeBanFn func(ctx context.Context, userUuid string) (*model.Ban, error)
}

var _ repository.IBanRepository = (*fakeBanRepo)(nil)

func (f *fakeBanRepo) ActiveBan(ctx context.Context, userUuid string) (*model.Ban, error) {
	if f.activeBanFn == nil {
		return nil, nil
	}
	return f.activeBanFn(ctx, userUuid)
}

func buildTestRouter(chat *fakeChatService, friend *fakeFriendService, ban *fakeBanRepo) *gin.Engine {
	r, _ := buildTestRouterWithRegistry(chat, friend, ban)
	return r
}

func buildTestRouterWithRegistry(chat *fakeChatService, friend *fakeFriendService, ban *fakeBanRepo) (*gin.Engine, *presence.Registry) {
	initRouterTest()

	authCfg := config.DefaultAuthConfig()
	chatCfg := config.DefaultChatConfig()

	registry := presence.NewRegistry()
	typingTracker := presence.NewTypingTracker(registry)

	wsHandler := handler.NewWSHandler(registry, typingTracker, chat, friend, ban, authCfg, chatCfg)
	chatHandler := handler.NewChatHandler(chat, nil)
	friendHandler := handler.NewFriendHandler(friend)

	return InitRouter(authCfg, nil, wsHandler, chatHandler, friendHandler), registry
}

func newAuthedRequest(t *testing.T, method, target, body, userUuid string) *http.Request {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := util.GenerateToken(config.DefaultAuthConfig(), userUuid, "d1")
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder, data interface{}) int32 {
	t.Helper()

	var resp struct {
		Code int32           `json:"code"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	if data != nil && len(resp.Data) > 0 && string(resp.Data) != "null" {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return resp.Code
}

func TestRouterHealth(t *testing.T) {
	r := buildTestRouter(&fakeChatService{}, &fakeFriendService{}, &fakeBanRepo{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestRouterRejectsMissingToken(t *testing.T) {
	r := buildTestRouter(&fakeChatService{}, &fakeFriendService{}, &fakeBanRepo{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/chat/conversations", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouterConversations(t *testing.T) {
	userUuid := util.NewUUID()
	peerUuid := util.NewUUID()
	chat := &fakeChatService{
		conversationsFn: func(_ context.Context, u string) ([]*repository.Conversation, error) {
			require.Equal(t, userUuid, u)
			return []*repository.Conversation{
				{
					PeerUuid:    peerUuid,
					LastMessage: &model.Message{Id: 7, SenderUuid: peerUuid, ReceiverUuid: userUuid, Text: "hi"},
					UnreadCount: 3,
				},
			}, nil
		},
	}
	r := buildTestRouter(chat, &fakeFriendService{}, &fakeBanRepo{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, newAuthedRequest(t, http.MethodGet, "/api/v1/chat/conversations", "", userUuid))

	require.Equal(t, http.StatusOK, w.Code)
	var data []struct {
		PeerUuid    string `json:"peer_uuid"`
		UnreadCount int64  `json:"unread_count"`
		LastMessage *struct {
			Id   int64  `json:"id"`
			Text string `json:"text"`
		} `json:"last_message"`
	}
	assert.Equal(t, int32(consts.CodeSuccess), decodeResponse(t, w, &data))
	require.Len(t, data, 1)
	assert.Equal(t, peerUuid, data[0].PeerUuid)
	assert.Equal(t, int64(3), data[0].UnreadCount)
	require.NotNil(t, data[0].LastMessage)
	assert.Equal(t, int64(7), data[0].LastMessage.Id)
}

func TestRouterSendMessage(t *testing.T) {
	userUuid := util.NewUUID()
	receiverUuid := util.NewUUID()
	called := false
	chat := &fakeChatService{
		sendMessageFn: func(_ context.Context, sender, receiver, text, attachmentURL string) (*model.Message, error) {
			called = true
			require.Equal(t, userUuid, sender)
			require.Equal(t, receiverUuid, receiver)
			require.Equal(t, "hello", text)
			require.Empty(t, attachmentURL)
			return &model.Message{Id: 42, SenderUuid: sender, ReceiverUuid: receiver, Text: text, CreatedAt: time.Now()}, nil
		},
	}
	r := buildTestRouter(chat, &fakeFriendService{}, &fakeBanRepo{})

	body := `{"receiver_uuid":"` + receiverUuid + `","text":"hello"}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, newAuthedRequest(t, http.MethodPost, "/api/v1/chat/messages", body, userUuid))

	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Id int64 `json:"id"`
	}
	assert.Equal(t, int32(consts.CodeSuccess), decodeResponse(t, w, &data))
	assert.Equal(t, int64(42), data.Id)
	assert.True(t, called)
}

func TestRouterSendMessageNotFriend(t *testing.T) {
	chat := &fakeChatService{
		sendMessageFn: func(context.Context, string, string, string, string) (*model.Message, error) {
			return nil, service.ErrNotFriend
		},
	}
	r := buildTestRouter(chat, &fakeFriendService{}, &fakeBanRepo{})

	body := `{"receiver_uuid":"` + util.NewUUID() + `","text":"hello"}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, newAuthedRequest(t, http.MethodPost, "/api/v1/chat/messages", body, util.NewUUID()))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(consts.CodeNotFriend), decodeResponse(t, w, nil))
}

func TestRouterSendMessageParamError(t *testing.T) {
	r := buildTestRouter(&fakeChatService{}, &fakeFriendService{}, &fakeBanRepo{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, newAuthedRequest(t, http.MethodPost, "/api/v1/chat/messages", `{"receiver_uuid":"not-a-uuid"}`, util.NewUUID()))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(consts.CodeParamError), decodeResponse(t, w, nil))
}

func TestRouterGetMessagesDefaultPage(t *testing.T) {
	userUuid := util.NewUUID()
	peerUuid := util.NewUUID()
	chat := &fakeChatService{
		getMessagesFn: func(_ context.Context, u, other string, page int) ([]*model.Message, error) {
			require.Equal(t, userUuid, u)
			require.Equal(t, peerUuid, other)
			require.Equal(t, 1, page)
			return []*model.Message{{Id: 1, SenderUuid: other, ReceiverUuid: u, Text: "hi", Seen: true}}, nil
		},
	}
	r := buildTestRouter(chat, &fakeFriendService{}, &fakeBanRepo{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, newAuthedRequest(t, http.MethodGet, "/api/v1/chat/messages/"+peerUuid, "", userUuid))

	require.Equal(t, http.StatusOK, w.Code)
	var data []struct {
		Id   int64 `json:"id"`
		Seen bool  `json:"seen"`
	}
	assert.Equal(t, int32(consts.CodeSuccess), decodeResponse(t, w, &data))
	require.Len(t, data, 1)
	assert.True(t, data[0].Seen)
}

func TestRouterWavePromoted(t *testing.T) {
	userUuid := util.NewUUID()
	receiverUuid := util.NewUUID()
	friend := &fakeFriendService{
		waveFn: func(_ context.Context, sender, receiver string) (*repository.WaveResult, error) {
			require.Equal(t, userUuid, sender)
			require.Equal(t, receiverUuid, receiver)
			return &repository.WaveResult{Promoted: true}, nil
		},
	}
	r := buildTestRouter(&fakeChatService{}, friend, &fakeBanRepo{})

	body := `{"receiver_uuid":"` + receiverUuid + `"}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, newAuthedRequest(t, http.MethodPost, "/api/v1/friend/wave", body, userUuid))

	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Promoted bool `json:"promoted"`
	}
	assert.Equal(t, int32(consts.CodeSuccess), decodeResponse(t, w, &data))
	assert.True(t, data.Promoted)
}

func TestRouterWaveDuplicate(t *testing.T) {
	friend := &fakeFriendService{
		waveFn: func(context.Context, string, string) (*repository.WaveResult, error) {
			return nil, repository.ErrDuplicateWave
		},
	}
	r := buildTestRouter(&fakeChatService{}, friend, &fakeBanRepo{})

	body := `{"receiver_uuid":"` + util.NewUUID() + `"}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, newAuthedRequest(t, http.MethodPost, "/api/v1/friend/wave", body, util.NewUUID()))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(consts.CodeDuplicateWave), decodeResponse(t, w, nil))
}

func TestRouterFriendList(t *testing.T) {
	friend := &fakeFriendService{
		friendsFn: func(context.Context, string) ([]string, error) {
			return []string{"u2", "u3"}, nil
		},
	}
	r := buildTestRouter(&fakeChatService{}, friend, &fakeBanRepo{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, newAuthedRequest(t, http.MethodGet, "/api/v1/friend/list", "", util.NewUUID()))

	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Friends []string `json:"friends"`
	}
	assert.Equal(t, int32(consts.CodeSuccess), decodeResponse(t, w, &data))
	assert.Equal(t, []string{"u2", "u3"}, data.Friends)
}

func TestWSRejectsMissingToken(t *testing.T) {
	r := buildTestRouter(&fakeChatService{}, &fakeFriendService{}, &fakeBanRepo{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWSRejectsBannedUser(t *testing.T) {
	ban := &fakeBanRepo{
		activeBanFn: func(context.Context, string) (*model.Ban, error) {
			return &model.Ban{IsPermanent: true}, nil
		},
	}
	r := buildTestRouter(&fakeChatService{}, &fakeFriendService{}, ban)

	token, err := util.GenerateToken(config.DefaultAuthConfig(), util.NewUUID(), "d1")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?token="+token+"&device_id=d1", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "封禁")
}

// TestWSTypingAfterUnregisterGetsErrorFrame 生命周期错误要回给发起连接：
// 连接已被注销后再发 typing_start，应收到 error 帧而不是被静默吞掉。
func TestWSTypingAfterUnregisterGetsErrorFrame(t *testing.T) {
	r, registry := buildTestRouterWithRegistry(&fakeChatService{}, &fakeFriendService{}, &fakeBanRepo{})
	srv := httptest.NewServer(r)
	defer srv.Close()

	userUuid := util.NewUUID()
	token, err := util.GenerateToken(config.DefaultAuthConfig(), userUuid, "d1")
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token + "&device_id=d1"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var connected event.Envelope
	require.NoError(t, json.Unmarshal(raw, &connected))
	require.Equal(t, event.TypeConnected, connected.Type)
	var connectedPayload event.ConnectedPayload
	require.NoError(t, json.Unmarshal(connected.Data, &connectedPayload))

	require.Equal(t, userUuid, registry.Unregister(connectedPayload.ConnID))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"typing_start","data":{"peer_uuid":"`+util.NewUUID()+`"}}`)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err = conn.ReadMessage()
	require.NoError(t, err)
	var errFrame event.Envelope
	require.NoError(t, json.Unmarshal(raw, &errFrame))
	require.Equal(t, event.TypeError, errFrame.Type)
	var errPayload event.ErrorPayload
	require.NoError(t, json.Unmarshal(errFrame.Data, &errPayload))
	assert.Equal(t, int32(consts.CodeInternalError), errPayload.Code)
}

// TestWSConnectAndJoin 端到端握手：建连后应先收到 connected 帧，
// 心跳要有回执，加入会话频道要有确认。
func TestWSConnectAndJoin(t *testing.T) {
	r := buildTestRouter(&fakeChatService{}, &fakeFriendService{}, &fakeBanRepo{})
	srv := httptest.NewServer(r)
	defer srv.Close()

	userUuid := util.NewUUID()
	peerUuid := util.NewUUID()
	token, err := util.GenerateToken(config.DefaultAuthConfig(), userUuid, "d1")
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token + "&device_id=d1"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	readEnvelope := func() event.Envelope {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var envelope event.Envelope
		require.NoError(t, json.Unmarshal(raw, &envelope))
		return envelope
	}

	connected := readEnvelope()
	require.Equal(t, event.TypeConnected, connected.Type)
	var connectedPayload event.ConnectedPayload
	require.NoError(t, json.Unmarshal(connected.Data, &connectedPayload))
	assert.Equal(t, userUuid, connectedPayload.UserUuid)
	assert.NotEmpty(t, connectedPayload.ConnID)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"heartbeat"}`)))
	assert.Equal(t, event.TypeHeartbeatAck, readEnvelope().Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"join_chat","data":{"peer_uuid":"`+peerUuid+`"}}`)))
	joined := readEnvelope()
	require.Equal(t, event.TypeJoinedChannel, joined.Type)
	var channelPayload event.ChannelPayload
	require.NoError(t, json.Unmarshal(joined.Data, &channelPayload))
	expected, err := presence.ChannelFor(userUuid, peerUuid)
	require.NoError(t, err)
	assert.Equal(t, expected, channelPayload.Channel)
}
