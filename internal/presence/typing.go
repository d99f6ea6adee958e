package presence

import "sync"

// Indicator 一条"正在输入"状态：哪个连接上的哪个用户正对谁输入。
type Indicator struct {
	ConnID   string
	UserUuid string
	PeerUuid string
}

// TypingTracker 跟踪每条连接的输入状态。
// 按连接 id 建键：同一连接同时只对一个会话输入，切换会话即覆盖。
// 连接断开时由 ws handler 负责 Stop + 广播，状态不会在连接之后存活。
type TypingTracker struct {
	mu       sync.Mutex
	registry *Registry
	byConn   map[string]Indicator
}

// NewTypingTracker 创建输入状态跟踪器。
func NewTypingTracker(registry *Registry) *TypingTracker {
	return &TypingTracker{
		registry: registry,
		byConn:   make(map[string]Indicator),
	}
}

// Start 记录连接开始输入。连接未注册时返回 ErrNotRegistered。
// 重复 Start（包括切换对端）直接覆盖旧状态。
func (t *TypingTracker) Start(connID, userUuid, peerUuid string) error {
	if t.registry != nil {
		t.registry.mu.RLock()
		_, ok := t.registry.byConn[connID]
		t.registry.mu.RUnlock()
		if !ok {
			return ErrNotRegistered
		}
	}

	t.mu.Lock()
	t.byConn[connID] = Indicator{ConnID: connID, UserUuid: userUuid, PeerUuid: peerUuid}
	t.mu.Unlock()
	return nil
}

// Stop 移除连接的输入状态并返回之前记录的指示器。
// 没有记录时 ok 为 false，调用方应当什么都不发。
func (t *TypingTracker) Stop(connID string) (Indicator, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	indicator, ok := t.byConn[connID]
	if ok {
		delete(t.byConn, connID)
	}
	return indicator, ok
}

// Active 返回当前处于输入中的连接数（监控用）。
func (t *TypingTracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byConn)
}
