package presence

import (
	"errors"
	"sync"
)

var (
	// ErrAlreadyRegistered 连接 id 已注册。
	ErrAlreadyRegistered = errors.New("connection already registered")
	// ErrNotRegistered 连接 id 未注册。
	ErrNotRegistered = errors.New("connection not registered")
	// ErrShutdown 注册表已关闭，不再接受新连接。
	ErrShutdown = errors.New("registry shut down")
)

// Conn 是注册表看到的连接抽象。
// 生产实现是 websocket Client，测试里用内存 fake。
type Conn interface {
	// ID 连接唯一标识（进程内唯一即可）。
	ID() string
	// UserUUID 连接归属用户。
	UserUUID() string
	// Enqueue 将下行帧投递到写队列，返回 false 表示连接已关闭或队列已满。
	Enqueue(msg []byte) bool
	// Close 幂等关闭连接。
	Close()
}

// entry 单个连接的注册态：连接本体 + 已加入的频道集合。
type entry struct {
	conn     Conn
	channels map[string]struct{}
}

// Registry 在线连接注册表。
// 维护两套索引：
// - byConn(connection_id -> entry) 用于精确定位连接；
// - byChannel(channel -> connection_id 集合) 用于按频道广播。
// 单进程持有全部在线状态，重启即全体下线，无跨进程同步。
type Registry struct {
	mu        sync.RWMutex
	byConn    map[string]*entry
	byChannel map[string]map[string]struct{}
	byUser    map[string]map[string]struct{} // user_uuid -> connection_id 集合
	shutdown  bool
}

// NewRegistry 创建注册表实例。
func NewRegistry() *Registry {
	return &Registry{
		byConn:    make(map[string]*entry),
		byChannel: make(map[string]map[string]struct{}),
		byUser:    make(map[string]map[string]struct{}),
	}
}

// Register 注册一个连接，并隐式加入其个人频道。
// 同一连接 id 重复注册返回 ErrAlreadyRegistered（同一用户多个连接是允许的，id 不同即可）。
func (r *Registry) Register(conn Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.shutdown {
		return ErrShutdown
	}
	if _, ok := r.byConn[conn.ID()]; ok {
		return ErrAlreadyRegistered
	}

	e := &entry{conn: conn, channels: make(map[string]struct{})}
	r.byConn[conn.ID()] = e

	conns, ok := r.byUser[conn.UserUUID()]
	if !ok {
		conns = make(map[string]struct{})
		r.byUser[conn.UserUUID()] = conns
	}
	conns[conn.ID()] = struct{}{}

	r.joinLocked(e, conn.ID(), PersonalChannel(conn.UserUUID()))
	return nil
}

// Unregister 注销连接并清理其全部频道成员关系。幂等：未注册时返回空串。
// 返回连接归属的用户 uuid，供调用方做后续清理（输入指示器等）。
func (r *Registry) Unregister(connID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byConn[connID]
	if !ok {
		return ""
	}

	for channel := range e.channels {
		r.leaveLocked(connID, channel)
	}
	delete(r.byConn, connID)

	userUuid := e.conn.UserUUID()
	if conns, ok := r.byUser[userUuid]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.byUser, userUuid)
		}
	}
	return userUuid
}

// Join 将连接加入频道。重复加入是无害的。
func (r *Registry) Join(connID, channel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byConn[connID]
	if !ok {
		return ErrNotRegistered
	}
	r.joinLocked(e, connID, channel)
	return nil
}

// Leave 将连接移出频道。未加入过的频道是无害的。
func (r *Registry) Leave(connID, channel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byConn[connID]
	if !ok {
		return ErrNotRegistered
	}
	delete(e.channels, channel)
	r.leaveLocked(connID, channel)
	return nil
}

// Broadcast 向频道所有成员投递一帧，excludeConnID 非空时跳过该连接（事件发起方）。
// 成员快照在读锁内完成，入队在锁外执行，慢连接不会阻塞其他频道的操作。
// 返回成功入队的连接数；单个连接入队失败只影响它自己。
func (r *Registry) Broadcast(channel string, payload []byte, excludeConnID string) int {
	r.mu.RLock()
	members, ok := r.byChannel[channel]
	if !ok || len(members) == 0 {
		r.mu.RUnlock()
		return 0
	}
	conns := make([]Conn, 0, len(members))
	for connID := range members {
		if connID == excludeConnID {
			continue
		}
		if e, ok := r.byConn[connID]; ok {
			conns = append(conns, e.conn)
		}
	}
	r.mu.RUnlock()

	sent := 0
	for _, conn := range conns {
		if conn.Enqueue(payload) {
			sent++
		}
	}
	return sent
}

// SendToUser 向用户的个人频道广播（该用户的全部在线连接）。
func (r *Registry) SendToUser(userUuid string, payload []byte) int {
	return r.Broadcast(PersonalChannel(userUuid), payload, "")
}

// IsOnline 判断用户是否至少有一个在线连接。
func (r *Registry) IsOnline(userUuid string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userUuid]) > 0
}

// Count 返回当前在线连接数。
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}

// Shutdown 关闭全部连接并拒绝后续注册，用于进程优雅退出。
func (r *Registry) Shutdown() {
	r.mu.Lock()
	if r.shutdown {
		r.mu.Unlock()
		return
	}
	r.shutdown = true

	conns := make([]Conn, 0, len(r.byConn))
	for _, e := range r.byConn {
		conns = append(conns, e.conn)
	}
	r.byConn = make(map[string]*entry)
	r.byChannel = make(map[string]map[string]struct{})
	r.byUser = make(map[string]map[string]struct{})
	r.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}

// joinLocked 在持有写锁的前提下建立双向索引。
func (r *Registry) joinLocked(e *entry, connID, channel string) {
	e.channels[channel] = struct{}{}
	members, ok := r.byChannel[channel]
	if !ok {
		members = make(map[string]struct{})
		r.byChannel[channel] = members
	}
	members[connID] = struct{}{}
}

// leaveLocked 在持有写锁的前提下移除频道侧索引。
func (r *Registry) leaveLocked(connID, channel string) {
	if members, ok := r.byChannel[channel]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.byChannel, channel)
		}
	}
}
