package gateway

import (
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flare152/flare-im-core/internal/logging"
)

// ManagerConf configures the unauth/auth TTLs and per-user connection
// ceiling, in the teacher's ManagerConf shape.
type ManagerConf struct {
	UnauthTTL   time.Duration
	AuthTTL     time.Duration
	SweepEvery  time.Duration
	MaxPerUser  int
	OutboxSize  int // bounded per-connection send queue (backpressure)
}

func (c *ManagerConf) norm() {
	if c.SweepEvery <= 0 {
		c.SweepEvery = 10 * time.Second
	}
	if c.UnauthTTL <= 0 {
		c.UnauthTTL = 60 * time.Second
	}
	if c.AuthTTL <= 0 {
		c.AuthTTL = 2 * time.Hour
	}
	if c.OutboxSize <= 0 {
		c.OutboxSize = 256
	}
}

// Conn is one upgraded websocket, unauthenticated until BindUser is
// called. Outbox is a bounded channel: spec.md's backpressure
// requirement is enforced by dropping the connection (not blocking
// the writer goroutine) when it fills, since a slow/dead client must
// never stall message delivery to everyone else.
type Conn struct {
	ConnID   string
	TenantID string
	UserID   string
	DeviceID string
	Platform string
	Authorized bool

	Socket *websocket.Conn
	Remote net.Addr
	Outbox chan []byte

	CreatedAt time.Time
	ExpireAt  time.Time
	TTL       time.Duration
}

// ConnManager tracks every live connection on this gateway instance,
// indexed both by connID (the primary key) and by (tenant,user) for
// fan-out and eviction, mirroring the teacher's bySnow/byUser dual
// index.
type ConnManager struct {
	mu       sync.RWMutex
	byConn   map[string]*Conn
	byUser   map[string]map[string]*Conn // "tenant:user" -> connID -> *Conn

	conf     ManagerConf
	gatewayID string
	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewConnManager(gatewayID string, conf ManagerConf) *ConnManager {
	conf.norm()
	m := &ConnManager{
		byConn:    make(map[string]*Conn),
		byUser:    make(map[string]map[string]*Conn),
		conf:      conf,
		gatewayID: gatewayID,
		stopCh:    make(chan struct{}),
	}
	go m.sweeper()
	return m
}

func userKey(tenantID, userID string) string { return tenantID + ":" + userID }

func (m *ConnManager) AddUnauth(connID string, socket *websocket.Conn) *Conn {
	now := time.Now()
	c := &Conn{
		ConnID:    connID,
		Socket:    socket,
		Remote:    socket.RemoteAddr(),
		Outbox:    make(chan []byte, m.conf.OutboxSize),
		CreatedAt: now,
		TTL:       m.conf.UnauthTTL,
		ExpireAt:  now.Add(m.conf.UnauthTTL),
	}
	m.mu.Lock()
	m.byConn[connID] = c
	m.mu.Unlock()
	return c
}

// BindUser authorizes a connection, switches it to AuthTTL, and
// evicts over-the-limit siblings the same way the teacher's
// ensureRoomForUserLocked does — except eviction here is a policy the
// caller (internal/session.Manager, per DeviceConflictPolicy) already
// decided; ConnManager only enforces a hard ceiling as a last resort
// against resource exhaustion.
func (m *ConnManager) BindUser(connID, tenantID, userID, deviceID, platform string) error {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.byConn[connID]
	if !ok {
		return errConnNotFound
	}
	c.TenantID, c.UserID, c.DeviceID, c.Platform = tenantID, userID, deviceID, platform
	c.Authorized = true
	c.TTL = m.conf.AuthTTL
	c.ExpireAt = now.Add(m.conf.AuthTTL)

	key := userKey(tenantID, userID)
	if m.byUser[key] == nil {
		m.byUser[key] = make(map[string]*Conn)
	}
	if m.conf.MaxPerUser > 0 && len(m.byUser[key]) >= m.conf.MaxPerUser {
		var oldest *Conn
		for _, other := range m.byUser[key] {
			if oldest == nil || other.CreatedAt.Before(oldest.CreatedAt) {
				oldest = other
			}
		}
		if oldest != nil {
			delete(m.byUser[key], oldest.ConnID)
			delete(m.byConn, oldest.ConnID)
			go closeQuiet(oldest.Socket)
		}
	}
	m.byUser[key][connID] = c
	return nil
}

func (m *ConnManager) Heartbeat(connID string) {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.byConn[connID]; ok {
		c.ExpireAt = now.Add(c.TTL)
	}
}

func (m *ConnManager) Remove(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byConn[connID]
	if !ok {
		return
	}
	delete(m.byConn, connID)
	if c.Authorized {
		key := userKey(c.TenantID, c.UserID)
		if mm := m.byUser[key]; mm != nil {
			delete(mm, connID)
			if len(mm) == 0 {
				delete(m.byUser, key)
			}
		}
	}
	closeQuiet(c.Socket)
}

func (m *ConnManager) Get(connID string) (*Conn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byConn[connID]
	return c, ok
}

// ListUserConns returns the live local connections for a user,
// checked by push delivery before it dispatches a frame.
func (m *ConnManager) ListUserConns(tenantID, userID string) []*Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mm := m.byUser[userKey(tenantID, userID)]
	out := make([]*Conn, 0, len(mm))
	for _, c := range mm {
		out = append(out, c)
	}
	return out
}

// Send enqueues a frame on the connection's bounded outbox;
// spec.md's backpressure requirement means a full outbox drops the
// connection rather than blocking the caller.
func (m *ConnManager) Send(connID string, data []byte) bool {
	m.mu.RLock()
	c, ok := m.byConn[connID]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	select {
	case c.Outbox <- data:
		return true
	default:
		logging.Warnf("gateway: outbox full, dropping connection conn=%s user=%s", connID, c.UserID)
		m.Remove(connID)
		return false
	}
}

func (m *ConnManager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byConn {
		closeQuiet(c.Socket)
	}
	m.byConn = map[string]*Conn{}
	m.byUser = map[string]map[string]*Conn{}
}

func (m *ConnManager) sweeper() {
	t := time.NewTicker(m.conf.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case now := <-t.C:
			m.sweepOnce(now)
		}
	}
}

func (m *ConnManager) sweepOnce(now time.Time) {
	var expired []*Conn
	m.mu.Lock()
	for id, c := range m.byConn {
		if now.After(c.ExpireAt) {
			expired = append(expired, c)
			delete(m.byConn, id)
			if c.Authorized {
				key := userKey(c.TenantID, c.UserID)
				if mm := m.byUser[key]; mm != nil {
					delete(mm, id)
					if len(mm) == 0 {
						delete(m.byUser, key)
					}
				}
			}
		}
	}
	m.mu.Unlock()
	for _, c := range expired {
		closeQuiet(c.Socket)
	}
}

func closeQuiet(c *websocket.Conn) {
	if c != nil {
		_ = c.Close()
	}
}

type connErr string

func (e connErr) Error() string { return string(e) }

const errConnNotFound = connErr("gateway: connection not found")
