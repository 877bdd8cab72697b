// Package session implements Signaling Online of spec.md §4.1: the
// gateway-facing Connect/Heartbeat/Disconnect lifecycle, device
// conflict enforcement, and presence fan-out. Grounded on the
// teacher's service/chat.ConnManager (auth-state TTL, max-per-user
// eviction) translated from an in-process connection table into a
// cache-store-backed registry so any Access Gateway instance can see
// any user's sessions, and on service/natsx's Core-mode pub/sub
// (NatsxConsumer.Subscribe / NatsxProducer.Publish) for cross-gateway
// presence notification.
package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/flare152/flare-im-core/internal/errs"
	"github.com/flare152/flare-im-core/internal/logging"
	"github.com/flare152/flare-im-core/internal/model"
	"github.com/flare152/flare-im-core/internal/store/rediscache"
)

const presenceSubject = "presence.events"

// EventKind distinguishes the three presence notifications gateways and
// the push layer care about.
type EventKind string

const (
	EventConnected    EventKind = "connected"
	EventDisconnected EventKind = "disconnected"
	EventKicked       EventKind = "kicked"
)

// Event is published on presenceSubject whenever a session is
// created, refreshed away, or forcibly closed by a device-conflict
// eviction.
type Event struct {
	Kind     EventKind     `json:"kind"`
	Session  model.Session `json:"session"`
	At       int64         `json:"at"`
}

type TenantConfigSource interface {
	Get(tenantID string) model.TenantConfig
}

// Manager is the Signaling Online surface the Access Gateway calls on
// every upgraded websocket connection.
type Manager struct {
	Cache   *rediscache.SessionCache
	Tenants TenantConfigSource
	NC      *nats.Conn
}

// Connect registers a new session, enforcing the tenant's
// DeviceConflictPolicy (spec.md §4.1): Coexist leaves existing
// sessions untouched, Exclusive evicts every other device of the
// user, PlatformExclusive evicts only devices on the same platform —
// mirroring the teacher's ensureRoomForUserLocked eviction but keyed
// on policy instead of a connection-count ceiling.
func (m *Manager) Connect(ctx context.Context, s model.Session) ([]model.Session, error) {
	cfg := m.Tenants.Get(s.TenantID)
	s.ConnectedAt = time.Now()
	s.LastHeartbeat = s.ConnectedAt

	existing, err := m.Cache.ListDevices(ctx, s.TenantID, s.UserID)
	if err != nil {
		return nil, errs.WrapMsg(err, "session: list devices")
	}

	var evicted []model.Session
	switch cfg.DeviceConflict {
	case model.DeviceConflictExclusive:
		for _, other := range existing {
			if other.DeviceID == s.DeviceID {
				continue
			}
			if err := m.Cache.Remove(ctx, s.TenantID, s.UserID, other.DeviceID); err != nil {
				logging.Warnf("session: evict failed user=%s device=%s err=%v", s.UserID, other.DeviceID, err)
				continue
			}
			evicted = append(evicted, other)
		}
	case model.DeviceConflictPlatformExclusive:
		for _, other := range existing {
			if other.DeviceID == s.DeviceID || other.Platform != s.Platform {
				continue
			}
			if err := m.Cache.Remove(ctx, s.TenantID, s.UserID, other.DeviceID); err != nil {
				logging.Warnf("session: evict failed user=%s device=%s err=%v", s.UserID, other.DeviceID, err)
				continue
			}
			evicted = append(evicted, other)
		}
	}

	if err := m.Cache.Put(ctx, s, cfg.SessionTTL); err != nil {
		return nil, errs.WrapMsg(err, "session: put")
	}

	m.publish(Event{Kind: EventConnected, Session: s, At: time.Now().UnixMilli()})
	for _, other := range evicted {
		m.publish(Event{Kind: EventKicked, Session: other, At: time.Now().UnixMilli()})
	}
	return evicted, nil
}

// Heartbeat refreshes TTL; the caller (gateway read loop) invokes it
// on every inbound PING frame.
func (m *Manager) Heartbeat(ctx context.Context, tenantID, userID, deviceID string) error {
	cfg := m.Tenants.Get(tenantID)
	return m.Cache.Touch(ctx, tenantID, userID, deviceID, cfg.SessionTTL)
}

func (m *Manager) Disconnect(ctx context.Context, s model.Session) error {
	if err := m.Cache.Remove(ctx, s.TenantID, s.UserID, s.DeviceID); err != nil {
		return errs.WrapMsg(err, "session: remove")
	}
	m.publish(Event{Kind: EventDisconnected, Session: s, At: time.Now().UnixMilli()})
	return nil
}

func (m *Manager) ListDevices(ctx context.Context, tenantID, userID string) ([]model.Session, error) {
	return m.Cache.ListDevices(ctx, tenantID, userID)
}

func (m *Manager) publish(ev Event) {
	if m.NC == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		logging.Warnf("session: marshal presence event failed err=%v", err)
		return
	}
	if err := m.NC.Publish(presenceSubject, data); err != nil {
		logging.Warnf("session: publish presence event failed err=%v", err)
	}
}

// SubscribePresence lets another process (e.g. a different gateway
// instance, or the push layer) react to presence changes, in the
// teacher's Core-mode nc.Subscribe shape.
func SubscribePresence(nc *nats.Conn, handler func(Event)) (*nats.Subscription, error) {
	return nc.Subscribe(presenceSubject, func(msg *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			logging.Warnf("session: unmarshal presence event failed err=%v", err)
			return
		}
		handler(ev)
	})
}
