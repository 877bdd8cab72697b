package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flare152/flare-im-core/internal/model"
)

// SessionCache holds the live gateway binding for each (tenant, user,
// device), refreshed on every heartbeat and expiring on
// TenantConfig.SessionTTL when heartbeats stop (spec.md §4.1).
type SessionCache struct {
	Rdb *redis.Client
}

func sessionKey(tenantID, userID, deviceID string) string {
	return "sess:" + tenantID + ":" + userID + ":" + deviceID
}

func sessionSetKey(tenantID, userID string) string {
	return "sess:set:" + tenantID + ":" + userID
}

func (c *SessionCache) Put(ctx context.Context, s model.Session, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	pipe := c.Rdb.TxPipeline()
	pipe.Set(ctx, sessionKey(s.TenantID, s.UserID, s.DeviceID), data, ttl)
	pipe.SAdd(ctx, sessionSetKey(s.TenantID, s.UserID), s.DeviceID)
	pipe.Expire(ctx, sessionSetKey(s.TenantID, s.UserID), ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *SessionCache) Touch(ctx context.Context, tenantID, userID, deviceID string, ttl time.Duration) error {
	return c.Rdb.Expire(ctx, sessionKey(tenantID, userID, deviceID), ttl).Err()
}

func (c *SessionCache) Remove(ctx context.Context, tenantID, userID, deviceID string) error {
	pipe := c.Rdb.TxPipeline()
	pipe.Del(ctx, sessionKey(tenantID, userID, deviceID))
	pipe.SRem(ctx, sessionSetKey(tenantID, userID), deviceID)
	_, err := pipe.Exec(ctx)
	return err
}

// ListDevices returns the sessions currently registered for a user,
// skipping any device whose key already expired between the SMEMBERS
// read and the per-key GET.
func (c *SessionCache) ListDevices(ctx context.Context, tenantID, userID string) ([]model.Session, error) {
	deviceIDs, err := c.Rdb.SMembers(ctx, sessionSetKey(tenantID, userID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.Session, 0, len(deviceIDs))
	for _, d := range deviceIDs {
		data, err := c.Rdb.Get(ctx, sessionKey(tenantID, userID, d)).Bytes()
		if err == redis.Nil {
			c.Rdb.SRem(ctx, sessionSetKey(tenantID, userID), d)
			continue
		}
		if err != nil {
			return nil, err
		}
		var s model.Session
		if err := json.Unmarshal(data, &s); err != nil {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
