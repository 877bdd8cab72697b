package rediscache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// SyncCursorCache caches the per-device last-synced seq so a
// reconnect's SyncMissed call can avoid a metadata-store round trip in
// the common case (spec.md §4.5).
type SyncCursorCache struct {
	Rdb *redis.Client
}

func cursorKey(tenantID, userID, deviceID, conversationID string) string {
	return "sync:" + tenantID + ":" + userID + ":" + deviceID + ":" + conversationID
}

func (c *SyncCursorCache) Set(ctx context.Context, tenantID, userID, deviceID, conversationID string, seq int64, ttl time.Duration) error {
	return c.Rdb.Set(ctx, cursorKey(tenantID, userID, deviceID, conversationID), seq, ttl).Err()
}

func (c *SyncCursorCache) Get(ctx context.Context, tenantID, userID, deviceID, conversationID string) (int64, bool, error) {
	val, err := c.Rdb.Get(ctx, cursorKey(tenantID, userID, deviceID, conversationID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	seq, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return seq, true, nil
}

// HotMessageCache caches recently written messages by server id so
// the storage reader's hot-path GetMessage calls can skip Mongo.
type HotMessageCache struct {
	Rdb *redis.Client
}

func hotMsgKey(tenantID, serverID string) string {
	return "msg:hot:" + tenantID + ":" + serverID
}

func (c *HotMessageCache) Set(ctx context.Context, tenantID, serverID string, data []byte, ttl time.Duration) error {
	return c.Rdb.Set(ctx, hotMsgKey(tenantID, serverID), data, ttl).Err()
}

func (c *HotMessageCache) Get(ctx context.Context, tenantID, serverID string) ([]byte, bool, error) {
	data, err := c.Rdb.Get(ctx, hotMsgKey(tenantID, serverID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (c *HotMessageCache) Invalidate(ctx context.Context, tenantID, serverID string) error {
	return c.Rdb.Del(ctx, hotMsgKey(tenantID, serverID)).Err()
}
