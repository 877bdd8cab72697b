package rediscache

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore maps a client-supplied client_msg_id to the
// server-assigned id, using SETNX so the first writer wins (spec.md
// §4.2, invariant I8). TTL must match the tenant's IdempotencyTTL and
// stay aligned with the writer-side dedup TTL on (tenant, server_id) —
// see SPEC_FULL.md's supplemented idempotency-alignment note.
type IdempotencyStore struct {
	Rdb *redis.Client
}

// idemKey follows spec.md §6's cache key schema
// idem:{tenant}:{sender}:{client_msg_id}: the message fingerprint of
// §4.2 step 1 and invariant I2 is keyed on the sender, not the
// conversation.
func idemKey(tenantID, senderID, clientMsgID string) string {
	return "idem:" + tenantID + ":" + senderID + ":" + clientMsgID
}

// encodeIdemValue/decodeIdemValue pack server_id and seq into one
// redis value so a duplicate resend can return the prior seq (spec.md
// §4.2 step 2) without a second round trip; seq is unknown at Reserve
// time (assigned only after hooks admit the send), so it starts at 0
// and UpdateSeq fills it in once known.
func encodeIdemValue(serverID string, seq int64) string {
	return serverID + ":" + strconv.FormatInt(seq, 10)
}

func decodeIdemValue(v string) (serverID string, seq int64) {
	serverID, seqStr, ok := strings.Cut(v, ":")
	if !ok {
		return v, 0
	}
	seq, _ = strconv.ParseInt(seqStr, 10, 64)
	return serverID, seq
}

// Reserve attempts to claim clientMsgID for serverID. ok is false if
// another goroutine/process already claimed it first, in which case
// existingServerID/existingSeq hold the server id and seq that won.
func (s *IdempotencyStore) Reserve(ctx context.Context, tenantID, senderID, clientMsgID, serverID string, ttl time.Duration) (ok bool, existingServerID string, existingSeq int64, err error) {
	key := idemKey(tenantID, senderID, clientMsgID)
	set, err := s.Rdb.SetNX(ctx, key, encodeIdemValue(serverID, 0), ttl).Result()
	if err != nil {
		return false, "", 0, err
	}
	if set {
		return true, serverID, 0, nil
	}
	val, err := s.Rdb.Get(ctx, key).Result()
	if err != nil {
		return false, "", 0, err
	}
	gotServerID, gotSeq := decodeIdemValue(val)
	return false, gotServerID, gotSeq, nil
}

// UpdateSeq fills in the seq for an already-reserved client_msg_id,
// once SendMessage has actually allocated one, so a later duplicate
// resend can return it (spec.md §4.2 step 2, property P2).
func (s *IdempotencyStore) UpdateSeq(ctx context.Context, tenantID, senderID, clientMsgID, serverID string, seq int64, ttl time.Duration) error {
	key := idemKey(tenantID, senderID, clientMsgID)
	return s.Rdb.Set(ctx, key, encodeIdemValue(serverID, seq), ttl).Err()
}

// dedupKey scopes the writer-side dedup entry on (tenant, server_id),
// distinct from the sender-facing idempotency key above.
func dedupKey(tenantID, serverID string) string {
	return "dedup:" + tenantID + ":" + serverID
}

// MarkProcessed records that server_id has already been applied by
// the writer, returning false if it was already marked (duplicate
// event redelivery).
func (s *IdempotencyStore) MarkProcessed(ctx context.Context, tenantID, serverID string, ttl time.Duration) (firstTime bool, err error) {
	set, err := s.Rdb.SetNX(ctx, dedupKey(tenantID, serverID), "1", ttl).Result()
	if err != nil {
		return false, err
	}
	return set, nil
}
