package model

import "time"

// Session is the current gateway binding of spec.md §3/Glossary: the
// record that "user/device is attached to this gateway instance in
// this region".
type Session struct {
	TenantID     string    `bson:"tenant_id" json:"tenant_id"`
	UserID       string    `bson:"user_id" json:"user_id"`
	DeviceID     string    `bson:"device_id" json:"device_id"`
	Platform     string    `bson:"platform" json:"platform"` // ios/android/web/desktop
	GatewayID    string    `bson:"gateway_id" json:"gateway_id"`
	Region       string    `bson:"region" json:"region"`
	ConnectedAt  time.Time `bson:"connected_at" json:"connected_at"`
	LastHeartbeat time.Time `bson:"last_heartbeat" json:"last_heartbeat"`
}

// DeviceConflictPolicy controls what happens to prior sessions on
// Connect, per spec.md §4.1.
type DeviceConflictPolicy int32

const (
	DeviceConflictCoexist DeviceConflictPolicy = iota
	DeviceConflictExclusive
	DeviceConflictPlatformExclusive
)

// SyncCursor records the highest seq a device has seen in a
// conversation, used to compute missed-message lists at reconnect.
type SyncCursor struct {
	TenantID       string `bson:"tenant_id" json:"tenant_id"`
	UserID         string `bson:"user_id" json:"user_id"`
	DeviceID       string `bson:"device_id,omitempty" json:"device_id,omitempty"`
	ConversationID string `bson:"conversation_id" json:"conversation_id"`
	LastSyncedSeq  int64  `bson:"last_synced_seq" json:"last_synced_seq"`
	UpdatedAt      int64  `bson:"updated_at" json:"updated_at"`
}
