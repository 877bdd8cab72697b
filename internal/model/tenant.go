package model

import "time"

// TenantConfig holds the tenant-scoped configuration values spec.md
// §6 lists: heartbeat interval, session TTL, idempotency TTL, recall
// window, hook reload interval, device-conflict policy.
type TenantConfig struct {
	TenantID string `bson:"tenant_id" json:"tenant_id"`

	HeartbeatInterval time.Duration `bson:"heartbeat_interval" json:"heartbeat_interval"`
	SessionTTL        time.Duration `bson:"session_ttl" json:"session_ttl"`
	IdempotencyTTL    time.Duration `bson:"idempotency_ttl" json:"idempotency_ttl"`

	// RecallWindow is the duration after send during which Recall is
	// allowed; zero means disabled (spec.md §9 default).
	RecallWindow time.Duration `bson:"recall_window" json:"recall_window"`

	HookReloadInterval time.Duration        `bson:"hook_reload_interval" json:"hook_reload_interval"`
	DeviceConflict     DeviceConflictPolicy `bson:"device_conflict" json:"device_conflict"`
}

// DefaultTenantConfig returns the process-wide defaults of spec.md §6.
func DefaultTenantConfig(tenantID string) TenantConfig {
	return TenantConfig{
		TenantID:           tenantID,
		HeartbeatInterval:  30 * time.Second,
		SessionTTL:         90 * time.Second,
		IdempotencyTTL:     24 * time.Hour,
		RecallWindow:       0,
		HookReloadInterval: 30 * time.Second,
		DeviceConflict:     DeviceConflictCoexist,
	}
}
