package model

import "time"

// ConversationLifecycle mirrors spec.md §3.
type ConversationLifecycle int32

const (
	ConversationActive ConversationLifecycle = iota
	ConversationArchived
	ConversationDeleted
	ConversationDestroyed
)

// ConversationFlags are per-conversation feature toggles.
type ConversationFlags struct {
	HistoryBrowsable  bool  `bson:"history_browsable" json:"history_browsable"`
	ReactionsEnabled  bool  `bson:"reactions_enabled" json:"reactions_enabled"`
	EditAllowed       bool  `bson:"edit_allowed" json:"edit_allowed"`
	DeleteAllowed     bool  `bson:"delete_allowed" json:"delete_allowed"`
	MessageTTLSeconds int64 `bson:"message_ttl_seconds,omitempty" json:"message_ttl_seconds,omitempty"`
	NotificationLevel int32 `bson:"notification_level" json:"notification_level"`
}

// Conversation is the logical channel container of spec.md §3.
type Conversation struct {
	TenantID       string                `bson:"tenant_id" json:"tenant_id"`
	ConversationID string                `bson:"conversation_id" json:"conversation_id"`
	Type           ConversationType      `bson:"type" json:"type"`
	OwnerUserID    string                `bson:"owner_user_id,omitempty" json:"owner_user_id,omitempty"`
	Lifecycle      ConversationLifecycle `bson:"lifecycle" json:"lifecycle"`

	LastMessageID  string `bson:"last_message_id,omitempty" json:"last_message_id,omitempty"`
	LastMessageSeq int64  `bson:"last_message_seq" json:"last_message_seq"`

	Flags ConversationFlags `bson:"flags" json:"flags"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// ParticipantRole mirrors spec.md §3.
type ParticipantRole int32

const (
	RoleOwner ParticipantRole = iota
	RoleAdmin
	RoleMember
	RoleGuest
	RoleObserver
)

// Participant is the per-user row of a conversation (spec.md §3).
// unread_count is materialized here and kept in sync by the writer
// per invariant I6.
type Participant struct {
	TenantID       string          `bson:"tenant_id" json:"tenant_id"`
	ConversationID string          `bson:"conversation_id" json:"conversation_id"`
	UserID         string          `bson:"user_id" json:"user_id"`
	Role           ParticipantRole `bson:"role" json:"role"`

	LastReadSeq int64 `bson:"last_read_seq" json:"last_read_seq"`
	LastSyncSeq int64 `bson:"last_sync_seq" json:"last_sync_seq"`
	UnreadCount int64 `bson:"unread_count" json:"unread_count"`

	IsDeleted bool  `bson:"is_deleted" json:"is_deleted"` // user-side soft delete of the conversation
	MuteUntil int64 `bson:"mute_until,omitempty" json:"mute_until,omitempty"`
	QuitAt    int64 `bson:"quit_at,omitempty" json:"quit_at,omitempty"`
	Pinned    bool  `bson:"pinned" json:"pinned"`

	JoinedAt  time.Time `bson:"joined_at" json:"joined_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// RecomputeUnread applies invariant I6:
// unread_count == max(0, last_message_seq - last_read_seq).
func (p *Participant) RecomputeUnread(lastMessageSeq int64) {
	u := lastMessageSeq - p.LastReadSeq
	if u < 0 {
		u = 0
	}
	p.UnreadCount = u
}
