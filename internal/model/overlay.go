package model

import "time"

// Visibility is the User-Message FSM of spec.md §3, orthogonal to the
// message FSM (invariant I5: a HIDDEN/DELETED overlay never affects
// another user's view).
type Visibility int32

const (
	VisibilityVisible Visibility = iota
	VisibilityHidden
	VisibilityDeleted
)

// UserMessageState is the per-user private overlay on a message.
type UserMessageState struct {
	TenantID   string     `bson:"tenant_id" json:"tenant_id"`
	MessageID  string     `bson:"message_id" json:"message_id"`
	UserID     string     `bson:"user_id" json:"user_id"`
	Read       bool       `bson:"read" json:"read"`
	ReadAt     int64      `bson:"read_at,omitempty" json:"read_at,omitempty"`
	Visibility Visibility `bson:"visibility" json:"visibility"`
	BurnExpire int64      `bson:"burn_expire,omitempty" json:"burn_expire,omitempty"`
	UpdatedAt  time.Time  `bson:"updated_at" json:"updated_at"`
}

// Reaction is the message-attribute FSM: a set of user ids per emoji,
// idempotent on add/remove, plus a materialized count.
type Reaction struct {
	TenantID  string          `bson:"tenant_id" json:"tenant_id"`
	MessageID string          `bson:"message_id" json:"message_id"`
	Emoji     string          `bson:"emoji" json:"emoji"`
	Users     map[string]bool `bson:"users" json:"users"`
	Count     int64           `bson:"count" json:"count"`
	UpdatedAt time.Time       `bson:"updated_at" json:"updated_at"`
}

func (r *Reaction) Add(userID string) bool {
	if r.Users == nil {
		r.Users = map[string]bool{}
	}
	if r.Users[userID] {
		return false
	}
	r.Users[userID] = true
	r.Count++
	return true
}

func (r *Reaction) Remove(userID string) bool {
	if !r.Users[userID] {
		return false
	}
	delete(r.Users, userID)
	if r.Count > 0 {
		r.Count--
	}
	return true
}

// PinnedMessage is conversation-FSM scope (spec.md §3).
type PinnedMessage struct {
	TenantID       string    `bson:"tenant_id" json:"tenant_id"`
	ConversationID string    `bson:"conversation_id" json:"conversation_id"`
	MessageID      string    `bson:"message_id" json:"message_id"`
	PinnerUserID   string    `bson:"pinner_user_id" json:"pinner_user_id"`
	PinnedAt       time.Time `bson:"pinned_at" json:"pinned_at"`
	ExpireAt       int64     `bson:"expire_at,omitempty" json:"expire_at,omitempty"`
}

// MarkedMessage lets a user flag a message for themselves (e.g. "starred",
// "todo") independent of read/visibility state.
type MarkedMessage struct {
	TenantID  string `bson:"tenant_id" json:"tenant_id"`
	MessageID string `bson:"message_id" json:"message_id"`
	UserID    string `bson:"user_id" json:"user_id"`
	MarkType  string `bson:"mark_type" json:"mark_type"`
	MarkedAt  int64  `bson:"marked_at" json:"marked_at"`
}

// OperationType enumerates the operation-message kinds of spec.md
// §4.2/§4.3.
type OperationType string

const (
	OpRecall         OperationType = "recall"
	OpEdit           OperationType = "edit"
	OpDeleteGlobal   OperationType = "delete_global"
	OpDeleteForUser  OperationType = "delete_for_user"
	OpRead           OperationType = "read"
	OpMark           OperationType = "mark"
	OpUnmark         OperationType = "unmark"
	OpReactionAdd    OperationType = "reaction_add"
	OpReactionRemove OperationType = "reaction_remove"
	OpPin            OperationType = "pin"
	OpUnpin          OperationType = "unpin"
)

// OperationHistory is the audit log of spec.md §3, sunk into the
// relational store (internal/store/pgaudit) rather than the hot Mongo
// path; see SPEC_FULL.md's domain-stack table.
type OperationHistory struct {
	TenantID      string        `bson:"tenant_id" json:"tenant_id"`
	MessageID     string        `bson:"message_id" json:"message_id"`
	OperationType OperationType `bson:"operation_type" json:"operation_type"`
	Operator      string        `bson:"operator" json:"operator"`
	Timestamp     int64         `bson:"timestamp" json:"timestamp"`
	Payload       []byte        `bson:"payload,omitempty" json:"payload,omitempty"`
}
