// Package model holds the durable domain types of the pipeline:
// conversations, participants, messages and their FSM, edit history,
// per-user overlays, reactions, pins, operation history, sessions and
// sync cursors. Field shapes are grounded on the teacher's
// module/chat/model (bson-tagged Mongo documents); the FSM enums and
// invariants are spec.md §3's.
package model

import "time"

// MessageState is the message FSM of spec.md §3. INIT is
// server-internal and never returned to clients.
type MessageState int32

const (
	MessageStateInit MessageState = iota
	MessageStateSent
	MessageStateEdited
	MessageStateRecalled
	MessageStateDeletedHard
)

func (s MessageState) Terminal() bool {
	return s == MessageStateRecalled || s == MessageStateDeletedHard
}

func (s MessageState) String() string {
	switch s {
	case MessageStateInit:
		return "INIT"
	case MessageStateSent:
		return "SENT"
	case MessageStateEdited:
		return "EDITED"
	case MessageStateRecalled:
		return "RECALLED"
	case MessageStateDeletedHard:
		return "DELETED_HARD"
	default:
		return "UNKNOWN"
	}
}

// ConversationType mirrors spec.md §3.
type ConversationType int32

const (
	ConversationSingle ConversationType = iota
	ConversationGroup
	ConversationChannel
)

// MessageSource distinguishes who originated a message.
type MessageSource int32

const (
	SourceUser MessageSource = iota
	SourceSystem
	SourceBot
	SourceAdmin
)

// MessageKind distinguishes a normal content message from an
// operation message (recall/edit/delete/read/mark/reaction/pin),
// which travels through the same SendMessage pipeline per spec.md
// §4.2/§9 ("operations as messages").
type MessageKind int32

const (
	MessageKindContent MessageKind = iota
	MessageKindOperation
)

// QuoteRef is the optional "replying to" reference on a message.
type QuoteRef struct {
	MessageID string `bson:"message_id,omitempty" json:"message_id,omitempty"`
	Seq       int64  `bson:"seq,omitempty" json:"seq,omitempty"`
}

// Message is the immutable core row of spec.md §3; FSM state, edit
// version and content live alongside it but only the writer (§4.3)
// ever mutates them.
type Message struct {
	TenantID       string `bson:"tenant_id" json:"tenant_id"`
	ServerID       string `bson:"server_id" json:"server_id"`
	ConversationID string `bson:"conversation_id" json:"conversation_id"`
	SenderID       string `bson:"sender_id" json:"sender_id"`
	ClientMsgID    string `bson:"client_msg_id,omitempty" json:"client_msg_id,omitempty"`

	Seq       int64 `bson:"seq" json:"seq"`
	Timestamp int64 `bson:"timestamp" json:"timestamp"` // unix ms

	ContentType string `bson:"content_type" json:"content_type"`
	Content     []byte `bson:"content" json:"content"`

	Kind   MessageKind   `bson:"kind" json:"kind"`
	Source MessageSource `bson:"source" json:"source"`
	State  MessageState  `bson:"state" json:"state"`

	Quote *QuoteRef `bson:"quote,omitempty" json:"quote,omitempty"`

	BurnAfterRead    bool  `bson:"burn_after_read,omitempty" json:"burn_after_read,omitempty"`
	BurnExpireAt     int64 `bson:"burn_expire_at,omitempty" json:"burn_expire_at,omitempty"`
	CurrentEditVer   int64 `bson:"current_edit_version" json:"current_edit_version"`

	Tags       map[string]string `bson:"tags,omitempty" json:"tags,omitempty"`
	Attributes map[string]string `bson:"attributes,omitempty" json:"attributes,omitempty"`

	// OperationPayload carries the encoded operation record when
	// Kind == MessageKindOperation; see internal/orchestrator/opbuilder.
	OperationPayload []byte `bson:"operation_payload,omitempty" json:"operation_payload,omitempty"`
	OperationType    string `bson:"operation_type,omitempty" json:"operation_type,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsVisibleContent reports whether Content should be returned to
// clients per invariant I3 (recalled/hard-deleted messages never
// return content).
func (m *Message) IsVisibleContent() bool {
	return !m.State.Terminal()
}

// EditHistoryEntry is one row per successful edit (invariant I4).
type EditHistoryEntry struct {
	TenantID   string    `bson:"tenant_id" json:"tenant_id"`
	MessageID  string    `bson:"message_id" json:"message_id"`
	EditVer    int64     `bson:"edit_version" json:"edit_version"`
	Content    []byte    `bson:"content" json:"content"`
	Editor     string    `bson:"editor" json:"editor"`
	Reason     string    `bson:"reason,omitempty" json:"reason,omitempty"`
	EditedAt   time.Time `bson:"edited_at" json:"edited_at"`
}
