// Package opbuilder turns operation requests (Recall/Edit/Delete/...)
// into operation Messages that flow through the same SendMessage
// pipeline as regular content — the "operations as messages" pattern
// spec.md §4.2/§4.3 calls for. Ported from original_source's Rust
// application/utils/operation_message_builder.rs, generalized off
// prost/protobuf-generated request types onto plain Go request
// structs (see DESIGN.md's note on the missing gen/ packages).
package opbuilder

import (
	"time"

	"github.com/flare152/flare-im-core/internal/ids"
	"github.com/flare152/flare-im-core/internal/model"
)

// RecallRequest is the Message Orchestrator's Recall input.
type RecallRequest struct {
	MessageID         string
	Reason            string
	RecallTimeLimitSec int64
}

func BuildRecall(req RecallRequest, conversationID, operatorID string, tenantID string) *model.Message {
	now := time.Now()
	op := model.OpRecall
	noticeText := operatorID + " recalled a message"
	return &model.Message{
		TenantID:       tenantID,
		ServerID:       ids.NewOperationID(),
		ConversationID: conversationID,
		SenderID:       operatorID,
		Timestamp:      now.UnixMilli(),
		Kind:           model.MessageKindOperation,
		OperationType:  string(op),
		Attributes: map[string]string{
			"message_type":   "operation",
			"operation_type": string(op),
		},
		State: model.MessageStateSent,
		OperationPayload: mustJSON(map[string]any{
			"target_message_id":   req.MessageID,
			"operator_id":         operatorID,
			"notice_text":         noticeText,
			"show_notice":         true,
			"reason":              req.Reason,
			"time_limit_seconds":  req.RecallTimeLimitSec,
		}),
	}
}

// EditRequest is the Message Orchestrator's Edit input.
type EditRequest struct {
	MessageID      string
	NewContent     []byte
	EditVersion    int64
	Reason         string
	ShowEditedMark bool
}

func BuildEdit(req EditRequest, conversationID, operatorID, tenantID string) *model.Message {
	now := time.Now()
	op := model.OpEdit
	noticeText := ""
	if req.ShowEditedMark {
		noticeText = "message edited"
	}
	return &model.Message{
		TenantID:       tenantID,
		ServerID:       ids.NewOperationID(),
		ConversationID: conversationID,
		SenderID:       operatorID,
		Timestamp:      now.UnixMilli(),
		Kind:           model.MessageKindOperation,
		OperationType:  string(op),
		Attributes: map[string]string{
			"message_type":   "operation",
			"operation_type": string(op),
		},
		State: model.MessageStateSent,
		OperationPayload: mustJSON(map[string]any{
			"target_message_id": req.MessageID,
			"operator_id":       operatorID,
			"notice_text":       noticeText,
			"show_notice":       req.ShowEditedMark,
			"new_content":       req.NewContent,
			"edit_version":      req.EditVersion,
			"reason":            req.Reason,
			"show_edited_mark":  req.ShowEditedMark,
		}),
	}
}

// DeleteRequest is the Message Orchestrator's Delete input, covering
// both the global (hard) delete and the per-user overlay delete —
// distinguished by Global.
type DeleteRequest struct {
	MessageIDs []string
	Global     bool
	TargetUser string // set when Global is false
}

// BuildDelete emits one operation message per target id, since each
// delete is independently applied/acked by the storage writer.
func BuildDelete(req DeleteRequest, conversationID, operatorID, tenantID string) []*model.Message {
	op := model.OpDeleteForUser
	if req.Global {
		op = model.OpDeleteGlobal
	}
	out := make([]*model.Message, 0, len(req.MessageIDs))
	for _, msgID := range req.MessageIDs {
		now := time.Now()
		out = append(out, &model.Message{
			TenantID:       tenantID,
			ServerID:       ids.NewOperationID(),
			ConversationID: conversationID,
			SenderID:       operatorID,
			Timestamp:      now.UnixMilli(),
			Kind:           model.MessageKindOperation,
			OperationType:  string(op),
			Attributes: map[string]string{
				"message_type":   "operation",
				"operation_type": string(op),
			},
			State: model.MessageStateSent,
			OperationPayload: mustJSON(map[string]any{
				"target_message_id": msgID,
				"operator_id":       operatorID,
				"target_user_id":    req.TargetUser,
			}),
		})
	}
	return out
}

// ReadRequest marks a message read for the operator (spec.md §4.4).
type ReadRequest struct {
	MessageID string
}

func BuildRead(req ReadRequest, conversationID, operatorID, tenantID string) *model.Message {
	return buildSimple(model.OpRead, conversationID, operatorID, tenantID, map[string]any{
		"target_message_id": req.MessageID,
		"operator_id":       operatorID,
	})
}

type MarkRequest struct {
	MessageID string
	MarkType  string
	On        bool
}

func BuildMark(req MarkRequest, conversationID, operatorID, tenantID string) *model.Message {
	op := model.OpMark
	if !req.On {
		op = model.OpUnmark
	}
	return buildSimple(op, conversationID, operatorID, tenantID, map[string]any{
		"target_message_id": req.MessageID,
		"operator_id":       operatorID,
		"mark_type":         req.MarkType,
	})
}

type ReactionRequest struct {
	MessageID string
	Emoji     string
	Add       bool
}

func BuildReaction(req ReactionRequest, conversationID, operatorID, tenantID string) *model.Message {
	op := model.OpReactionAdd
	if !req.Add {
		op = model.OpReactionRemove
	}
	return buildSimple(op, conversationID, operatorID, tenantID, map[string]any{
		"target_message_id": req.MessageID,
		"operator_id":       operatorID,
		"emoji":             req.Emoji,
	})
}

type PinRequest struct {
	MessageID string
	On        bool
	ExpireAt  int64
}

func BuildPin(req PinRequest, conversationID, operatorID, tenantID string) *model.Message {
	op := model.OpPin
	if !req.On {
		op = model.OpUnpin
	}
	return buildSimple(op, conversationID, operatorID, tenantID, map[string]any{
		"target_message_id": req.MessageID,
		"operator_id":       operatorID,
		"expire_at":         req.ExpireAt,
	})
}

func buildSimple(op model.OperationType, conversationID, operatorID, tenantID string, payload map[string]any) *model.Message {
	now := time.Now()
	return &model.Message{
		TenantID:       tenantID,
		ServerID:       ids.NewOperationID(),
		ConversationID: conversationID,
		SenderID:       operatorID,
		Timestamp:      now.UnixMilli(),
		Kind:           model.MessageKindOperation,
		OperationType:  string(op),
		Attributes: map[string]string{
			"message_type":   "operation",
			"operation_type": string(op),
		},
		State:            model.MessageStateSent,
		OperationPayload: mustJSON(payload),
	}
}
