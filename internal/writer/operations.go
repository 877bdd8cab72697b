package writer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flare152/flare-im-core/internal/errs"
	"github.com/flare152/flare-im-core/internal/logging"
	"github.com/flare152/flare-im-core/internal/model"
)

// opPayload is the decoded shape of model.Message.OperationPayload,
// a superset of every operation kind's fields (see opbuilder for the
// producer side).
type opPayload struct {
	TargetMessageID  string `json:"target_message_id"`
	OperatorID       string `json:"operator_id"`
	NoticeText       string `json:"notice_text"`
	ShowNotice       bool   `json:"show_notice"`
	Reason           string `json:"reason"`
	TimeLimitSeconds int64  `json:"time_limit_seconds"`
	NewContent       []byte `json:"new_content"`
	EditVersion      int64  `json:"edit_version"`
	ShowEditedMark   bool   `json:"show_edited_mark"`
	TargetUserID     string `json:"target_user_id"`
	MarkType         string `json:"mark_type"`
	Emoji            string `json:"emoji"`
	ExpireAt         int64  `json:"expire_at"`
}

// applyOperation dispatches an operation message to its FSM handler.
// Every branch records to the audit log regardless of outcome, since
// the audit trail is meant to show every attempt (pgaudit.Store.Record
// doc comment).
func (w *Writer) applyOperation(ctx context.Context, msg *model.Message) error {
	var p opPayload
	if len(msg.OperationPayload) > 0 {
		if err := json.Unmarshal(msg.OperationPayload, &p); err != nil {
			return errs.WrapMsg(err, "writer: unmarshal operation payload")
		}
	}

	op := model.OperationType(msg.OperationType)
	var applyErr error
	switch op {
	case model.OpRecall:
		applyErr = w.applyRecall(ctx, msg, p)
	case model.OpEdit:
		applyErr = w.applyEdit(ctx, msg, p)
	case model.OpDeleteGlobal:
		applyErr = w.applyDeleteGlobal(ctx, msg, p)
	case model.OpDeleteForUser:
		applyErr = w.applyDeleteForUser(ctx, msg, p)
	case model.OpRead:
		applyErr = w.applyRead(ctx, msg, p)
	case model.OpMark, model.OpUnmark:
		applyErr = w.applyMark(ctx, msg, p, op == model.OpMark)
	case model.OpReactionAdd, model.OpReactionRemove:
		applyErr = w.applyReaction(ctx, msg, p, op == model.OpReactionAdd)
	case model.OpPin, model.OpUnpin:
		applyErr = w.applyPin(ctx, msg, p, op == model.OpPin)
	default:
		applyErr = errs.New("writer: unknown operation type", "op", msg.OperationType)
	}

	if w.Audit != nil {
		if err := w.Audit.Record(ctx, model.OperationHistory{
			TenantID:      msg.TenantID,
			MessageID:     p.TargetMessageID,
			OperationType: op,
			Operator:      p.OperatorID,
			Timestamp:     msg.Timestamp,
			Payload:       msg.OperationPayload,
		}); err != nil {
			logging.Warnf("writer: audit record failed op=%s err=%v", op, err)
		}
	}

	if applyErr != nil {
		return applyErr
	}
	return w.publishPush(ctx, msg)
}

// applyRecall transitions the target message to RECALLED, a terminal
// state (invariant I3), only if it isn't already terminal — an
// out-of-order or replayed recall on an already-deleted message is a
// no-op, not an error.
func (w *Writer) applyRecall(ctx context.Context, msg *model.Message, p opPayload) error {
	_, err := w.Messages.ApplyState(ctx, msg.TenantID, p.TargetMessageID, model.MessageStateRecalled)
	return err
}

func (w *Writer) applyEdit(ctx context.Context, msg *model.Message, p opPayload) error {
	_, err := w.Messages.ApplyEdit(ctx, msg.TenantID, p.TargetMessageID, p.EditVersion, p.NewContent, p.OperatorID, p.Reason)
	return err
}

func (w *Writer) applyDeleteGlobal(ctx context.Context, msg *model.Message, p opPayload) error {
	_, err := w.Messages.ApplyState(ctx, msg.TenantID, p.TargetMessageID, model.MessageStateDeletedHard)
	return err
}

// applyDeleteForUser only touches the per-user overlay (invariant I5:
// never affects another user's view of the message).
func (w *Writer) applyDeleteForUser(ctx context.Context, msg *model.Message, p opPayload) error {
	return w.Overlay.SetVisibility(ctx, msg.TenantID, p.TargetMessageID, p.TargetUserID, model.VisibilityDeleted)
}

func (w *Writer) applyRead(ctx context.Context, msg *model.Message, p opPayload) error {
	if err := w.Overlay.MarkRead(ctx, msg.TenantID, p.TargetMessageID, p.OperatorID); err != nil {
		return err
	}
	target, err := w.Messages.GetByServerID(ctx, msg.TenantID, p.TargetMessageID)
	if err != nil || target == nil {
		return err
	}
	return w.Conversations.UpdateReadCursor(ctx, msg.TenantID, target.ConversationID, p.OperatorID, target.Seq)
}

func (w *Writer) applyMark(ctx context.Context, msg *model.Message, p opPayload, on bool) error {
	return w.Overlay.SetMark(ctx, model.MarkedMessage{
		TenantID:  msg.TenantID,
		MessageID: p.TargetMessageID,
		UserID:    p.OperatorID,
		MarkType:  p.MarkType,
		MarkedAt:  time.Now().UnixMilli(),
	}, on)
}

func (w *Writer) applyReaction(ctx context.Context, msg *model.Message, p opPayload, add bool) error {
	_, err := w.Overlay.ToggleReaction(ctx, msg.TenantID, p.TargetMessageID, p.Emoji, p.OperatorID, add)
	return err
}

func (w *Writer) applyPin(ctx context.Context, msg *model.Message, p opPayload, on bool) error {
	if !on {
		return w.Overlay.Unpin(ctx, msg.TenantID, msg.ConversationID, p.TargetMessageID)
	}
	return w.Overlay.Pin(ctx, model.PinnedMessage{
		TenantID:       msg.TenantID,
		ConversationID: msg.ConversationID,
		MessageID:      p.TargetMessageID,
		PinnerUserID:   p.OperatorID,
		ExpireAt:       p.ExpireAt,
	})
}
