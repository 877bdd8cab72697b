// Package writer implements the Storage Writer of spec.md §3/§4.3:
// the sole consumer of the persistence topic, responsible for
// deduplicating replayed events, applying the message/operation to
// the metadata store, fanning unread counters out to participants,
// and publishing push tasks. Grounded on the teacher's
// module/chat/message.InsertMessageCommitted (write-then-bump-seq)
// and service/kafka's consumer-group handler shape, adapted from a
// direct RPC handler into an Event Queue consumer per spec.md's
// asynchronous persistence requirement.
package writer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flare152/flare-im-core/internal/errs"
	"github.com/flare152/flare-im-core/internal/logging"
	"github.com/flare152/flare-im-core/internal/model"
	"github.com/flare152/flare-im-core/internal/queue"
	"github.com/flare152/flare-im-core/internal/store/mongostore"
	"github.com/flare152/flare-im-core/internal/store/pgaudit"
)

// IdempotencyGate is the writer-side dedup check on (tenant,
// server_id), distinct from the orchestrator's sender-facing
// client_msg_id gate (SPEC_FULL.md's idempotency-alignment note: both
// TTLs must come from the same tenant config value).
type IdempotencyGate interface {
	MarkProcessed(ctx context.Context, tenantID, serverID string, ttl time.Duration) (firstTime bool, err error)
}

type TenantConfigSource interface {
	Get(tenantID string) model.TenantConfig
}

type Writer struct {
	Messages      *mongostore.MessageStore
	Conversations *mongostore.ConversationStore
	Overlay       *mongostore.OverlayStore
	Audit         *pgaudit.Store
	Idem          IdempotencyGate
	Tenants       TenantConfigSource
	Producer      queue.Producer
}

// HandlePersistenceEvent is the queue.Handler bound to
// queue.TopicPersistence. A returned error leaves the event's offset
// uncommitted, so the consumer group redelivers it. Nothing publishes
// a failing event to TopicDeadLetter and there is no redelivery limit.
func (w *Writer) HandlePersistenceEvent(ctx context.Context, ev queue.Event) error {
	var msg model.Message
	if err := json.Unmarshal(ev.Value, &msg); err != nil {
		return errs.WrapMsg(err, "writer: unmarshal event")
	}

	cfg := w.Tenants.Get(msg.TenantID)
	firstTime, err := w.Idem.MarkProcessed(ctx, msg.TenantID, msg.ServerID, cfg.IdempotencyTTL)
	if err != nil {
		return errs.WrapMsg(err, "writer: dedup check")
	}
	if !firstTime {
		logging.Infof("writer: duplicate event skipped tenant=%s server_id=%s", msg.TenantID, msg.ServerID)
		return nil
	}

	if msg.Kind == model.MessageKindOperation {
		return w.applyOperation(ctx, &msg)
	}
	return w.applyContent(ctx, &msg)
}

func (w *Writer) applyContent(ctx context.Context, msg *model.Message) error {
	if err := w.Messages.Insert(ctx, msg); err != nil {
		return errs.WrapMsg(err, "writer: insert message")
	}
	if err := w.Conversations.AdvanceLastMessage(ctx, msg.TenantID, msg.ConversationID, msg.ServerID, msg.Seq); err != nil {
		logging.Warnf("writer: advance last message failed conversation=%s err=%v", msg.ConversationID, err)
	}
	if err := w.fanoutUnread(ctx, msg); err != nil {
		logging.Warnf("writer: fanout unread failed conversation=%s err=%v", msg.ConversationID, err)
	}
	return w.publishPush(ctx, msg)
}

// fanoutUnread recomputes UnreadCount for every participant (invariant
// I6), so a client's badge count is correct on its next
// ListConversations call without a live recompute. The sender is a
// special case: rather than accumulating unread against their own
// message, their last_read_seq advances to the new seq (spec.md §4.3
// step 4), since a sender has implicitly read what they just sent.
func (w *Writer) fanoutUnread(ctx context.Context, msg *model.Message) error {
	participants, err := w.Conversations.ListParticipants(ctx, msg.TenantID, msg.ConversationID)
	if err != nil {
		return err
	}
	for _, p := range participants {
		if p.UserID == msg.SenderID {
			p.LastReadSeq = msg.Seq
			p.RecomputeUnread(msg.Seq)
			if err := w.Conversations.UpsertParticipant(ctx, &p); err != nil {
				logging.Warnf("writer: sender last_read_seq update failed user=%s err=%v", p.UserID, err)
			}
			continue
		}
		p.RecomputeUnread(msg.Seq)
		if err := w.Conversations.UpsertParticipant(ctx, &p); err != nil {
			logging.Warnf("writer: unread update failed user=%s err=%v", p.UserID, err)
		}
	}
	return nil
}

func (w *Writer) publishPush(ctx context.Context, msg *model.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return w.Producer.Publish(ctx, queue.Event{
		Topic: queue.TopicPush,
		Key:   msg.TenantID + ":" + msg.ConversationID,
		Value: data,
	})
}
