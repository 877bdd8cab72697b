// Package push implements the three-stage Push Pipeline of spec.md
// §4.5: Proxy (ingress validation + per-recipient fanout), Scheduler
// (online/offline device split via the session registry), Worker
// (dispatch execution + ACK). Grounded on the teacher's
// service/kafka consumer-group handler shape (already adapted in
// internal/queue/kafkaqueue) and service/storage's online-session
// lookup pattern, generalized onto this repo's rediscache.SessionCache.
package push

import (
	"context"
	"encoding/json"

	"github.com/flare152/flare-im-core/internal/errs"
	"github.com/flare152/flare-im-core/internal/logging"
	"github.com/flare152/flare-im-core/internal/model"
	"github.com/flare152/flare-im-core/internal/queue"
	"github.com/flare152/flare-im-core/internal/store/mongostore"
)

// Proxy is the pipeline's ingress: it accepts push-worthy events from
// the Storage Writer (and, via the core gateway, ad-hoc pushes from a
// tenant back-office) and fans each out into one PushTask per
// recipient, keyed so the scheduler processes one user's tasks in
// order.
type Proxy struct {
	Conversations *mongostore.ConversationStore
	Producer      queue.Producer
}

// HandleWriterEvent is the queue.Handler bound to queue.TopicPush.
func (p *Proxy) HandleWriterEvent(ctx context.Context, ev queue.Event) error {
	var msg model.Message
	if err := json.Unmarshal(ev.Value, &msg); err != nil {
		return errs.WrapMsg(err, "push: unmarshal event")
	}

	participants, err := p.Conversations.ListParticipants(ctx, msg.TenantID, msg.ConversationID)
	if err != nil {
		return errs.WrapMsg(err, "push: list participants")
	}

	frame, err := json.Marshal(msg)
	if err != nil {
		return errs.WrapMsg(err, "push: marshal frame")
	}

	for _, participant := range participants {
		if participant.UserID == msg.SenderID {
			continue
		}
		task := model.PushTask{
			TenantID:        msg.TenantID,
			ConversationID:  msg.ConversationID,
			MessageServerID: msg.ServerID,
			RecipientUserID: participant.UserID,
			Frame:           frame,
		}
		if err := p.Submit(ctx, task); err != nil {
			logging.Warnf("push: submit failed recipient=%s err=%v", participant.UserID, err)
		}
	}
	return nil
}

// Submit validates and enqueues a single PushTask; also used directly
// by the core gateway for back-office-initiated pushes.
func (p *Proxy) Submit(ctx context.Context, task model.PushTask) error {
	if task.TenantID == "" || task.RecipientUserID == "" {
		return errs.New("push: invalid task", "tenant", task.TenantID, "recipient", task.RecipientUserID)
	}
	data, err := json.Marshal(task)
	if err != nil {
		return errs.WrapMsg(err, "push: marshal task")
	}
	return p.Producer.Publish(ctx, queue.Event{
		Topic: queue.TopicPushDispatch,
		Key:   task.TenantID + ":" + task.RecipientUserID,
		Value: data,
	})
}
