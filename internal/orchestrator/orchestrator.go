// Package orchestrator implements the Message Orchestrator of spec.md
// §3/§4.2: the single place a send/edit/recall/delete/read/mark/
// reaction/pin request is admitted, deduplicated, hook-checked,
// seq-assigned, and handed to the Event Queue for the Storage Writer
// to apply. Grounded on the teacher's module/chat/message package
// (InsertMessageCommitted's write-then-bump-seq shape) generalized
// from a direct-write service into a queue-fronted one, since spec.md
// requires the persistence step to happen asynchronously off the
// Event Queue rather than inline in the request path.
package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flare152/flare-im-core/internal/errs"
	"github.com/flare152/flare-im-core/internal/hooks"
	"github.com/flare152/flare-im-core/internal/ids"
	"github.com/flare152/flare-im-core/internal/logging"
	"github.com/flare152/flare-im-core/internal/model"
	"github.com/flare152/flare-im-core/internal/orchestrator/opbuilder"
	"github.com/flare152/flare-im-core/internal/queue"
)

// SeqAllocator is the subset of rediscache.SeqAllocator the
// orchestrator depends on.
type SeqAllocator interface {
	Malloc(ctx context.Context, tenantID, conversationID string, need int64) (start int64, mill int64, err error)
}

// IdempotencyGate is the subset of rediscache.IdempotencyStore the
// orchestrator depends on. The fingerprint is (tenant, sender,
// client_msg_id) per spec.md §4.2 step 1 and invariant I2 — two
// different senders reusing the same client_msg_id in the same
// conversation must not collide.
type IdempotencyGate interface {
	Reserve(ctx context.Context, tenantID, senderID, clientMsgID, serverID string, ttl time.Duration) (ok bool, existingServerID string, existingSeq int64, err error)
	UpdateSeq(ctx context.Context, tenantID, senderID, clientMsgID, serverID string, seq int64, ttl time.Duration) error
}

// TenantConfigSource resolves tenant-scoped settings (idempotency TTL,
// recall window) without the orchestrator depending on a config
// store directly.
type TenantConfigSource interface {
	Get(tenantID string) model.TenantConfig
}

type Orchestrator struct {
	Seq      SeqAllocator
	Idem     IdempotencyGate
	Tenants  TenantConfigSource
	Hooks    *hooks.Engine
	Producer queue.Producer
	IDGen    func() string
}

// SendMessage is the pipeline's sole entry point for new content.
// Ordering matters: idempotency gate first (so a hook never sees a
// duplicate), then pre_send hooks (so a denial never consumes a seq
// number), then seq assignment, then publish (spec.md invariant I7:
// a seq, once assigned, is never reused or skipped).
func (o *Orchestrator) SendMessage(ctx context.Context, msg *model.Message) (*model.Message, error) {
	cfg := o.Tenants.Get(msg.TenantID)

	if msg.ClientMsgID != "" {
		serverID := o.newID()
		ok, existingServerID, existingSeq, err := o.Idem.Reserve(ctx, msg.TenantID, msg.SenderID, msg.ClientMsgID, serverID, cfg.IdempotencyTTL)
		if err != nil {
			return nil, errs.WrapMsg(err, "orchestrator: idempotency reserve")
		}
		if !ok {
			msg.ServerID = existingServerID
			msg.Seq = existingSeq
			return msg, nil
		}
		msg.ServerID = serverID
	} else if msg.ServerID == "" {
		msg.ServerID = o.newID()
	}

	hctx := &hooks.Context{
		TenantID:         msg.TenantID,
		ConversationID:   msg.ConversationID,
		SenderID:         msg.SenderID,
		Message:          msg,
		Tags:             msg.Tags,
	}
	res, err := o.Hooks.Run(ctx, model.HookPreSend, hctx)
	if err != nil {
		return nil, err
	}
	if !res.Allow {
		return nil, errs.ErrPermissionDenied.WithDetail(res.Reason).Wrap()
	}
	if len(hctx.RewrittenContent) > 0 {
		msg.Content = hctx.RewrittenContent
	}

	start, mill, err := o.Seq.Malloc(ctx, msg.TenantID, msg.ConversationID, 1)
	if err != nil {
		return nil, errs.WrapMsg(err, "orchestrator: seq alloc")
	}
	msg.Seq = start
	msg.Timestamp = mill
	msg.State = model.MessageStateSent

	if msg.ClientMsgID != "" {
		if err := o.Idem.UpdateSeq(ctx, msg.TenantID, msg.SenderID, msg.ClientMsgID, msg.ServerID, msg.Seq, cfg.IdempotencyTTL); err != nil {
			logging.Warnf("orchestrator: idempotency seq update failed tenant=%s sender=%s err=%v", msg.TenantID, msg.SenderID, err)
		}
	}

	if err := o.publish(ctx, msg); err != nil {
		return nil, err
	}

	if _, err := o.Hooks.Run(ctx, model.HookPostSend, hctx); err != nil {
		logging.Warnf("orchestrator: post_send hook error conversation=%s err=%v", msg.ConversationID, err)
	}

	return msg, nil
}

func (o *Orchestrator) newID() string {
	if o.IDGen != nil {
		return o.IDGen()
	}
	return ids.GenerateString()
}

func (o *Orchestrator) publish(ctx context.Context, msg *model.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errs.WrapMsg(err, "orchestrator: marshal message")
	}
	return o.Producer.Publish(ctx, queue.Event{
		Topic: queue.TopicPersistence,
		Key:   msg.TenantID + ":" + msg.ConversationID,
		Value: data,
	})
}

// Recall, Edit, Delete, Read, Mark, Reaction and Pin all build an
// operation message via opbuilder and route it back through
// SendMessage, the "operations as messages" pattern of spec.md §4.2.
// Recall additionally enforces the recall window as the intersection
// of the tenant's configured ceiling and any per-call limit the
// caller supplied (SPEC_FULL.md's idempotency/recall-window
// supplement).
func (o *Orchestrator) Recall(ctx context.Context, tenantID, conversationID, operatorID string, req opbuilder.RecallRequest, sentAt time.Time) (*model.Message, error) {
	cfg := o.Tenants.Get(tenantID)
	if cfg.RecallWindow <= 0 && req.RecallTimeLimitSec <= 0 {
		return nil, errs.ErrFailedPrecondition.WithDetail("recall disabled for tenant").Wrap()
	}
	// The effective ceiling is the intersection of the tenant window and
	// any per-call limit: a caller can only tighten the window, never
	// loosen it, so a disabled tenant window (<=0) never widens out to
	// "no limit" just because a per-call limit was supplied.
	limit := cfg.RecallWindow
	if req.RecallTimeLimitSec > 0 {
		callLimit := time.Duration(req.RecallTimeLimitSec) * time.Second
		if limit <= 0 || callLimit < limit {
			limit = callLimit
		}
	}
	if time.Since(sentAt) > limit {
		return nil, errs.ErrFailedPrecondition.WithDetail("recall window elapsed").Wrap()
	}

	hctx := &hooks.Context{TenantID: tenantID, ConversationID: conversationID, SenderID: operatorID}
	res, err := o.Hooks.Run(ctx, model.HookPreRecall, hctx)
	if err != nil {
		return nil, err
	}
	if !res.Allow {
		return nil, errs.ErrPermissionDenied.WithDetail(res.Reason).Wrap()
	}

	opMsg := opbuilder.BuildRecall(req, conversationID, operatorID, tenantID)
	return o.SendMessage(ctx, opMsg)
}

func (o *Orchestrator) Edit(ctx context.Context, tenantID, conversationID, operatorID string, req opbuilder.EditRequest) (*model.Message, error) {
	hctx := &hooks.Context{TenantID: tenantID, ConversationID: conversationID, SenderID: operatorID}
	res, err := o.Hooks.Run(ctx, model.HookPreEdit, hctx)
	if err != nil {
		return nil, err
	}
	if !res.Allow {
		return nil, errs.ErrPermissionDenied.WithDetail(res.Reason).Wrap()
	}
	opMsg := opbuilder.BuildEdit(req, conversationID, operatorID, tenantID)
	return o.SendMessage(ctx, opMsg)
}

func (o *Orchestrator) Delete(ctx context.Context, tenantID, conversationID, operatorID string, req opbuilder.DeleteRequest) ([]*model.Message, error) {
	opMsgs := opbuilder.BuildDelete(req, conversationID, operatorID, tenantID)
	out := make([]*model.Message, 0, len(opMsgs))
	for _, m := range opMsgs {
		sent, err := o.SendMessage(ctx, m)
		if err != nil {
			return out, err
		}
		out = append(out, sent)
	}
	return out, nil
}

func (o *Orchestrator) Read(ctx context.Context, tenantID, conversationID, operatorID string, req opbuilder.ReadRequest) (*model.Message, error) {
	return o.SendMessage(ctx, opbuilder.BuildRead(req, conversationID, operatorID, tenantID))
}

func (o *Orchestrator) Mark(ctx context.Context, tenantID, conversationID, operatorID string, req opbuilder.MarkRequest) (*model.Message, error) {
	return o.SendMessage(ctx, opbuilder.BuildMark(req, conversationID, operatorID, tenantID))
}

func (o *Orchestrator) Reaction(ctx context.Context, tenantID, conversationID, operatorID string, req opbuilder.ReactionRequest) (*model.Message, error) {
	return o.SendMessage(ctx, opbuilder.BuildReaction(req, conversationID, operatorID, tenantID))
}

func (o *Orchestrator) Pin(ctx context.Context, tenantID, conversationID, operatorID string, req opbuilder.PinRequest) (*model.Message, error) {
	return o.SendMessage(ctx, opbuilder.BuildPin(req, conversationID, operatorID, tenantID))
}
