// Package reader implements the Storage Reader of spec.md §4.4: the
// read-side service for history/per-message retrieval plus the
// mutations that don't need to be linearised with writes
// (MarkRead, DeleteForUser), and thin RecallMessage/EditMessage
// wrappers that build the operation request and hand it to the
// Message Orchestrator so the writer stays the sole mutator of the
// message FSM. Grounded on the teacher's module/chat/message query
// handlers (read-path shape) fanned out across the mongostore
// collections this repo split the teacher's single message document
// into, and on rediscache.HotMessageCache for the recent-message
// cache-first-then-store-then-populate policy spec.md §4.4 calls for.
package reader

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flare152/flare-im-core/internal/errs"
	"github.com/flare152/flare-im-core/internal/model"
	"github.com/flare152/flare-im-core/internal/orchestrator/opbuilder"
	"github.com/flare152/flare-im-core/internal/store/mongostore"
	"github.com/flare152/flare-im-core/internal/store/rediscache"
)

// Orchestrator is the subset of orchestrator.Orchestrator the reader's
// thin Recall/Edit wrappers delegate to.
type Orchestrator interface {
	Recall(ctx context.Context, tenantID, conversationID, operatorID string, req opbuilder.RecallRequest, sentAt time.Time) (*model.Message, error)
	Edit(ctx context.Context, tenantID, conversationID, operatorID string, req opbuilder.EditRequest) (*model.Message, error)
}

type Reader struct {
	Messages      *mongostore.MessageStore
	Conversations *mongostore.ConversationStore
	Overlay       *mongostore.OverlayStore
	HotCache      *rediscache.HotMessageCache
	Orchestrator  Orchestrator

	HotCacheTTL time.Duration
}

func (r *Reader) hotTTL() time.Duration {
	if r.HotCacheTTL <= 0 {
		return time.Hour
	}
	return r.HotCacheTTL
}

// ViewMessage is a Message annotated with the requesting user's
// overlay, the shape returned to clients.
type ViewMessage struct {
	model.Message
	Visibility model.Visibility `json:"visibility"`
	Read       bool             `json:"read"`
	Reactions  []model.Reaction `json:"reactions,omitempty"`
}

// QueryMessages returns messages after afterSeq, filtered to what
// this user should see: hidden/deleted-for-user overlays are dropped
// (invariant I5), and recalled/hard-deleted content is blanked
// (invariant I3) while the operation record itself still passes
// through so clients render the "message recalled" placeholder.
func (r *Reader) QueryMessages(ctx context.Context, tenantID, conversationID, userID string, afterSeq, limit int64) ([]ViewMessage, error) {
	msgs, err := r.Messages.QueryRange(ctx, tenantID, conversationID, afterSeq, limit)
	if err != nil {
		return nil, errs.WrapMsg(err, "reader: query range")
	}
	out := make([]ViewMessage, 0, len(msgs))
	for _, m := range msgs {
		state, err := r.Overlay.GetUserMessageState(ctx, tenantID, m.ServerID, userID)
		if err != nil {
			return nil, errs.WrapMsg(err, "reader: overlay state")
		}
		if state != nil && (state.Visibility == model.VisibilityDeleted || state.Visibility == model.VisibilityHidden) {
			continue
		}
		if !m.IsVisibleContent() {
			m.Content = nil
		}
		vm := ViewMessage{Message: m}
		if state != nil {
			vm.Visibility = state.Visibility
			vm.Read = state.Read
		}
		out = append(out, vm)
	}
	return out, nil
}

// GetMessage probes the hot-message cache first, falling back to the
// store and populating the cache on miss (spec.md §4.4's cache
// policy). The cache is keyed on the tombstone-safe raw message, not
// the per-user overlay, so it stays shareable across users.
func (r *Reader) GetMessage(ctx context.Context, tenantID, serverID, userID string) (*ViewMessage, error) {
	m, err := r.loadMessage(ctx, tenantID, serverID)
	if err != nil {
		return nil, errs.WrapMsg(err, "reader: get message")
	}
	if m == nil {
		return nil, nil
	}
	state, err := r.Overlay.GetUserMessageState(ctx, tenantID, serverID, userID)
	if err != nil {
		return nil, errs.WrapMsg(err, "reader: overlay state")
	}
	if state != nil && state.Visibility == model.VisibilityDeleted {
		return nil, nil
	}
	if !m.IsVisibleContent() {
		m.Content = nil
	}
	reactions, err := r.Overlay.ListReactions(ctx, tenantID, serverID)
	if err != nil {
		return nil, errs.WrapMsg(err, "reader: reactions")
	}
	vm := &ViewMessage{Message: *m, Reactions: reactions}
	if state != nil {
		vm.Visibility = state.Visibility
		vm.Read = state.Read
	}
	return vm, nil
}

func (r *Reader) loadMessage(ctx context.Context, tenantID, serverID string) (*model.Message, error) {
	if r.HotCache != nil {
		if data, ok, err := r.HotCache.Get(ctx, tenantID, serverID); err == nil && ok {
			var m model.Message
			if err := json.Unmarshal(data, &m); err == nil {
				return &m, nil
			}
		}
	}
	m, err := r.Messages.GetByServerID(ctx, tenantID, serverID)
	if err != nil || m == nil {
		return m, err
	}
	if r.HotCache != nil {
		if data, err := json.Marshal(m); err == nil {
			_ = r.HotCache.Set(ctx, tenantID, serverID, data, r.hotTTL())
		}
	}
	return m, nil
}

// MarkRead advances last_read_seq monotonically and recomputes
// unread_count, without going through the orchestrator/writer path:
// read state doesn't need to be linearised with concurrent sends,
// only monotone (spec.md §4.4).
func (r *Reader) MarkRead(ctx context.Context, tenantID, conversationID, userID string, upToSeq int64) error {
	if err := r.Conversations.UpdateReadCursor(ctx, tenantID, conversationID, userID, upToSeq); err != nil {
		return errs.WrapMsg(err, "reader: update read cursor")
	}
	return nil
}

// DeleteForUser upserts the caller's visibility overlay; it never
// touches the global message (invariant I5).
func (r *Reader) DeleteForUser(ctx context.Context, tenantID, messageID, userID string) error {
	if err := r.Overlay.SetVisibility(ctx, tenantID, messageID, userID, model.VisibilityDeleted); err != nil {
		return errs.WrapMsg(err, "reader: set visibility")
	}
	return nil
}

// RecallMessage and EditMessage are the thin wrappers spec.md §4.4
// requires: they build the operation request and delegate the actual
// state transition to the Message Orchestrator, since the reader
// itself never mutates the message FSM.
func (r *Reader) RecallMessage(ctx context.Context, tenantID, conversationID, operatorID, messageID, reason string, sentAt time.Time) (*model.Message, error) {
	return r.Orchestrator.Recall(ctx, tenantID, conversationID, operatorID, opbuilder.RecallRequest{MessageID: messageID, Reason: reason}, sentAt)
}

func (r *Reader) EditMessage(ctx context.Context, tenantID, conversationID, operatorID, messageID string, newContent []byte, editVersion int64) (*model.Message, error) {
	return r.Orchestrator.Edit(ctx, tenantID, conversationID, operatorID, opbuilder.EditRequest{
		MessageID:      messageID,
		NewContent:     newContent,
		EditVersion:    editVersion,
		ShowEditedMark: true,
	})
}
