// Package conversation implements Conversation & Sync State of
// spec.md §4.7: the per-user view every device needs (conversation
// list with unread counts, missed-message sync, mute/pin/delete
// overlays). These operations bypass the orchestrator — they mutate
// only per-user rows, not the linearised message stream — and go
// straight to the metadata store and cache, per spec.md's
// consistency note. Grounded on the teacher's module/chat/conversation
// query handlers, fanned out across this repo's mongostore split.
package conversation

import (
	"context"
	"sort"
	"time"

	"github.com/flare152/flare-im-core/internal/errs"
	"github.com/flare152/flare-im-core/internal/model"
	"github.com/flare152/flare-im-core/internal/store/mongostore"
	"github.com/flare152/flare-im-core/internal/store/rediscache"
)

func nowUnixMS() int64 { return time.Now().UnixMilli() }

type Service struct {
	Conversations *mongostore.ConversationStore
	Messages      *mongostore.MessageStore
	Overlay       *mongostore.OverlayStore
	SyncCursors   *rediscache.SyncCursorCache
}

// ConversationView is a Conversation joined with its participant row
// for the requesting user, the shape ListConversations returns.
type ConversationView struct {
	model.Conversation
	UnreadCount int64 `json:"unread_count"`
	LastReadSeq int64 `json:"last_read_seq"`
	Muted       bool  `json:"muted"`
	Pinned      bool  `json:"pinned"`
}

// ListConversations returns the user's non-deleted conversations
// ordered by last_message_seq descending (spec.md §4.7).
func (s *Service) ListConversations(ctx context.Context, tenantID, userID string, limit int64) ([]ConversationView, error) {
	participants, err := s.Conversations.ListForUser(ctx, tenantID, userID, limit)
	if err != nil {
		return nil, errs.WrapMsg(err, "conversation: list for user")
	}
	out := make([]ConversationView, 0, len(participants))
	for _, p := range participants {
		conv, err := s.Conversations.Get(ctx, tenantID, p.ConversationID)
		if err != nil {
			return nil, errs.WrapMsg(err, "conversation: get conversation")
		}
		if conv == nil {
			continue
		}
		out = append(out, ConversationView{
			Conversation: *conv,
			UnreadCount:  p.UnreadCount,
			LastReadSeq:  p.LastReadSeq,
			Muted:        p.MuteUntil > nowUnixMS(),
			Pinned:       p.Pinned,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessageSeq > out[j].LastMessageSeq
	})
	return out, nil
}

// SyncMissed returns everything after since_seq the caller hasn't
// seen, subject to the same visibility/terminal-state rules as
// reader.QueryMessages, then advances the device's cached
// last_synced_seq once the caller acknowledges (via Ack).
func (s *Service) SyncMissed(ctx context.Context, tenantID, userID, deviceID, conversationID string, sinceSeq int64) ([]model.Message, error) {
	msgs, err := s.Messages.QueryRange(ctx, tenantID, conversationID, sinceSeq, 500)
	if err != nil {
		return nil, errs.WrapMsg(err, "conversation: query range")
	}
	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		state, err := s.Overlay.GetUserMessageState(ctx, tenantID, m.ServerID, userID)
		if err != nil {
			return nil, errs.WrapMsg(err, "conversation: overlay state")
		}
		if state != nil && (state.Visibility == model.VisibilityDeleted || state.Visibility == model.VisibilityHidden) {
			continue
		}
		if !m.IsVisibleContent() {
			m.Content = nil
		}
		out = append(out, m)
	}
	return out, nil
}

// Ack advances the device's synced cursor after the caller has
// processed SyncMissed's result, both in the durable overlay and the
// hot cache SyncMissed's next call will probe first.
func (s *Service) Ack(ctx context.Context, tenantID, userID, deviceID, conversationID string, upToSeq int64, ttl time.Duration) error {
	if err := s.Overlay.SetSyncCursor(ctx, model.SyncCursor{
		TenantID:       tenantID,
		UserID:         userID,
		DeviceID:       deviceID,
		ConversationID: conversationID,
		LastSyncedSeq:  upToSeq,
	}); err != nil {
		return errs.WrapMsg(err, "conversation: set sync cursor")
	}
	return s.SyncCursors.Set(ctx, tenantID, userID, deviceID, conversationID, upToSeq, ttl)
}

func (s *Service) SetConversationMute(ctx context.Context, tenantID, conversationID, userID string, until int64) error {
	return errs.WrapMsg(s.Conversations.SetMute(ctx, tenantID, conversationID, userID, until), "conversation: set mute")
}

func (s *Service) SetPinnedConversation(ctx context.Context, tenantID, conversationID, userID string, pinned bool) error {
	return errs.WrapMsg(s.Conversations.SetPinned(ctx, tenantID, conversationID, userID, pinned), "conversation: set pinned")
}

func (s *Service) DeleteConversationForUser(ctx context.Context, tenantID, conversationID, userID string) error {
	return errs.WrapMsg(s.Conversations.DeleteForUser(ctx, tenantID, conversationID, userID), "conversation: delete for user")
}
