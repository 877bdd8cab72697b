package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/flare152/flare-im-core/internal/model"
)

const (
	userMessageCollection = "user_message_state"
	reactionCollection     = "message_reaction"
	pinnedCollection       = "pinned_message"
	markedCollection       = "marked_message"
	syncCursorCollection   = "sync_cursor"
)

// OverlayStore covers every per-user or per-message attribute that
// must stay orthogonal to the global Message FSM: visibility/read
// state, reactions, pins, marks, and device sync cursors.
type OverlayStore struct {
	db *mongo.Database
}

func NewOverlayStore(db *mongo.Database) *OverlayStore {
	return &OverlayStore{db: db}
}

func (s *OverlayStore) userMsgColl() *mongo.Collection  { return s.db.Collection(userMessageCollection) }
func (s *OverlayStore) reactionColl() *mongo.Collection { return s.db.Collection(reactionCollection) }
func (s *OverlayStore) pinnedColl() *mongo.Collection   { return s.db.Collection(pinnedCollection) }
func (s *OverlayStore) markedColl() *mongo.Collection   { return s.db.Collection(markedCollection) }
func (s *OverlayStore) cursorColl() *mongo.Collection   { return s.db.Collection(syncCursorCollection) }

func (s *OverlayStore) SetVisibility(ctx context.Context, tenantID, messageID, userID string, v model.Visibility) error {
	now := time.Now()
	_, err := s.userMsgColl().UpdateOne(ctx,
		bson.M{"tenant_id": tenantID, "message_id": messageID, "user_id": userID},
		bson.M{"$set": bson.M{"visibility": v, "updated_at": now}, "$setOnInsert": bson.M{"read": false}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *OverlayStore) MarkRead(ctx context.Context, tenantID, messageID, userID string) error {
	now := time.Now()
	_, err := s.userMsgColl().UpdateOne(ctx,
		bson.M{"tenant_id": tenantID, "message_id": messageID, "user_id": userID},
		bson.M{"$set": bson.M{"read": true, "read_at": now.UnixMilli(), "updated_at": now}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *OverlayStore) GetUserMessageState(ctx context.Context, tenantID, messageID, userID string) (*model.UserMessageState, error) {
	var st model.UserMessageState
	err := s.userMsgColl().FindOne(ctx, bson.M{"tenant_id": tenantID, "message_id": messageID, "user_id": userID}).Decode(&st)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// ToggleReaction adds or removes userID from emoji's user set,
// idempotently, and returns the resulting count.
func (s *OverlayStore) ToggleReaction(ctx context.Context, tenantID, messageID, emoji, userID string, add bool) (int64, error) {
	var r model.Reaction
	err := s.reactionColl().FindOne(ctx, bson.M{"tenant_id": tenantID, "message_id": messageID, "emoji": emoji}).Decode(&r)
	if err != nil && err != mongo.ErrNoDocuments {
		return 0, err
	}
	if err == mongo.ErrNoDocuments {
		r = model.Reaction{TenantID: tenantID, MessageID: messageID, Emoji: emoji, Users: map[string]bool{}}
	}
	if add {
		r.Add(userID)
	} else {
		r.Remove(userID)
	}
	r.UpdatedAt = time.Now()
	_, err = s.reactionColl().UpdateOne(ctx,
		bson.M{"tenant_id": tenantID, "message_id": messageID, "emoji": emoji},
		bson.M{"$set": r},
		options.Update().SetUpsert(true),
	)
	return r.Count, err
}

func (s *OverlayStore) ListReactions(ctx context.Context, tenantID, messageID string) ([]model.Reaction, error) {
	cur, err := s.reactionColl().Find(ctx, bson.M{"tenant_id": tenantID, "message_id": messageID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []model.Reaction
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *OverlayStore) Pin(ctx context.Context, p model.PinnedMessage) error {
	p.PinnedAt = time.Now()
	_, err := s.pinnedColl().UpdateOne(ctx,
		bson.M{"tenant_id": p.TenantID, "conversation_id": p.ConversationID, "message_id": p.MessageID},
		bson.M{"$set": p},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *OverlayStore) Unpin(ctx context.Context, tenantID, conversationID, messageID string) error {
	_, err := s.pinnedColl().DeleteOne(ctx, bson.M{"tenant_id": tenantID, "conversation_id": conversationID, "message_id": messageID})
	return err
}

func (s *OverlayStore) ListPinned(ctx context.Context, tenantID, conversationID string) ([]model.PinnedMessage, error) {
	cur, err := s.pinnedColl().Find(ctx, bson.M{"tenant_id": tenantID, "conversation_id": conversationID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []model.PinnedMessage
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *OverlayStore) SetMark(ctx context.Context, m model.MarkedMessage, on bool) error {
	if !on {
		_, err := s.markedColl().DeleteOne(ctx, bson.M{"tenant_id": m.TenantID, "message_id": m.MessageID, "user_id": m.UserID, "mark_type": m.MarkType})
		return err
	}
	m.MarkedAt = time.Now().UnixMilli()
	_, err := s.markedColl().UpdateOne(ctx,
		bson.M{"tenant_id": m.TenantID, "message_id": m.MessageID, "user_id": m.UserID, "mark_type": m.MarkType},
		bson.M{"$set": m},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *OverlayStore) SetSyncCursor(ctx context.Context, c model.SyncCursor) error {
	c.UpdatedAt = time.Now().UnixMilli()
	_, err := s.cursorColl().UpdateOne(ctx,
		bson.M{"tenant_id": c.TenantID, "user_id": c.UserID, "device_id": c.DeviceID, "conversation_id": c.ConversationID},
		bson.M{"$set": c},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *OverlayStore) GetSyncCursor(ctx context.Context, tenantID, userID, deviceID, conversationID string) (*model.SyncCursor, error) {
	var c model.SyncCursor
	err := s.cursorColl().FindOne(ctx, bson.M{"tenant_id": tenantID, "user_id": userID, "device_id": deviceID, "conversation_id": conversationID}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *OverlayStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.userMsgColl().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "message_id", Value: 1}, {Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}
	if _, err := s.reactionColl().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "message_id", Value: 1}, {Key: "emoji", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}
	_, err := s.cursorColl().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "user_id", Value: 1}, {Key: "device_id", Value: 1}, {Key: "conversation_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
