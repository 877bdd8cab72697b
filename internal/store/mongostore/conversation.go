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
	conversationCollection = "conversation"
	participantCollection  = "participant"
)

type ConversationStore struct {
	db *mongo.Database
}

func NewConversationStore(db *mongo.Database) *ConversationStore {
	return &ConversationStore{db: db}
}

func (s *ConversationStore) coll() *mongo.Collection {
	return s.db.Collection(conversationCollection)
}

func (s *ConversationStore) participants() *mongo.Collection {
	return s.db.Collection(participantCollection)
}

func (s *ConversationStore) Upsert(ctx context.Context, c *model.Conversation) error {
	now := time.Now()
	c.UpdatedAt = now
	_, err := s.coll().UpdateOne(ctx,
		bson.M{"tenant_id": c.TenantID, "conversation_id": c.ConversationID},
		bson.M{"$set": c, "$setOnInsert": bson.M{"created_at": now}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *ConversationStore) Get(ctx context.Context, tenantID, conversationID string) (*model.Conversation, error) {
	var c model.Conversation
	err := s.coll().FindOne(ctx, bson.M{"tenant_id": tenantID, "conversation_id": conversationID}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// AdvanceLastMessage bumps the conversation's denormalized
// last-message pointer, used by ListConversations to sort by recency
// without a join against the message collection.
func (s *ConversationStore) AdvanceLastMessage(ctx context.Context, tenantID, conversationID, messageID string, seq int64) error {
	_, err := s.coll().UpdateOne(ctx,
		bson.M{"tenant_id": tenantID, "conversation_id": conversationID, "last_message_seq": bson.M{"$lt": seq}},
		bson.M{"$set": bson.M{"last_message_id": messageID, "last_message_seq": seq, "updated_at": time.Now()}},
	)
	return err
}

func (s *ConversationStore) UpsertParticipant(ctx context.Context, p *model.Participant) error {
	now := time.Now()
	p.UpdatedAt = now
	_, err := s.participants().UpdateOne(ctx,
		bson.M{"tenant_id": p.TenantID, "conversation_id": p.ConversationID, "user_id": p.UserID},
		bson.M{"$set": p, "$setOnInsert": bson.M{"joined_at": now}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *ConversationStore) GetParticipant(ctx context.Context, tenantID, conversationID, userID string) (*model.Participant, error) {
	var p model.Participant
	err := s.participants().FindOne(ctx, bson.M{"tenant_id": tenantID, "conversation_id": conversationID, "user_id": userID}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ConversationStore) ListParticipants(ctx context.Context, tenantID, conversationID string) ([]model.Participant, error) {
	cur, err := s.participants().Find(ctx, bson.M{"tenant_id": tenantID, "conversation_id": conversationID, "is_deleted": false})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []model.Participant
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListForUser returns the conversations a user participates in,
// newest-activity-first, backing the Conversation & Sync State
// ListConversations operation.
func (s *ConversationStore) ListForUser(ctx context.Context, tenantID, userID string, limit int64) ([]model.Participant, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	cur, err := s.participants().Find(ctx,
		bson.M{"tenant_id": tenantID, "user_id": userID, "is_deleted": false},
		options.Find().SetSort(bson.M{"updated_at": -1}).SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []model.Participant
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateReadCursor advances LastReadSeq and recomputes UnreadCount
// against the conversation's last_message_seq (invariant I6). The
// conversation is read first and the participant row is updated in a
// second call; the two are not one atomic operation.
func (s *ConversationStore) UpdateReadCursor(ctx context.Context, tenantID, conversationID, userID string, seq int64) error {
	conv, err := s.Get(ctx, tenantID, conversationID)
	if err != nil {
		return err
	}
	lastSeq := int64(0)
	if conv != nil {
		lastSeq = conv.LastMessageSeq
	}
	unread := lastSeq - seq
	if unread < 0 {
		unread = 0
	}
	_, err = s.participants().UpdateOne(ctx,
		bson.M{"tenant_id": tenantID, "conversation_id": conversationID, "user_id": userID, "last_read_seq": bson.M{"$lt": seq}},
		bson.M{"$set": bson.M{"last_read_seq": seq, "unread_count": unread, "updated_at": time.Now()}},
	)
	return err
}

func (s *ConversationStore) SetMute(ctx context.Context, tenantID, conversationID, userID string, muteUntil int64) error {
	_, err := s.participants().UpdateOne(ctx,
		bson.M{"tenant_id": tenantID, "conversation_id": conversationID, "user_id": userID},
		bson.M{"$set": bson.M{"mute_until": muteUntil, "updated_at": time.Now()}},
	)
	return err
}

func (s *ConversationStore) SetPinned(ctx context.Context, tenantID, conversationID, userID string, pinned bool) error {
	_, err := s.participants().UpdateOne(ctx,
		bson.M{"tenant_id": tenantID, "conversation_id": conversationID, "user_id": userID},
		bson.M{"$set": bson.M{"pinned": pinned, "updated_at": time.Now()}},
	)
	return err
}

func (s *ConversationStore) DeleteForUser(ctx context.Context, tenantID, conversationID, userID string) error {
	_, err := s.participants().UpdateOne(ctx,
		bson.M{"tenant_id": tenantID, "conversation_id": conversationID, "user_id": userID},
		bson.M{"$set": bson.M{"is_deleted": true, "quit_at": time.Now(), "updated_at": time.Now()}},
	)
	return err
}

func (s *ConversationStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.coll().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "conversation_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}
	_, err := s.participants().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "conversation_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "user_id", Value: 1}, {Key: "updated_at", Value: -1}},
		},
	})
	return err
}
