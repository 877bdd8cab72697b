package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// seqConversation mirrors the teacher's model.SeqConversation: the
// durable high-water mark for a conversation's message stream, from
// which rediscache.SeqAllocator leases fixed-size blocks.
type seqConversation struct {
	TenantID       string    `bson:"tenant_id"`
	ConversationID string    `bson:"conversation_id"`
	IssuedSeq      int64     `bson:"issued_seq"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

// SeqSegmentSource implements rediscache.SegmentSource by atomically
// incrementing the durable issued_seq counter with findOneAndUpdate,
// so concurrent orchestrator instances never hand out overlapping
// blocks for the same conversation.
type SeqSegmentSource struct {
	db *mongo.Database
}

func NewSeqSegmentSource(db *mongo.Database) *SeqSegmentSource {
	return &SeqSegmentSource{db: db}
}

func (s *SeqSegmentSource) coll() *mongo.Collection {
	return s.db.Collection(seqConversationColl)
}

func (s *SeqSegmentSource) AllocSegment(ctx context.Context, tenantID, conversationID string, block int64) (start, end int64, err error) {
	if block <= 0 {
		block = 1
	}
	now := time.Now()
	after := options.After
	res := s.coll().FindOneAndUpdate(ctx,
		bson.M{"tenant_id": tenantID, "conversation_id": conversationID},
		bson.M{
			"$inc": bson.M{"issued_seq": block},
			"$set": bson.M{"updated_at": now},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(after),
	)
	var doc seqConversation
	if err := res.Decode(&doc); err != nil {
		return 0, 0, err
	}
	end = doc.IssuedSeq
	start = end - block + 1
	return start, end, nil
}

func (s *SeqSegmentSource) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "conversation_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
