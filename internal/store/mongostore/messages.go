package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/flare152/flare-im-core/internal/errs"
	"github.com/flare152/flare-im-core/internal/model"
)

const (
	messageCollection      = "message"
	editHistoryCollection  = "message_edit_history"
	seqConversationColl    = "seq_conversation"
)

// MessageStore persists the message document itself, distinct from
// the per-user overlay in overlay.go (invariant I3/I5 keep those
// axes independent).
type MessageStore struct {
	db *mongo.Database
}

func NewMessageStore(db *mongo.Database) *MessageStore {
	return &MessageStore{db: db}
}

func (s *MessageStore) coll() *mongo.Collection {
	return s.db.Collection(messageCollection)
}

func (s *MessageStore) editColl() *mongo.Collection {
	return s.db.Collection(editHistoryCollection)
}

// Insert writes a message document exactly once; a duplicate-key
// error on (tenant_id, server_id) signals a replayed persistence
// event (spec.md invariant I8) and is left for the caller to classify
// via the unique index registered in EnsureIndexes.
func (s *MessageStore) Insert(ctx context.Context, m *model.Message) error {
	now := time.Now()
	m.CreatedAt, m.UpdatedAt = now, now
	_, err := s.coll().InsertOne(ctx, m)
	return err
}

func (s *MessageStore) GetByServerID(ctx context.Context, tenantID, serverID string) (*model.Message, error) {
	var m model.Message
	err := s.coll().FindOne(ctx, bson.M{"tenant_id": tenantID, "server_id": serverID}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ApplyState transitions a message's FSM state (spec.md §3 Message
// FSM), guarding against out-of-order operation-message application
// by requiring the current state to be non-terminal.
func (s *MessageStore) ApplyState(ctx context.Context, tenantID, serverID string, newState model.MessageState) (bool, error) {
	res, err := s.coll().UpdateOne(ctx,
		bson.M{"tenant_id": tenantID, "server_id": serverID, "state": bson.M{"$lt": int32(model.MessageStateRecalled)}},
		bson.M{"$set": bson.M{"state": newState, "updated_at": time.Now()}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// ApplyEdit stores a new edit-history entry and bumps the message's
// content/current_edit_ver in one call (invariant I4: history is
// append-only, current pointer moves forward). editVersion must be
// exactly the caller's view of current_edit_ver + 1, and the message
// must not already be terminal (RECALLED/DELETED_HARD, invariant I3);
// both are enforced with a conditional update so that of two
// concurrent edits racing on the same editVersion, exactly one
// succeeds (spec.md §8 scenario 4) rather than both silently applying.
func (s *MessageStore) ApplyEdit(ctx context.Context, tenantID, serverID string, editVersion int64, newContent []byte, editor, reason string) (int64, error) {
	msg, err := s.GetByServerID(ctx, tenantID, serverID)
	if err != nil {
		return 0, err
	}
	if msg == nil {
		return 0, mongo.ErrNoDocuments
	}
	if msg.State.Terminal() {
		return 0, errs.ErrFailedPrecondition.WithDetail("message is terminal, cannot be edited").Wrap()
	}
	if editVersion != msg.CurrentEditVer+1 {
		return 0, errs.ErrFailedPrecondition.WithDetail("edit_version is stale").Wrap()
	}
	newVer := editVersion
	entry := model.EditHistoryEntry{
		TenantID:  tenantID,
		MessageID: serverID,
		EditVer:   newVer,
		Content:   msg.Content,
		Editor:    editor,
		Reason:    reason,
		EditedAt:  time.Now(),
	}
	if _, err := s.editColl().InsertOne(ctx, entry); err != nil {
		return 0, err
	}
	res, err := s.coll().UpdateOne(ctx,
		bson.M{
			"tenant_id":        tenantID,
			"server_id":        serverID,
			"current_edit_ver": msg.CurrentEditVer,
			"state":            bson.M{"$lt": int32(model.MessageStateRecalled)},
		},
		bson.M{"$set": bson.M{
			"content":          newContent,
			"current_edit_ver": newVer,
			"state":            model.MessageStateEdited,
			"updated_at":       time.Now(),
		}},
	)
	if err != nil {
		return 0, err
	}
	if res.ModifiedCount == 0 {
		return 0, errs.ErrFailedPrecondition.WithDetail("edit_version or message state changed concurrently").Wrap()
	}
	return newVer, nil
}

func (s *MessageStore) EditHistory(ctx context.Context, tenantID, serverID string) ([]model.EditHistoryEntry, error) {
	cur, err := s.editColl().Find(ctx, bson.M{"tenant_id": tenantID, "message_id": serverID}, options.Find().SetSort(bson.M{"edit_ver": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []model.EditHistoryEntry
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// QueryRange returns messages in (afterSeq, ...] up to limit, in seq
// order, the primitive SyncMissed and history-scroll both build on.
func (s *MessageStore) QueryRange(ctx context.Context, tenantID, conversationID string, afterSeq int64, limit int64) ([]model.Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	cur, err := s.coll().Find(ctx,
		bson.M{"tenant_id": tenantID, "conversation_id": conversationID, "seq": bson.M{"$gt": afterSeq}},
		options.Find().SetSort(bson.M{"seq": 1}).SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []model.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EnsureIndexes creates the unique dedup index and the hot query
// index; called once at process start.
func (s *MessageStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "server_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "conversation_id", Value: 1}, {Key: "seq", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "client_msg_id", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	})
	return err
}
