package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/flare152/flare-im-core/internal/model"
)

// TenantStore is the system-of-record for per-tenant configuration
// (spec.md §6), the top of the store → central KV → local file
// precedence chain internal/tenant's cache sits in front of.
type TenantStore struct {
	db *mongo.Database
}

func NewTenantStore(db *mongo.Database) *TenantStore {
	return &TenantStore{db: db}
}

func (s *TenantStore) coll() *mongo.Collection {
	return s.db.Collection("tenant_configs")
}

func (s *TenantStore) Get(ctx context.Context, tenantID string) (*model.TenantConfig, error) {
	var cfg model.TenantConfig
	err := s.coll().FindOne(ctx, bson.M{"tenant_id": tenantID}).Decode(&cfg)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *TenantStore) List(ctx context.Context) ([]model.TenantConfig, error) {
	cur, err := s.coll().Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []model.TenantConfig
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *TenantStore) Upsert(ctx context.Context, cfg model.TenantConfig) error {
	_, err := s.coll().UpdateOne(ctx,
		bson.M{"tenant_id": cfg.TenantID},
		bson.M{"$set": cfg},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *TenantStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tenant_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
