package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/flare152/flare-im-core/internal/model"
)

const hookConfigCollection = "hook_config"

// HookConfigStore is the metadata-store tier of the Hook Engine's
// config precedence chain (spec.md §4.6): the durable home for hook
// registrations, read by internal/hooks.LayeredConfigSource.Resolve first.
type HookConfigStore struct {
	db *mongo.Database
}

func NewHookConfigStore(db *mongo.Database) *HookConfigStore {
	return &HookConfigStore{db: db}
}

func (s *HookConfigStore) coll() *mongo.Collection {
	return s.db.Collection(hookConfigCollection)
}

func (s *HookConfigStore) ListHookConfigs(ctx context.Context, tenantID string) ([]model.HookConfig, error) {
	cur, err := s.coll().Find(ctx, bson.M{"$or": []bson.M{
		{"tenant_id": tenantID},
		{"tenant_id": ""},
	}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []model.HookConfig
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAll returns every hook registration across every tenant, the
// input to hooks.Engine.Reload: the engine's chains are keyed by
// HookPoint only, with per-tenant scoping applied at match time via
// HookConfig.Selector.Tenants, so a reload must see the whole set.
func (s *HookConfigStore) ListAll(ctx context.Context) ([]model.HookConfig, error) {
	cur, err := s.coll().Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []model.HookConfig
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *HookConfigStore) Upsert(ctx context.Context, cfg model.HookConfig) error {
	_, err := s.coll().UpdateOne(ctx,
		bson.M{"tenant_id": cfg.TenantID, "hook_type": cfg.HookType, "name": cfg.Name},
		bson.M{"$set": cfg},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *HookConfigStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "hook_type", Value: 1}, {Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
