package hooks

import (
	"context"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flare152/flare-im-core/internal/logging"
	"github.com/flare152/flare-im-core/internal/model"
)

// MetadataStore is the subset of the metadata store the config source
// needs: the per-tenant hook registrations persisted alongside
// messages/conversations.
type MetadataStore interface {
	ListHookConfigs(ctx context.Context, tenantID string) ([]model.HookConfig, error)
}

// CentralKV is the central KV tier (e.g. a Consul KV prefix) that
// supplies hook config without a redeploy when the metadata store has
// none for a tenant; it does not override store-resident config.
type CentralKV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
}

// LayeredConfigSource resolves a tenant's hook chain with the
// precedence spec.md §4.6 specifies: metadata store first, then
// central KV when the store returns nothing or fails, then a local
// YAML file as the last-resort default — grounded on the teacher's global/config.ConfigAll
// bootstrap ordering (ids, then redis, then mongo, each layered in).
type LayeredConfigSource struct {
	Store     MetadataStore
	KV        CentralKV
	KVKeyFn   func(tenantID string) string
	LocalPath string
}

type localFile struct {
	Hooks []model.HookConfig `yaml:"hooks"`
}

func (c *LayeredConfigSource) Resolve(ctx context.Context, tenantID string) ([]model.HookConfig, error) {
	if c.Store != nil {
		cfgs, err := c.Store.ListHookConfigs(ctx, tenantID)
		if err == nil && len(cfgs) > 0 {
			return cfgs, nil
		}
		if err != nil {
			logging.Warnf("hooks: store lookup failed tenant=%s err=%v", tenantID, err)
		}
	}

	if c.KV != nil {
		key := tenantID
		if c.KVKeyFn != nil {
			key = c.KVKeyFn(tenantID)
		}
		if data, ok, err := c.KV.Get(ctx, key); err == nil && ok {
			var lf localFile
			if err := yaml.Unmarshal(data, &lf); err == nil && len(lf.Hooks) > 0 {
				return lf.Hooks, nil
			}
		} else if err != nil {
			logging.Warnf("hooks: kv lookup failed tenant=%s err=%v", tenantID, err)
		}
	}

	if c.LocalPath != "" {
		data, err := os.ReadFile(c.LocalPath)
		if err == nil {
			var lf localFile
			if err := yaml.Unmarshal(data, &lf); err == nil {
				return lf.Hooks, nil
			}
		}
	}
	return nil, nil
}

// RunLayeredReloader reloads engine from source every interval until
// ctx is done, the active-reload counterpart to spec.md §6's
// HookReloadInterval tenant config value.
func RunLayeredReloader(ctx context.Context, engine *Engine, source *LayeredConfigSource, tenantIDs func() []string, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var all []model.HookConfig
			for _, t := range tenantIDs() {
				cfgs, err := source.Resolve(ctx, t)
				if err != nil {
					logging.Warnf("hooks: resolve failed tenant=%s err=%v", t, err)
					continue
				}
				all = append(all, cfgs...)
			}
			if err := engine.Reload(all); err != nil {
				logging.Errorf("hooks: reload failed: %v", err)
			}
		}
	}
}
