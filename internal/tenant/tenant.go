// Package tenant resolves per-tenant configuration (spec.md §6) for
// every component that needs it (orchestrator, writer, session
// manager), caching an in-memory snapshot rebuilt on a timer so a
// config change in the metadata store doesn't require a restart.
// Grounded on hooks.Engine's Reload-wholesale-on-a-tick pattern,
// generalized from hook chains to tenant settings.
package tenant

import (
	"context"
	"sync"
	"time"

	"github.com/flare152/flare-im-core/internal/logging"
	"github.com/flare152/flare-im-core/internal/model"
	"github.com/flare152/flare-im-core/internal/store/mongostore"
)

// Cache is a TenantConfigSource backed by mongostore.TenantStore, with
// an in-memory snapshot refreshed by Run on a ticker. Get never blocks
// on the store: a miss returns model.DefaultTenantConfig, the bottom
// of spec.md §6's store → central KV → local file precedence chain.
type Cache struct {
	store *mongostore.TenantStore

	mu   sync.RWMutex
	byID map[string]model.TenantConfig
}

func NewCache(store *mongostore.TenantStore) *Cache {
	return &Cache{store: store, byID: map[string]model.TenantConfig{}}
}

func (c *Cache) Get(tenantID string) model.TenantConfig {
	c.mu.RLock()
	cfg, ok := c.byID[tenantID]
	c.mu.RUnlock()
	if ok {
		return cfg
	}
	return model.DefaultTenantConfig(tenantID)
}

// Refresh pulls every tenant config from the store and replaces the
// snapshot wholesale, the same all-or-nothing rebuild hooks.Engine
// uses for its chains.
func (c *Cache) Refresh(ctx context.Context) error {
	configs, err := c.store.List(ctx)
	if err != nil {
		return err
	}
	next := make(map[string]model.TenantConfig, len(configs))
	for _, cfg := range configs {
		next[cfg.TenantID] = cfg
	}
	c.mu.Lock()
	c.byID = next
	c.mu.Unlock()
	return nil
}

// Run refreshes the snapshot every interval until ctx is done.
// bootstrap starts it in its own goroutine.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
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
			if err := c.Refresh(ctx); err != nil {
				logging.Warnf("tenant: refresh failed err=%v", err)
			}
		}
	}
}
