package hooks

import (
	"context"
	"time"

	"github.com/flare152/flare-im-core/internal/logging"
	"github.com/flare152/flare-im-core/internal/model"
)

// ConfigSource lists every hook registration currently on file, the
// input to a reload tick.
type ConfigSource interface {
	ListAll(ctx context.Context) ([]model.HookConfig, error)
}

// RunReloader reloads e from src every interval until ctx is done,
// the same tick-then-replace-wholesale shape tenant.Cache.Run uses.
func RunReloader(ctx context.Context, e *Engine, src ConfigSource, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if configs, err := src.ListAll(ctx); err != nil {
		logging.Warnf("hooks: initial reload failed err=%v", err)
	} else if err := e.Reload(configs); err != nil {
		logging.Warnf("hooks: initial reload build failed err=%v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			configs, err := src.ListAll(ctx)
			if err != nil {
				logging.Warnf("hooks: reload failed err=%v", err)
				continue
			}
			if err := e.Reload(configs); err != nil {
				logging.Warnf("hooks: reload build failed err=%v", err)
			}
		}
	}
}
