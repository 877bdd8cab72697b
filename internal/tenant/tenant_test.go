package tenant

import (
	"testing"
	"time"

	"github.com/flare152/flare-im-core/internal/model"
)

func TestGetFallsBackToDefaultOnMiss(t *testing.T) {
	c := NewCache(nil)
	cfg := c.Get("unknown-tenant")
	want := model.DefaultTenantConfig("unknown-tenant")
	if cfg != want {
		t.Fatalf("expected default config for unknown tenant, got %+v", cfg)
	}
}

func TestGetReturnsCachedSnapshot(t *testing.T) {
	c := NewCache(nil)
	c.mu.Lock()
	c.byID["t1"] = model.TenantConfig{TenantID: "t1", RecallWindow: 5 * time.Minute}
	c.mu.Unlock()

	cfg := c.Get("t1")
	if cfg.RecallWindow != 5*time.Minute {
		t.Fatalf("expected cached recall window, got %v", cfg.RecallWindow)
	}

	other := c.Get("t2")
	if other.TenantID != "t2" {
		t.Fatalf("expected default fallback scoped to the requested tenant, got %+v", other)
	}
}
