package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithoutPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.Mongo.Database != "flarechat" {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("expected a missing file to not error, got %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTPAddr)
	}
}

func TestLoadReadsYAMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := "node_id: node-custom\nhttp_addr: \":9999\"\nmongo:\n  database: custom_db\n"
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write fixture failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.NodeID != "node-custom" || cfg.HTTPAddr != ":9999" || cfg.Mongo.Database != "custom_db" {
		t.Fatalf("expected yaml overrides to apply, got %+v", cfg)
	}
	// Fields the yaml fixture didn't set should keep their defaults.
	if cfg.Redis.Addr != "127.0.0.1:6379" {
		t.Fatalf("expected untouched field to keep its default, got %q", cfg.Redis.Addr)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("NODE_ID", "env-node")
	t.Setenv("HTTP_ADDR", ":7777")
	t.Setenv("KAFKA_BROKERS", "broker-a:9092")
	t.Setenv("HEARTBEAT_INTERVAL_SEC", "45")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.NodeID != "env-node" {
		t.Fatalf("expected env NODE_ID override, got %q", cfg.NodeID)
	}
	if cfg.HTTPAddr != ":7777" {
		t.Fatalf("expected env HTTP_ADDR override, got %q", cfg.HTTPAddr)
	}
	if len(cfg.Kafka.Brokers) != 1 || cfg.Kafka.Brokers[0] != "broker-a:9092" {
		t.Fatalf("expected env KAFKA_BROKERS override, got %v", cfg.Kafka.Brokers)
	}
	if cfg.HeartbeatInterval != 45*time.Second {
		t.Fatalf("expected env heartbeat interval override, got %v", cfg.HeartbeatInterval)
	}
}

func TestLoadEnvOverridesWinOverYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("node_id: from-yaml\n"), 0o644); err != nil {
		t.Fatalf("write fixture failed: %v", err)
	}
	t.Setenv("NODE_ID", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.NodeID != "from-env" {
		t.Fatalf("expected env to win over yaml, got %q", cfg.NodeID)
	}
}

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	if cfg.Region != "default" || cfg.RegistryAddr != "127.0.0.1:8500" {
		t.Fatalf("unexpected default values: %+v", cfg)
	}
	if len(cfg.Kafka.Brokers) != 1 {
		t.Fatalf("expected exactly one default kafka broker, got %v", cfg.Kafka.Brokers)
	}
}
