// Package config loads process-wide defaults the way the teacher's
// global/config does (in-code defaults layered with environment
// overrides), but sources the defaults from a YAML file per
// SPEC_FULL.md's ambient-stack section, and exposes the tenant config
// precedence chain (store → central KV → local file) spec.md §4.6/§6
// specify for hook reload and friends.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// NodeType mirrors the teacher's NodeType constants, generalized to
// this repo's component set.
type NodeType string

const (
	NodeAccessGateway NodeType = "access_gateway"
	NodeOrchestrator  NodeType = "orchestrator"
	NodeStorageWriter NodeType = "storage_writer"
	NodeStorageReader NodeType = "storage_reader"
	NodePushProxy     NodeType = "push_proxy"
	NodePushScheduler NodeType = "push_scheduler"
	NodePushWorker    NodeType = "push_worker"
	NodeCoreGateway   NodeType = "core_gateway"
)

// Config is the process-wide configuration loaded at start.
type Config struct {
	NodeType NodeType `yaml:"node_type"`
	NodeID   string   `yaml:"node_id"`

	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`

	Mongo MongoConfig `yaml:"mongo"`
	Redis RedisConfig `yaml:"redis"`
	Pg    PgConfig    `yaml:"postgres"`
	Kafka KafkaConfig `yaml:"kafka"`
	Nats  NatsConfig  `yaml:"nats"`

	RegistryAddr string `yaml:"registry_addr"`
	Region       string `yaml:"region"`

	JWTSecret string `yaml:"jwt_secret"`

	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	HookReloadInterval time.Duration `yaml:"hook_reload_interval"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type PgConfig struct {
	DSN string `yaml:"dsn"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

type NatsConfig struct {
	URL string `yaml:"url"`
}

// Default returns the out-of-the-box configuration, the equivalent of
// the teacher's global.Global in-code defaults.
func Default() Config {
	return Config{
		NodeID:   "node-1",
		HTTPAddr: ":8080",
		GRPCAddr: ":50051",
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "flarechat",
			PoolSize: 20,
		},
		Redis: RedisConfig{Addr: "127.0.0.1:6379", DB: 0, PoolSize: 50},
		Pg:    PgConfig{DSN: "postgres://localhost:5432/flarechat_audit"},
		Kafka: KafkaConfig{Brokers: []string{"127.0.0.1:9092"}, GroupID: "flarechat-consumer"},
		Nats:  NatsConfig{URL: "nats://127.0.0.1:4222"},

		RegistryAddr:       "127.0.0.1:8500",
		Region:             "default",
		HeartbeatInterval:  30 * time.Second,
		HookReloadInterval: 30 * time.Second,
	}
}

// Load reads a YAML file (if path is non-empty and exists) over the
// defaults, then applies environment overrides, mirroring the
// precedence the teacher's config layer and spec.md §6 describe.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		} else if !os.IsNotExist(err) {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("NODE_ID"); v != "" {
		cfg.NodeID = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("GRPC_ADDR"); v != "" {
		cfg.GRPCAddr = v
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		cfg.Mongo.URI = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Pg.DSN = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = []string{v}
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.Nats.URL = v
	}
	if v := os.Getenv("REGISTRY_ADDR"); v != "" {
		cfg.RegistryAddr = v
	}
	if v := os.Getenv("REGION"); v != "" {
		cfg.Region = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("HEARTBEAT_INTERVAL_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HeartbeatInterval = time.Duration(n) * time.Second
		}
	}
}
