// Package bootstrap wires the infrastructure every cmd/ binary shares
// (Mongo, Redis, Postgres, Kafka, NATS, Consul, JWT, tenant config),
// factored out of the teacher's chatgateway.go/gate.go/main.go, each
// of which repeats this same global.ConfigIds/ConfigRedis/ConfigMgo
// sequence inline. One binary now differs from another only in which
// of these pieces it actually needs and what it does with them.
package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/flare152/flare-im-core/internal/config"
	"github.com/flare152/flare-im-core/internal/hooks"
	"github.com/flare152/flare-im-core/internal/ids"
	"github.com/flare152/flare-im-core/internal/logging"
	"github.com/flare152/flare-im-core/internal/queue/kafkaqueue"
	"github.com/flare152/flare-im-core/internal/registry"
	"github.com/flare152/flare-im-core/internal/registry/consulreg"
	"github.com/flare152/flare-im-core/internal/security"
	"github.com/flare152/flare-im-core/internal/store/mongostore"
	"github.com/flare152/flare-im-core/internal/store/pgaudit"
	"github.com/flare152/flare-im-core/internal/store/rediscache"
	"github.com/flare152/flare-im-core/internal/tenant"
)

// Env holds everything a component's main might need; a binary is
// free to ignore fields it has no use for.
type Env struct {
	Cfg      config.Config
	Registry registry.Registry
	JWT      *security.JWTIssuer
	Tenants  *tenant.Cache
	Queue    *kafkaqueue.Queue
	NC       *nats.Conn
}

// Load reads config, seeds the id generator, connects to Mongo/Redis
// and waits for the first successful connection, then builds the
// shared collaborators every component wires from. ctx should be the
// process lifetime context; Load blocks until Mongo/Redis are ready
// or ctx is done.
func Load(ctx context.Context, configPath string, nodeID int64) (*Env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if nodeID != 0 {
		ids.SetNodeID(nodeID)
	}

	mongostore.StartAsync(ctx, mongostore.Config{
		URI:         cfg.Mongo.URI,
		Database:    cfg.Mongo.Database,
		Username:    cfg.Mongo.Username,
		Password:    cfg.Mongo.Password,
		MaxPoolSize: uint64(cfg.Mongo.PoolSize),
	})
	select {
	case <-mongostore.Ready():
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := rediscache.Init(rediscache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}); err != nil {
		return nil, err
	}

	reg, err := consulreg.New(cfg.RegistryAddr)
	if err != nil {
		return nil, err
	}

	nc, err := nats.Connect(cfg.Nats.URL)
	if err != nil {
		return nil, err
	}

	tenants := tenant.NewCache(mongostore.NewTenantStore(mongostore.GetDB()))
	if err := tenants.Refresh(ctx); err != nil {
		logging.Warnf("bootstrap: initial tenant refresh failed err=%v", err)
	}
	go tenants.Run(ctx, cfg.HookReloadInterval)

	return &Env{
		Cfg:      cfg,
		Registry: reg,
		JWT:      security.NewJWTIssuer(cfg.JWTSecret, 24*time.Hour),
		Tenants:  tenants,
		NC:       nc,
	}, nil
}

// OpenQueue lazily connects to Kafka; components that only consume or
// only produce still go through this so Close() is uniform.
func (e *Env) OpenQueue() (*kafkaqueue.Queue, error) {
	q, err := kafkaqueue.New(kafkaqueue.Config{Brokers: e.Cfg.Kafka.Brokers})
	if err != nil {
		return nil, err
	}
	e.Queue = q
	return q, nil
}

// OpenHooks builds a hooks.Engine wired to every transport (RPC over
// NC, webhook over plain net/http, in-process via adapters) and
// starts its background reloader against the metadata store.
func (e *Env) OpenHooks(ctx context.Context, adapters *hooks.AdapterRegistry) *hooks.Engine {
	if adapters == nil {
		adapters = hooks.NewAdapterRegistry()
	}
	engine := hooks.NewEngine(hooks.BuildInvoker(e.NC, &http.Client{Timeout: 5 * time.Second}, adapters))
	store := mongostore.NewHookConfigStore(mongostore.GetDB())
	go hooks.RunReloader(ctx, engine, store, e.Cfg.HookReloadInterval)
	return engine
}

// OpenAudit connects the Postgres audit sink and ensures its schema.
func (e *Env) OpenAudit(ctx context.Context) (*pgaudit.Store, error) {
	store, err := pgaudit.Open(ctx, e.Cfg.Pg.DSN)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// ServeHealth starts a gRPC health server on addr, the same
// grpc_health_v1 control-plane check the teacher's chatgateway.go
// registers alongside its gateway service. Every component runs one
// of these regardless of whether it speaks gRPC for anything else, so
// an orchestrator (k8s, Consul's own gRPC health checker) has a
// uniform signal. Runs until ctx is done; errors are logged, not
// fatal, since a component should keep serving its primary listener
// even if the health port fails to bind.
func ServeHealth(ctx context.Context, addr, service string) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logging.Warnf("bootstrap: health listen failed addr=%s err=%v", addr, err)
		return
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(service, healthpb.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		gs.GracefulStop()
	}()

	if err := gs.Serve(lis); err != nil {
		logging.Warnf("bootstrap: health server stopped addr=%s err=%v", addr, err)
	}
}

// RegisterSelf announces this instance under service and blocks
// nothing; callers own the process lifetime and should Deregister on
// shutdown.
func (e *Env) RegisterSelf(ctx context.Context, service, addr string, port int) (registry.Instance, error) {
	inst := registry.Instance{
		Service:   service,
		ID:        e.Cfg.NodeID,
		Address:   addr,
		Port:      port,
		Metadata:  map[string]string{"region": e.Cfg.Region},
		Ephemeral: true,
	}
	if err := e.Registry.Register(ctx, inst, registry.RegisterOptions{TTL: 15 * time.Second}); err != nil {
		return inst, err
	}
	return inst, nil
}

// Close releases every collaborator this Env opened.
func (e *Env) Close() {
	if e.Queue != nil {
		_ = e.Queue.Close()
	}
	if e.NC != nil {
		e.NC.Close()
	}
	if e.Registry != nil {
		_ = e.Registry.Close()
	}
	_ = rediscache.Close()
}

// ConfigPathFromEnv reads FLARE_CONFIG, the convention every cmd/
// main uses for its optional YAML config file.
func ConfigPathFromEnv() string {
	return os.Getenv("FLARE_CONFIG")
}

// AdvertiseAddr returns the host other instances should dial this
// process on, read from ADVERTISE_ADDR with a loopback fallback for
// single-box development.
func AdvertiseAddr() string {
	if v := os.Getenv("ADVERTISE_ADDR"); v != "" {
		return v
	}
	return "127.0.0.1"
}

// Port extracts the numeric port from an "addr:port"-style listen
// string such as config.Config.HTTPAddr.
func Port(listenAddr string) int {
	for i := len(listenAddr) - 1; i >= 0; i-- {
		if listenAddr[i] == ':' {
			n := 0
			for _, c := range listenAddr[i+1:] {
				if c < '0' || c > '9' {
					return 0
				}
				n = n*10 + int(c-'0')
			}
			return n
		}
	}
	return 0
}
