// Command access-gateway is the device-facing websocket endpoint of
// spec.md §4.1: it terminates client connections, authenticates them,
// and hands SendMessage/ping traffic to the Message Orchestrator.
// Wiring mirrors the teacher's chatgateway.go main(): config, then
// connection manager, then gin routes, then r.Run.
package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/flare152/flare-im-core/internal/bootstrap"
	"github.com/flare152/flare-im-core/internal/config"
	"github.com/flare152/flare-im-core/internal/gateway"
	"github.com/flare152/flare-im-core/internal/orchestrator/client"
	"github.com/flare152/flare-im-core/internal/session"
	"github.com/flare152/flare-im-core/internal/store/rediscache"
)

func main() {
	ctx := context.Background()

	env, err := bootstrap.Load(ctx, bootstrap.ConfigPathFromEnv(), nodeIDFromEnv())
	if err != nil {
		log.Fatalf("access-gateway: bootstrap failed: %v", err)
	}
	defer env.Close()
	env.Cfg.NodeType = config.NodeAccessGateway
	go bootstrap.ServeHealth(ctx, env.Cfg.GRPCAddr, string(config.NodeAccessGateway))

	gatewayID := env.Cfg.NodeID

	sessions := &session.Manager{
		Cache:   &rediscache.SessionCache{Rdb: rediscache.Client()},
		Tenants: env.Tenants,
		NC:      env.NC,
	}

	orchClient := client.New(env.Registry, string(config.NodeOrchestrator))

	conns := gateway.NewConnManager(gatewayID, gateway.ManagerConf{})
	srv := &gateway.Server{
		GatewayID:    gatewayID,
		Conns:        conns,
		Sessions:     sessions,
		Orchestrator: orchClient,
		JWT:          env.JWT,
	}

	inst, err := env.RegisterSelf(ctx, string(config.NodeAccessGateway), bootstrap.AdvertiseAddr(), bootstrap.Port(env.Cfg.HTTPAddr))
	if err != nil {
		log.Fatalf("access-gateway: registry register failed: %v", err)
	}
	defer func() { _ = env.Registry.Deregister(context.Background(), inst.Service, inst.ID) }()

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/chat", srv.HandleWS)
	r.POST("/internal/push/deliver", srv.HandleInternalDeliver)

	log.Printf("[HTTP] access-gateway %s listening on %s", gatewayID, env.Cfg.HTTPAddr)
	if err := r.Run(env.Cfg.HTTPAddr); err != nil {
		log.Fatalf("access-gateway: http server failed: %v", err)
	}
}

func nodeIDFromEnv() int64 {
	v := os.Getenv("SNOWFLAKE_NODE_ID")
	if v == "" {
		return 0
	}
	var n int64
	for _, c := range v {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int64(c-'0')
	}
	return n
}
