// Command orchestrator runs the Message Orchestrator of spec.md §4.2
// as its own scaled-out fleet, reachable over HTTP by the Access
// Gateway and Core Gateway through orchestrator/client.Client.
package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/flare152/flare-im-core/internal/bootstrap"
	"github.com/flare152/flare-im-core/internal/config"
	"github.com/flare152/flare-im-core/internal/orchestrator"
	"github.com/flare152/flare-im-core/internal/store/mongostore"
	"github.com/flare152/flare-im-core/internal/store/rediscache"
)

func main() {
	ctx := context.Background()

	env, err := bootstrap.Load(ctx, bootstrap.ConfigPathFromEnv(), 0)
	if err != nil {
		log.Fatalf("orchestrator: bootstrap failed: %v", err)
	}
	defer env.Close()
	go bootstrap.ServeHealth(ctx, env.Cfg.GRPCAddr, string(config.NodeOrchestrator))

	q, err := env.OpenQueue()
	if err != nil {
		log.Fatalf("orchestrator: queue open failed: %v", err)
	}

	hookEngine := env.OpenHooks(ctx, nil)

	seqAllocator := &rediscache.SeqAllocator{
		Rdb:    rediscache.Client(),
		Source: mongostore.NewSeqSegmentSource(mongostore.GetDB()),
	}

	o := &orchestrator.Orchestrator{
		Seq:      seqAllocator,
		Idem:     &rediscache.IdempotencyStore{Rdb: rediscache.Client()},
		Tenants:  env.Tenants,
		Hooks:    hookEngine,
		Producer: q,
	}

	inst, err := env.RegisterSelf(ctx, string(config.NodeOrchestrator), bootstrap.AdvertiseAddr(), bootstrap.Port(env.Cfg.HTTPAddr))
	if err != nil {
		log.Fatalf("orchestrator: registry register failed: %v", err)
	}
	defer func() { _ = env.Registry.Deregister(context.Background(), inst.Service, inst.ID) }()

	httpSrv := &orchestrator.HTTPServer{Orchestrator: o}
	r := gin.New()
	r.Use(gin.Recovery())
	httpSrv.Routes(r)

	log.Printf("[HTTP] orchestrator %s listening on %s", env.Cfg.NodeID, env.Cfg.HTTPAddr)
	if err := r.Run(env.Cfg.HTTPAddr); err != nil {
		log.Fatalf("orchestrator: http server failed: %v", err)
	}
}
