// Command storage-reader exposes the Storage Reader of spec.md §4.4
// over HTTP for callers that don't embed internal/reader directly
// (tooling, analytics, a horizontally-scaled read fleet distinct from
// the gateways' own embedded reader instances).
package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/flare152/flare-im-core/internal/bootstrap"
	"github.com/flare152/flare-im-core/internal/config"
	"github.com/flare152/flare-im-core/internal/orchestrator/client"
	"github.com/flare152/flare-im-core/internal/reader"
	"github.com/flare152/flare-im-core/internal/store/mongostore"
	"github.com/flare152/flare-im-core/internal/store/rediscache"
)

func main() {
	ctx := context.Background()

	env, err := bootstrap.Load(ctx, bootstrap.ConfigPathFromEnv(), 0)
	if err != nil {
		log.Fatalf("storage-reader: bootstrap failed: %v", err)
	}
	defer env.Close()
	go bootstrap.ServeHealth(ctx, env.Cfg.GRPCAddr, string(config.NodeStorageReader))

	db := mongostore.GetDB()
	rd := &reader.Reader{
		Messages:      mongostore.NewMessageStore(db),
		Conversations: mongostore.NewConversationStore(db),
		Overlay:       mongostore.NewOverlayStore(db),
		HotCache:      &rediscache.HotMessageCache{Rdb: rediscache.Client()},
		Orchestrator:  client.New(env.Registry, string(config.NodeOrchestrator)),
	}

	inst, err := env.RegisterSelf(ctx, string(config.NodeStorageReader), bootstrap.AdvertiseAddr(), bootstrap.Port(env.Cfg.HTTPAddr))
	if err != nil {
		log.Fatalf("storage-reader: registry register failed: %v", err)
	}
	defer func() { _ = env.Registry.Deregister(context.Background(), inst.Service, inst.ID) }()

	httpSrv := &reader.HTTPServer{Reader: rd}
	r := gin.New()
	r.Use(gin.Recovery())
	httpSrv.Routes(r)

	log.Printf("[HTTP] storage-reader %s listening on %s", env.Cfg.NodeID, env.Cfg.HTTPAddr)
	if err := r.Run(env.Cfg.HTTPAddr); err != nil {
		log.Fatalf("storage-reader: http server failed: %v", err)
	}
}
