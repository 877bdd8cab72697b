// Command core-gateway is the outward-facing composite HTTP entry
// point tenant back-offices call (spec.md §2's Core Gateway row):
// token issuance, message operations, conversation management, and
// hook configuration, all behind internal/middleware's auth gate.
package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/flare152/flare-im-core/internal/bootstrap"
	"github.com/flare152/flare-im-core/internal/config"
	"github.com/flare152/flare-im-core/internal/conversation"
	"github.com/flare152/flare-im-core/internal/coregateway"
	"github.com/flare152/flare-im-core/internal/orchestrator/client"
	"github.com/flare152/flare-im-core/internal/reader"
	"github.com/flare152/flare-im-core/internal/store/mongostore"
	"github.com/flare152/flare-im-core/internal/store/rediscache"
)

func main() {
	ctx := context.Background()

	env, err := bootstrap.Load(ctx, bootstrap.ConfigPathFromEnv(), 0)
	if err != nil {
		log.Fatalf("core-gateway: bootstrap failed: %v", err)
	}
	defer env.Close()
	go bootstrap.ServeHealth(ctx, env.Cfg.GRPCAddr, string(config.NodeCoreGateway))

	db := mongostore.GetDB()
	messages := mongostore.NewMessageStore(db)
	conversations := mongostore.NewConversationStore(db)
	overlay := mongostore.NewOverlayStore(db)
	hookCfgs := mongostore.NewHookConfigStore(db)

	orchClient := client.New(env.Registry, string(config.NodeOrchestrator))

	rd := &reader.Reader{
		Messages:      messages,
		Conversations: conversations,
		Overlay:       overlay,
		HotCache:      &rediscache.HotMessageCache{Rdb: rediscache.Client()},
		Orchestrator:  orchClient,
	}
	convSvc := &conversation.Service{
		Conversations: conversations,
		Messages:      messages,
		Overlay:       overlay,
		SyncCursors:   &rediscache.SyncCursorCache{Rdb: rediscache.Client()},
	}

	srv := &coregateway.Server{
		Orchestrator: orchClient,
		Reader:       rd,
		Conversation: convSvc,
		Hooks:        hookCfgs,
		JWT:          env.JWT,
	}

	inst, err := env.RegisterSelf(ctx, string(config.NodeCoreGateway), bootstrap.AdvertiseAddr(), bootstrap.Port(env.Cfg.HTTPAddr))
	if err != nil {
		log.Fatalf("core-gateway: registry register failed: %v", err)
	}
	defer func() { _ = env.Registry.Deregister(context.Background(), inst.Service, inst.ID) }()

	r := gin.New()
	r.Use(gin.Recovery())
	srv.Routes(r)

	log.Printf("[HTTP] core-gateway listening on %s", env.Cfg.HTTPAddr)
	if err := r.Run(env.Cfg.HTTPAddr); err != nil {
		log.Fatalf("core-gateway: http server failed: %v", err)
	}
}
