// Command storage-writer is the sole consumer of the persistence
// topic (spec.md §4.3): it applies every admitted message/operation to
// the metadata store and republishes one push event per write.
package main

import (
	"context"
	"log"

	"github.com/flare152/flare-im-core/internal/bootstrap"
	"github.com/flare152/flare-im-core/internal/config"
	"github.com/flare152/flare-im-core/internal/queue"
	"github.com/flare152/flare-im-core/internal/store/mongostore"
	"github.com/flare152/flare-im-core/internal/store/rediscache"
	"github.com/flare152/flare-im-core/internal/writer"
)

func main() {
	ctx := context.Background()

	env, err := bootstrap.Load(ctx, bootstrap.ConfigPathFromEnv(), 0)
	if err != nil {
		log.Fatalf("storage-writer: bootstrap failed: %v", err)
	}
	defer env.Close()
	go bootstrap.ServeHealth(ctx, env.Cfg.GRPCAddr, string(config.NodeStorageWriter))

	q, err := env.OpenQueue()
	if err != nil {
		log.Fatalf("storage-writer: queue open failed: %v", err)
	}

	audit, err := env.OpenAudit(ctx)
	if err != nil {
		log.Fatalf("storage-writer: audit store open failed: %v", err)
	}
	defer audit.Close()

	db := mongostore.GetDB()
	w := &writer.Writer{
		Messages:      mongostore.NewMessageStore(db),
		Conversations: mongostore.NewConversationStore(db),
		Overlay:       mongostore.NewOverlayStore(db),
		Audit:         audit,
		Idem:          &rediscache.IdempotencyStore{Rdb: rediscache.Client()},
		Tenants:       env.Tenants,
		Producer:      q,
	}

	log.Printf("[kafka] storage-writer %s subscribing to %s", env.Cfg.NodeID, queue.TopicPersistence)
	if err := q.Subscribe(ctx, []queue.Topic{queue.TopicPersistence}, env.Cfg.Kafka.GroupID, w.HandlePersistenceEvent); err != nil {
		log.Fatalf("storage-writer: subscribe failed: %v", err)
	}

	<-ctx.Done()
}
