// Command push-worker executes DispatchTasks (spec.md §4.5): online
// deliveries go straight to the owning Access Gateway over HTTP,
// offline deliveries go to a push vendor behind OFFLINE_PUSH_ENDPOINT,
// and every outcome is acked back to the Storage Writer.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/flare152/flare-im-core/internal/bootstrap"
	"github.com/flare152/flare-im-core/internal/config"
	"github.com/flare152/flare-im-core/internal/push"
	"github.com/flare152/flare-im-core/internal/queue"
)

func main() {
	ctx := context.Background()

	env, err := bootstrap.Load(ctx, bootstrap.ConfigPathFromEnv(), 0)
	if err != nil {
		log.Fatalf("push-worker: bootstrap failed: %v", err)
	}
	defer env.Close()
	go bootstrap.ServeHealth(ctx, env.Cfg.GRPCAddr, string(config.NodePushWorker))

	q, err := env.OpenQueue()
	if err != nil {
		log.Fatalf("push-worker: queue open failed: %v", err)
	}

	hookEngine := env.OpenHooks(ctx, nil)

	httpClient := &http.Client{Timeout: 5 * time.Second}
	w := &push.Worker{
		Gateway: &push.HTTPGatewayDispatcher{
			Client:   httpClient,
			Resolver: env.Registry,
			Service:  string(config.NodeAccessGateway),
			Path:     "/internal/push/deliver",
		},
		Offline: &push.WebhookOfflineVendor{
			Client:   httpClient,
			Endpoint: os.Getenv("OFFLINE_PUSH_ENDPOINT"),
		},
		Producer: q,
		Hooks:    hookEngine,
	}

	log.Printf("[kafka] push-worker %s subscribing to %s", env.Cfg.NodeID, queue.TopicPushExecute)
	if err := q.Subscribe(ctx, []queue.Topic{queue.TopicPushExecute}, env.Cfg.Kafka.GroupID, w.HandleTask); err != nil {
		log.Fatalf("push-worker: subscribe failed: %v", err)
	}

	<-ctx.Done()
}
