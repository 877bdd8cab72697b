// Command push-proxy fans a persisted message out into one PushTask
// per recipient (spec.md §4.5), consuming the writer's push events and
// producing per-recipient dispatch tasks for the Push Scheduler.
package main

import (
	"context"
	"log"

	"github.com/flare152/flare-im-core/internal/bootstrap"
	"github.com/flare152/flare-im-core/internal/config"
	"github.com/flare152/flare-im-core/internal/push"
	"github.com/flare152/flare-im-core/internal/queue"
	"github.com/flare152/flare-im-core/internal/store/mongostore"
)

func main() {
	ctx := context.Background()

	env, err := bootstrap.Load(ctx, bootstrap.ConfigPathFromEnv(), 0)
	if err != nil {
		log.Fatalf("push-proxy: bootstrap failed: %v", err)
	}
	defer env.Close()
	go bootstrap.ServeHealth(ctx, env.Cfg.GRPCAddr, string(config.NodePushProxy))

	q, err := env.OpenQueue()
	if err != nil {
		log.Fatalf("push-proxy: queue open failed: %v", err)
	}

	p := &push.Proxy{
		Conversations: mongostore.NewConversationStore(mongostore.GetDB()),
		Producer:      q,
	}

	log.Printf("[kafka] push-proxy %s subscribing to %s", env.Cfg.NodeID, queue.TopicPush)
	if err := q.Subscribe(ctx, []queue.Topic{queue.TopicPush}, env.Cfg.Kafka.GroupID, p.HandleWriterEvent); err != nil {
		log.Fatalf("push-proxy: subscribe failed: %v", err)
	}

	<-ctx.Done()
}
