// Command push-scheduler splits each PushTask into per-device
// DispatchTasks (spec.md §4.5), checking the Cache Store's session
// table to decide online vs. offline delivery for each device.
package main

import (
	"context"
	"log"

	"github.com/flare152/flare-im-core/internal/bootstrap"
	"github.com/flare152/flare-im-core/internal/config"
	"github.com/flare152/flare-im-core/internal/push"
	"github.com/flare152/flare-im-core/internal/queue"
	"github.com/flare152/flare-im-core/internal/store/rediscache"
)

func main() {
	ctx := context.Background()

	env, err := bootstrap.Load(ctx, bootstrap.ConfigPathFromEnv(), 0)
	if err != nil {
		log.Fatalf("push-scheduler: bootstrap failed: %v", err)
	}
	defer env.Close()
	go bootstrap.ServeHealth(ctx, env.Cfg.GRPCAddr, string(config.NodePushScheduler))

	q, err := env.OpenQueue()
	if err != nil {
		log.Fatalf("push-scheduler: queue open failed: %v", err)
	}

	s := &push.Scheduler{
		Sessions: &rediscache.SessionCache{Rdb: rediscache.Client()},
		Producer: q,
	}

	log.Printf("[kafka] push-scheduler %s subscribing to %s", env.Cfg.NodeID, queue.TopicPushDispatch)
	if err := q.Subscribe(ctx, []queue.Topic{queue.TopicPushDispatch}, env.Cfg.Kafka.GroupID, s.HandleTask); err != nil {
		log.Fatalf("push-scheduler: subscribe failed: %v", err)
	}

	<-ctx.Done()
}
