// Package kafkaqueue implements internal/queue on Shopify/sarama,
// ported from the teacher's service/kafka package: a hash partitioner
// keyed on conversation id for ordering, a sync producer for the
// durability guarantee Publish promises, and a consumer-group handler
// dispatching to a single registered callback per subscribe call.
package kafkaqueue

import (
	"context"
	"strings"
	"time"

	"github.com/Shopify/sarama"

	"github.com/flare152/flare-im-core/internal/logging"
	"github.com/flare152/flare-im-core/internal/queue"
)

type Config struct {
	Brokers      []string
	Version      string // e.g. "2.1.0", empty uses sarama's default
	Retries      int
	Compression  string // none/snappy/lz4/zstd
}

func buildConfig(cfg Config) *sarama.Config {
	c := sarama.NewConfig()
	if cfg.Version != "" {
		if v, err := sarama.ParseKafkaVersion(cfg.Version); err == nil {
			c.Version = v
		}
	}
	c.Producer.Return.Successes = true
	c.Producer.Return.Errors = true
	c.Producer.RequiredAcks = sarama.WaitForAll
	retries := cfg.Retries
	if retries <= 0 {
		retries = 5
	}
	c.Producer.Retry.Max = retries
	// Hash partitioner on the message key keeps every event for one
	// conversation on the same partition, so the storage writer's
	// per-partition consumer sees them in send order.
	c.Producer.Partitioner = sarama.NewHashPartitioner

	switch strings.ToLower(cfg.Compression) {
	case "snappy":
		c.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		c.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		c.Producer.Compression = sarama.CompressionZSTD
	default:
		c.Producer.Compression = sarama.CompressionNone
	}

	c.Consumer.Offsets.Initial = sarama.OffsetNewest
	c.Consumer.Return.Errors = true

	c.Net.DialTimeout = 10 * time.Second
	c.Net.ReadTimeout = 30 * time.Second
	c.Net.WriteTimeout = 30 * time.Second
	return c
}

type Queue struct {
	client   sarama.Client
	producer sarama.SyncProducer
	cfg      Config
}

func New(cfg Config) (*Queue, error) {
	sc := buildConfig(cfg)
	client, err := sarama.NewClient(cfg.Brokers, sc)
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		client.Close()
		return nil, err
	}
	return &Queue{client: client, producer: producer, cfg: cfg}, nil
}

func (q *Queue) Publish(ctx context.Context, ev queue.Event) error {
	msg := &sarama.ProducerMessage{
		Topic: string(ev.Topic),
		Key:   sarama.StringEncoder(ev.Key),
		Value: sarama.ByteEncoder(ev.Value),
	}
	for k, v := range ev.Headers {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	partition, offset, err := q.producer.SendMessage(msg)
	if err != nil {
		return err
	}
	ev.Partition, ev.Offset = partition, offset
	return nil
}

func (q *Queue) Close() error {
	_ = q.producer.Close()
	return q.client.Close()
}

// groupHandler adapts queue.Handler to sarama.ConsumerGroupHandler,
// committing the offset only after the handler returns nil so a
// crash mid-processing redelivers rather than silently skips.
type groupHandler struct {
	handler queue.Handler
	topics  map[string]queue.Topic
	ctx     context.Context
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		headers := make(map[string]string, len(msg.Headers))
		for _, hd := range msg.Headers {
			headers[string(hd.Key)] = string(hd.Value)
		}
		ev := queue.Event{
			Topic:     h.topics[msg.Topic],
			Key:       string(msg.Key),
			Value:     msg.Value,
			Headers:   headers,
			Partition: msg.Partition,
			Offset:    msg.Offset,
		}
		if err := h.handler(h.ctx, ev); err != nil {
			logging.Errorf("kafkaqueue: handler error topic=%s partition=%d offset=%d err=%v", msg.Topic, msg.Partition, msg.Offset, err)
			return err
		}
		session.MarkMessage(msg, "")
	}
	return nil
}

func (q *Queue) Subscribe(ctx context.Context, topics []queue.Topic, groupID string, handler queue.Handler) error {
	sc := buildConfig(q.cfg)
	group, err := sarama.NewConsumerGroupFromClient(groupID, q.client)
	if err != nil {
		_ = sc
		return err
	}
	names := make([]string, 0, len(topics))
	topicMap := make(map[string]queue.Topic, len(topics))
	for _, t := range topics {
		names = append(names, string(t))
		topicMap[string(t)] = t
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = group.Close()
				return
			default:
			}
			h := &groupHandler{handler: handler, topics: topicMap, ctx: ctx}
			if err := group.Consume(ctx, names, h); err != nil {
				logging.Errorf("kafkaqueue: consume error: %v", err)
				time.Sleep(time.Second)
			}
		}
	}()
	return nil
}
