// Package queue defines the Event Queue collaborator of spec.md §3/§5:
// a partitioned, at-least-once log that keeps all events for one
// conversation on a single partition so the Storage Writer can apply
// them in order (invariant I1/I2's linearization requirement).
package queue

import "context"

// Topic names the logical streams spec.md's pipeline moves events
// through.
type Topic string

const (
	// TopicPersistence carries Message Orchestrator output to the
	// Storage Writer: both content messages and operation messages.
	TopicPersistence Topic = "persistence"
	// TopicPush carries Storage Writer output to the Push Proxy, one
	// event per persisted message/operation.
	TopicPush Topic = "push"
	// TopicPushDispatch carries per-recipient PushTasks from the Push
	// Proxy to the Push Scheduler.
	TopicPushDispatch Topic = "push_dispatch"
	// TopicPushExecute carries per-(recipient,device) DispatchTasks
	// from the Push Scheduler to the Push Worker, keyed by recipient so
	// retries for one user's devices land on the same partition.
	TopicPushExecute Topic = "push_execute"
	// TopicAck carries delivery acknowledgements back from the Access
	// Gateway / Push Worker to the Storage Writer's read-cursor path.
	TopicAck Topic = "ack"
	// TopicDeadLetter names the stream for events the writer could not
	// apply. No component in this repository publishes to it.
	TopicDeadLetter Topic = "dead_letter"
)

// Event is the envelope every topic carries. Key determines partition
// placement; for TopicPersistence and TopicPush, Key is always
// tenant_id+conversation_id so ordering is preserved per conversation.
type Event struct {
	Topic     Topic
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int32
	Offset    int64
}

// Producer publishes events. Publish blocks until the broker
// acknowledges the write (spec.md's durability requirement that a
// send is not "accepted" until persisted to the queue).
type Producer interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Handler processes one event. Returning an error leaves the offset
// uncommitted so the event is redelivered; it is not dead-lettered.
type Handler func(ctx context.Context, ev Event) error

// Consumer drives a consumer group against one or more topics.
type Consumer interface {
	Subscribe(ctx context.Context, topics []Topic, groupID string, handler Handler) error
	Close() error
}
