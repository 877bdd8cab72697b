package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/flare152/flare-im-core/internal/hooks"
	"github.com/flare152/flare-im-core/internal/model"
	"github.com/flare152/flare-im-core/internal/orchestrator/opbuilder"
	"github.com/flare152/flare-im-core/internal/queue"
)

type fakeSeq struct {
	mu   sync.Mutex
	next int64
}

func (f *fakeSeq) Malloc(ctx context.Context, tenantID, conversationID string, need int64) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	start := f.next + 1
	f.next += need
	return start, time.Now().UnixMilli(), nil
}

type idemEntry struct {
	serverID string
	seq      int64
}

type fakeIdem struct {
	mu       sync.Mutex
	reserved map[string]idemEntry
}

func newFakeIdem() *fakeIdem { return &fakeIdem{reserved: map[string]idemEntry{}} }

func (f *fakeIdem) Reserve(ctx context.Context, tenantID, senderID, clientMsgID, serverID string, ttl time.Duration) (bool, string, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := tenantID + ":" + senderID + ":" + clientMsgID
	if existing, ok := f.reserved[key]; ok {
		return false, existing.serverID, existing.seq, nil
	}
	f.reserved[key] = idemEntry{serverID: serverID}
	return true, "", 0, nil
}

func (f *fakeIdem) UpdateSeq(ctx context.Context, tenantID, senderID, clientMsgID, serverID string, seq int64, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := tenantID + ":" + senderID + ":" + clientMsgID
	f.reserved[key] = idemEntry{serverID: serverID, seq: seq}
	return nil
}

type fakeTenants struct {
	cfg model.TenantConfig
}

func (f fakeTenants) Get(tenantID string) model.TenantConfig { return f.cfg }

type fakeProducer struct {
	mu     sync.Mutex
	events []queue.Event
}

func (p *fakeProducer) Publish(ctx context.Context, ev queue.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}
func (p *fakeProducer) Close() error { return nil }

func allowAllEngine() *hooks.Engine {
	return hooks.NewEngine(func(cfg model.HookConfig) (hooks.Invoker, error) {
		return func(ctx context.Context, hctx *hooks.Context) (hooks.Result, error) {
			return hooks.Result{Allow: true}, nil
		}, nil
	})
}

func newTestOrchestrator(producer *fakeProducer) *Orchestrator {
	return &Orchestrator{
		Seq:      &fakeSeq{},
		Idem:     newFakeIdem(),
		Tenants:  fakeTenants{cfg: model.DefaultTenantConfig("t1")},
		Hooks:    allowAllEngine(),
		Producer: producer,
	}
}

func TestSendMessageAssignsSeqAndPublishes(t *testing.T) {
	producer := &fakeProducer{}
	o := newTestOrchestrator(producer)

	msg := &model.Message{TenantID: "t1", ConversationID: "c1", SenderID: "u1", Content: []byte("hi")}
	sent, err := o.SendMessage(context.Background(), msg)
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if sent.Seq != 1 {
		t.Fatalf("expected seq 1, got %d", sent.Seq)
	}
	if sent.State != model.MessageStateSent {
		t.Fatalf("expected SENT state, got %v", sent.State)
	}
	if sent.ServerID == "" {
		t.Fatal("expected a server id to be assigned")
	}
	if len(producer.events) != 1 || producer.events[0].Topic != queue.TopicPersistence {
		t.Fatalf("expected one persistence event, got %+v", producer.events)
	}
}

func TestSendMessageIdempotentResendReturnsSameServerID(t *testing.T) {
	producer := &fakeProducer{}
	o := newTestOrchestrator(producer)

	first, err := o.SendMessage(context.Background(), &model.Message{TenantID: "t1", ConversationID: "c1", SenderID: "u1", ClientMsgID: "client-1"})
	if err != nil {
		t.Fatalf("first send failed: %v", err)
	}

	second, err := o.SendMessage(context.Background(), &model.Message{TenantID: "t1", ConversationID: "c1", SenderID: "u1", ClientMsgID: "client-1"})
	if err != nil {
		t.Fatalf("second send failed: %v", err)
	}

	if second.ServerID != first.ServerID {
		t.Fatalf("expected idempotent resend to return the same server id: first=%s second=%s", first.ServerID, second.ServerID)
	}
	if second.Seq != first.Seq {
		t.Fatalf("expected idempotent resend to return the prior seq: first=%d second=%d", first.Seq, second.Seq)
	}
	if len(producer.events) != 1 {
		t.Fatalf("expected the duplicate send to not publish again, got %d events", len(producer.events))
	}
}

func TestSendMessageIdempotencyKeyedOnSenderNotConversation(t *testing.T) {
	producer := &fakeProducer{}
	o := newTestOrchestrator(producer)

	first, err := o.SendMessage(context.Background(), &model.Message{TenantID: "t1", ConversationID: "c1", SenderID: "u1", ClientMsgID: "client-1"})
	if err != nil {
		t.Fatalf("first send failed: %v", err)
	}
	second, err := o.SendMessage(context.Background(), &model.Message{TenantID: "t1", ConversationID: "c1", SenderID: "u2", ClientMsgID: "client-1"})
	if err != nil {
		t.Fatalf("second send failed: %v", err)
	}
	if second.ServerID == first.ServerID {
		t.Fatal("expected different senders reusing the same client_msg_id in the same conversation to not collide")
	}
	if len(producer.events) != 2 {
		t.Fatalf("expected both sends to publish, got %d events", len(producer.events))
	}
}

func TestSendMessageDeniedByPreSendHookNeverConsumesSeq(t *testing.T) {
	producer := &fakeProducer{}
	denyEngine := hooks.NewEngine(func(cfg model.HookConfig) (hooks.Invoker, error) {
		return func(ctx context.Context, hctx *hooks.Context) (hooks.Result, error) {
			return hooks.Result{Allow: false, Reason: "blocked by policy"}, nil
		}, nil
	})
	if err := denyEngine.Reload([]model.HookConfig{{Name: "blocker", HookType: model.HookPreSend}}); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	seq := &fakeSeq{}
	o := &Orchestrator{
		Seq:      seq,
		Idem:     newFakeIdem(),
		Tenants:  fakeTenants{cfg: model.DefaultTenantConfig("t1")},
		Hooks:    denyEngine,
		Producer: producer,
	}

	_, err := o.SendMessage(context.Background(), &model.Message{TenantID: "t1", ConversationID: "c1", SenderID: "u1"})
	if err == nil {
		t.Fatal("expected send to be denied")
	}
	if seq.next != 0 {
		t.Fatalf("expected seq allocator to never be called, next=%d", seq.next)
	}
	if len(producer.events) != 0 {
		t.Fatal("expected no event to be published on denial")
	}
}

func TestRecallWithinWindowSucceeds(t *testing.T) {
	producer := &fakeProducer{}
	cfg := model.DefaultTenantConfig("t1")
	cfg.RecallWindow = time.Hour
	o := &Orchestrator{
		Seq:      &fakeSeq{},
		Idem:     newFakeIdem(),
		Tenants:  fakeTenants{cfg: cfg},
		Hooks:    allowAllEngine(),
		Producer: producer,
	}

	msg, err := o.Recall(context.Background(), "t1", "c1", "u1", opbuilder.RecallRequest{MessageID: "m1"}, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("expected recall inside the window to succeed, got %v", err)
	}
	if msg.OperationType != string(model.OpRecall) {
		t.Fatalf("expected a recall operation message, got %v", msg.OperationType)
	}
}

func TestRecallOutsideWindowFails(t *testing.T) {
	producer := &fakeProducer{}
	cfg := model.DefaultTenantConfig("t1")
	cfg.RecallWindow = time.Minute
	o := &Orchestrator{
		Seq:      &fakeSeq{},
		Idem:     newFakeIdem(),
		Tenants:  fakeTenants{cfg: cfg},
		Hooks:    allowAllEngine(),
		Producer: producer,
	}

	_, err := o.Recall(context.Background(), "t1", "c1", "u1", opbuilder.RecallRequest{MessageID: "m1"}, time.Now().Add(-time.Hour))
	if err == nil {
		t.Fatal("expected recall outside the window to fail")
	}
}

func TestRecallDisabledForTenantWithoutPerCallLimit(t *testing.T) {
	producer := &fakeProducer{}
	cfg := model.DefaultTenantConfig("t1")
	cfg.RecallWindow = 0
	o := &Orchestrator{
		Seq:      &fakeSeq{},
		Idem:     newFakeIdem(),
		Tenants:  fakeTenants{cfg: cfg},
		Hooks:    allowAllEngine(),
		Producer: producer,
	}

	_, err := o.Recall(context.Background(), "t1", "c1", "u1", opbuilder.RecallRequest{MessageID: "m1"}, time.Now())
	if err == nil {
		t.Fatal("expected recall to fail when the tenant has no recall window and no per-call limit was supplied")
	}
}

func TestRecallEnforcesPerCallLimitWhenTenantWindowDisabled(t *testing.T) {
	producer := &fakeProducer{}
	cfg := model.DefaultTenantConfig("t1")
	cfg.RecallWindow = 0
	o := &Orchestrator{
		Seq:      &fakeSeq{},
		Idem:     newFakeIdem(),
		Tenants:  fakeTenants{cfg: cfg},
		Hooks:    allowAllEngine(),
		Producer: producer,
	}

	_, err := o.Recall(context.Background(), "t1", "c1", "u1", opbuilder.RecallRequest{MessageID: "m1", RecallTimeLimitSec: 60}, time.Now().Add(-time.Hour))
	if err == nil {
		t.Fatal("expected a per-call recall limit to be enforced even though the tenant window is disabled")
	}

	_, err = o.Recall(context.Background(), "t1", "c1", "u1", opbuilder.RecallRequest{MessageID: "m1", RecallTimeLimitSec: 60}, time.Now().Add(-time.Second))
	if err != nil {
		t.Fatalf("expected recall inside the per-call limit to succeed, got %v", err)
	}
}

func TestDeleteSendsOneMessagePerID(t *testing.T) {
	producer := &fakeProducer{}
	o := newTestOrchestrator(producer)

	sent, err := o.Delete(context.Background(), "t1", "c1", "u1", opbuilder.DeleteRequest{MessageIDs: []string{"a", "b", "c"}, Global: true})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(sent) != 3 {
		t.Fatalf("expected 3 sent messages, got %d", len(sent))
	}
	if len(producer.events) != 3 {
		t.Fatalf("expected 3 published events, got %d", len(producer.events))
	}
}
