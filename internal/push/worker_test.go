package push

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/flare152/flare-im-core/internal/model"
	"github.com/flare152/flare-im-core/internal/queue"
)

type fakeGateway struct {
	connected bool
	err       error
	calls     int
}

func (g *fakeGateway) Deliver(ctx context.Context, gatewayID, tenantID, userID, deviceID string, frame []byte) (bool, error) {
	g.calls++
	return g.connected, g.err
}

type fakeOffline struct {
	called bool
	err    error
}

func (o *fakeOffline) Send(ctx context.Context, tenantID, userID, deviceID string, frame []byte) error {
	o.called = true
	return o.err
}

type fakePushProducer struct {
	mu     sync.Mutex
	events []queue.Event
}

func (p *fakePushProducer) Publish(ctx context.Context, ev queue.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}
func (p *fakePushProducer) Close() error { return nil }

func taskEvent(t *testing.T, task model.DispatchTask) queue.Event {
	data, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task failed: %v", err)
	}
	return queue.Event{Topic: queue.TopicPushExecute, Value: data}
}

func TestHandleTaskOnlineDeliveredRecordsAck(t *testing.T) {
	gw := &fakeGateway{connected: true}
	producer := &fakePushProducer{}
	w := &Worker{Gateway: gw, Offline: &fakeOffline{}, Producer: producer, Retry: RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}}

	task := model.DispatchTask{PushTask: model.PushTask{TenantID: "t1", RecipientUserID: "u1"}, Kind: model.DispatchOnline, DeviceID: "d1", GatewayID: "gw1"}
	if err := w.HandleTask(context.Background(), taskEvent(t, task)); err != nil {
		t.Fatalf("HandleTask failed: %v", err)
	}
	if gw.calls != 1 {
		t.Fatalf("expected exactly one gateway call, got %d", gw.calls)
	}
	if len(producer.events) != 1 {
		t.Fatalf("expected one ack event, got %d", len(producer.events))
	}
	var ack model.DeliveryAck
	if err := json.Unmarshal(producer.events[0].Value, &ack); err != nil {
		t.Fatalf("ack decode failed: %v", err)
	}
	if ack.Status != model.DeliveryDelivered {
		t.Fatalf("expected delivered status, got %v", ack.Status)
	}
}

func TestHandleTaskOnlineNotConnectedNoRetry(t *testing.T) {
	gw := &fakeGateway{connected: false}
	producer := &fakePushProducer{}
	w := &Worker{Gateway: gw, Offline: &fakeOffline{}, Producer: producer, Retry: RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond}}

	task := model.DispatchTask{PushTask: model.PushTask{TenantID: "t1", RecipientUserID: "u1"}, Kind: model.DispatchOnline, DeviceID: "d1"}
	if err := w.HandleTask(context.Background(), taskEvent(t, task)); err != nil {
		t.Fatalf("HandleTask failed: %v", err)
	}
	if gw.calls != 1 {
		t.Fatalf("expected NotConnected to short-circuit without retry, got %d calls", gw.calls)
	}
	var ack model.DeliveryAck
	_ = json.Unmarshal(producer.events[0].Value, &ack)
	if ack.Status != model.DeliveryNotConnected {
		t.Fatalf("expected not-connected status, got %v", ack.Status)
	}
}

func TestHandleTaskOnlineErrorExhaustsRetriesThenFails(t *testing.T) {
	gw := &fakeGateway{err: errBoom}
	producer := &fakePushProducer{}
	w := &Worker{Gateway: gw, Offline: &fakeOffline{}, Producer: producer, Retry: RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}}

	task := model.DispatchTask{PushTask: model.PushTask{TenantID: "t1", RecipientUserID: "u1"}, Kind: model.DispatchOnline, DeviceID: "d1"}
	if err := w.HandleTask(context.Background(), taskEvent(t, task)); err != nil {
		t.Fatalf("HandleTask failed: %v", err)
	}
	if gw.calls != 3 {
		t.Fatalf("expected MaxAttempts calls, got %d", gw.calls)
	}
	var ack model.DeliveryAck
	_ = json.Unmarshal(producer.events[0].Value, &ack)
	if ack.Status != model.DeliveryFailed {
		t.Fatalf("expected failed status after exhausting retries, got %v", ack.Status)
	}
}

func TestHandleTaskOfflineUsesOfflineVendor(t *testing.T) {
	gw := &fakeGateway{connected: true}
	offline := &fakeOffline{}
	producer := &fakePushProducer{}
	w := &Worker{Gateway: gw, Offline: offline, Producer: producer}

	task := model.DispatchTask{PushTask: model.PushTask{TenantID: "t1", RecipientUserID: "u1"}, Kind: model.DispatchOffline, DeviceID: "d1"}
	if err := w.HandleTask(context.Background(), taskEvent(t, task)); err != nil {
		t.Fatalf("HandleTask failed: %v", err)
	}
	if !offline.called {
		t.Fatal("expected offline vendor to be invoked")
	}
	if gw.calls != 0 {
		t.Fatal("expected the online gateway to never be called for an offline task")
	}
}

func TestHandleTaskOfflineWithNilVendorFails(t *testing.T) {
	producer := &fakePushProducer{}
	w := &Worker{Gateway: &fakeGateway{}, Offline: nil, Producer: producer}

	task := model.DispatchTask{PushTask: model.PushTask{TenantID: "t1", RecipientUserID: "u1"}, Kind: model.DispatchOffline}
	if err := w.HandleTask(context.Background(), taskEvent(t, task)); err != nil {
		t.Fatalf("HandleTask should not itself error, got %v", err)
	}
	var ack model.DeliveryAck
	_ = json.Unmarshal(producer.events[0].Value, &ack)
	if ack.Status != model.DeliveryFailed {
		t.Fatalf("expected failed status with no offline vendor configured, got %v", ack.Status)
	}
}

func TestRetryPolicyNormDefaults(t *testing.T) {
	p := RetryPolicy{}.norm()
	if p.MaxAttempts != 3 {
		t.Fatalf("expected default max attempts 3, got %d", p.MaxAttempts)
	}
	if p.BaseDelay != 200*time.Millisecond {
		t.Fatalf("expected default base delay 200ms, got %v", p.BaseDelay)
	}
}

var errBoom = &boomError{}

type boomError struct{}

func (*boomError) Error() string { return "boom" }
