package push

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/flare152/flare-im-core/internal/errs"
	"github.com/flare152/flare-im-core/internal/hooks"
	"github.com/flare152/flare-im-core/internal/logging"
	"github.com/flare152/flare-im-core/internal/model"
	"github.com/flare152/flare-im-core/internal/queue"
)

// GatewayDispatcher delivers a frame to a specific online session,
// routed to whichever Access Gateway instance holds it. Implementations
// live outside this package (e.g. an HTTP/gRPC call to the gateway's
// internal port, resolved through internal/registry); in a
// single-process deployment it can wrap gateway.Local directly.
type GatewayDispatcher interface {
	Deliver(ctx context.Context, gatewayID, tenantID, userID, deviceID string, frame []byte) (connected bool, err error)
}

// OfflineVendor sends a push through a third-party channel (APNs,
// FCM, ...) for offline dispatch tasks, i.e. when no session is
// online. An online task that comes back NotConnected is acked with
// that status; the worker does not hand it to the offline vendor.
type OfflineVendor interface {
	Send(ctx context.Context, tenantID, userID, deviceID string, frame []byte) error
}

// RetryPolicy bounds the Worker's own retries; it is deliberately
// small since the offline vendor has its own retry model and the
// worker must not cause duplicate deliveries by retrying too long
// (spec.md §4.5).
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func (p RetryPolicy) norm() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 200 * time.Millisecond
	}
	return p
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	return time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(attempt)))
}

type Worker struct {
	Gateway  GatewayDispatcher
	Offline  OfflineVendor
	Producer queue.Producer
	Retry    RetryPolicy
	Hooks    *hooks.Engine
}

// HandleTask is the queue.Handler bound to queue.TopicPushExecute.
func (w *Worker) HandleTask(ctx context.Context, ev queue.Event) error {
	var task model.DispatchTask
	if err := json.Unmarshal(ev.Value, &task); err != nil {
		return errs.WrapMsg(err, "push: unmarshal dispatch task")
	}
	retry := w.Retry.norm()

	start := time.Now()
	status := w.execute(ctx, task, retry)
	if status == model.DeliveryDelivered && w.Hooks != nil {
		if _, err := w.Hooks.Run(ctx, model.HookDelivery, &hooks.Context{
			TenantID: task.TenantID,
			SenderID: task.RecipientUserID,
		}); err != nil {
			logging.Warnf("push: delivery hook error recipient=%s err=%v", task.RecipientUserID, err)
		}
	}
	ack := model.DeliveryAck{
		TenantID:        task.TenantID,
		MessageServerID: task.MessageServerID,
		RecipientUserID: task.RecipientUserID,
		DeviceID:        task.DeviceID,
		Status:          status,
		DurationMS:      time.Since(start).Milliseconds(),
		Attempt:         task.Attempt,
	}
	return w.recordAck(ctx, ack)
}

func (w *Worker) execute(ctx context.Context, task model.DispatchTask, retry RetryPolicy) model.DeliveryStatus {
	if task.Kind == model.DispatchOffline {
		if w.Offline == nil {
			return model.DeliveryFailed
		}
		if err := w.Offline.Send(ctx, task.TenantID, task.RecipientUserID, task.DeviceID, task.Frame); err != nil {
			logging.Warnf("push: offline send failed recipient=%s err=%v", task.RecipientUserID, err)
			return model.DeliveryFailed
		}
		return model.DeliveryDelivered
	}

	var lastErr error
	for attempt := 0; attempt < retry.MaxAttempts; attempt++ {
		connected, err := w.Gateway.Deliver(ctx, task.GatewayID, task.TenantID, task.RecipientUserID, task.DeviceID, task.Frame)
		if err == nil && connected {
			return model.DeliveryDelivered
		}
		if err == nil && !connected {
			return model.DeliveryNotConnected
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return model.DeliveryFailed
		case <-time.After(retry.backoff(attempt)):
		}
	}
	logging.Warnf("push: online dispatch exhausted retries recipient=%s device=%s err=%v", task.RecipientUserID, task.DeviceID, lastErr)
	return model.DeliveryFailed
}

func (w *Worker) recordAck(ctx context.Context, ack model.DeliveryAck) error {
	data, err := json.Marshal(ack)
	if err != nil {
		return errs.WrapMsg(err, "push: marshal ack")
	}
	return w.Producer.Publish(ctx, queue.Event{
		Topic: queue.TopicAck,
		Key:   ack.TenantID + ":" + ack.RecipientUserID,
		Value: data,
	})
}
