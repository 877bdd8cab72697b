package push

import (
	"context"
	"encoding/json"

	"github.com/flare152/flare-im-core/internal/errs"
	"github.com/flare152/flare-im-core/internal/logging"
	"github.com/flare152/flare-im-core/internal/model"
	"github.com/flare152/flare-im-core/internal/queue"
	"github.com/flare152/flare-im-core/internal/store/rediscache"
)

// Scheduler consumes TopicPushDispatch (one PushTask per recipient)
// and splits it into one DispatchTask per device, resolved against
// the session registry: a device with a live gateway binding gets an
// online dispatch task, everything else gets offline.
type Scheduler struct {
	Sessions *rediscache.SessionCache
	Producer queue.Producer
}

// HandleTask is the queue.Handler bound to queue.TopicPushDispatch.
func (s *Scheduler) HandleTask(ctx context.Context, ev queue.Event) error {
	var task model.PushTask
	if err := json.Unmarshal(ev.Value, &task); err != nil {
		return errs.WrapMsg(err, "push: unmarshal push task")
	}

	devices, err := s.Sessions.ListDevices(ctx, task.TenantID, task.RecipientUserID)
	if err != nil {
		return errs.WrapMsg(err, "push: list devices")
	}

	if len(devices) == 0 {
		return s.dispatch(ctx, model.DispatchTask{PushTask: task, Kind: model.DispatchOffline})
	}
	for _, d := range devices {
		dt := model.DispatchTask{PushTask: task, Kind: model.DispatchOnline, DeviceID: d.DeviceID, GatewayID: d.GatewayID}
		if err := s.dispatch(ctx, dt); err != nil {
			logging.Warnf("push: dispatch enqueue failed recipient=%s device=%s err=%v", task.RecipientUserID, d.DeviceID, err)
		}
	}
	return nil
}

func (s *Scheduler) dispatch(ctx context.Context, task model.DispatchTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return errs.WrapMsg(err, "push: marshal dispatch task")
	}
	return s.Producer.Publish(ctx, queue.Event{
		Topic: queue.TopicPushExecute,
		Key:   task.TenantID + ":" + task.RecipientUserID,
		Value: data,
	})
}
