package gateway

import "context"

// PushDeliver is the contract the Push Worker calls into to deliver a
// push task to a device connected on THIS gateway instance
// (spec.md §4.5's online-dispatch path). The worker first resolves
// which gateway a session is bound to (via the Registry/session
// lookup) then RPCs or, in a single-process deployment, calls this
// directly.
type PushDeliver interface {
	// DeliverLocal writes frame to the connection for (tenantID,
	// userID, deviceID) if it is live on this instance. ok is false
	// when the connection isn't here, telling the worker to fall back
	// to offline dispatch.
	DeliverLocal(ctx context.Context, tenantID, userID, deviceID string, frame []byte) (ok bool)
}

// Local is the in-process PushDeliver implementation backed by this
// gateway's own ConnManager.
type Local struct {
	Conns *ConnManager
}

func (l *Local) DeliverLocal(ctx context.Context, tenantID, userID, deviceID string, frame []byte) bool {
	for _, c := range l.Conns.ListUserConns(tenantID, userID) {
		if deviceID != "" && c.DeviceID != deviceID {
			continue
		}
		if l.Conns.Send(c.ConnID, frame) {
			return true
		}
	}
	return false
}
