package model

// PushTask is what the Push Proxy emits per recipient and the Push
// Scheduler splits into one per (recipient, device) — spec.md §4.5.
type PushTask struct {
	TenantID        string `json:"tenant_id"`
	ConversationID  string `json:"conversation_id"`
	MessageServerID string `json:"message_server_id"`
	RecipientUserID string `json:"recipient_user_id"`
	Frame           []byte `json:"frame"`
}

// DispatchKind distinguishes the two delivery paths the scheduler can
// route a per-device task to.
type DispatchKind int32

const (
	DispatchOnline DispatchKind = iota
	DispatchOffline
)

// DispatchTask is the per-device unit of work the worker executes.
type DispatchTask struct {
	PushTask
	Kind      DispatchKind `json:"kind"`
	DeviceID  string       `json:"device_id,omitempty"`
	GatewayID string       `json:"gateway_id,omitempty"`
	Attempt   int          `json:"attempt"`
}

// DeliveryStatus is the outcome the worker records per dispatch task.
type DeliveryStatus int32

const (
	DeliveryDelivered DeliveryStatus = iota
	DeliveryFailed
	DeliveryNotConnected
)

func (s DeliveryStatus) String() string {
	switch s {
	case DeliveryDelivered:
		return "DELIVERED"
	case DeliveryFailed:
		return "FAILED"
	case DeliveryNotConnected:
		return "NOT_CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// DeliveryAck is published on queue.TopicAck after every dispatch
// attempt, carrying the duration metric spec.md §4.5 requires.
type DeliveryAck struct {
	TenantID        string         `json:"tenant_id"`
	MessageServerID string         `json:"message_server_id"`
	RecipientUserID string         `json:"recipient_user_id"`
	DeviceID        string         `json:"device_id,omitempty"`
	Status          DeliveryStatus `json:"status"`
	DurationMS      int64          `json:"duration_ms"`
	Attempt         int            `json:"attempt"`
}
