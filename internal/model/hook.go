package model

// HookPoint is a named extension point in the pipeline (spec.md §4.6).
type HookPoint string

const (
	HookPreSend   HookPoint = "pre_send"
	HookPostSend  HookPoint = "post_send"
	HookDelivery  HookPoint = "delivery"
	HookPreRecall HookPoint = "pre_recall"
	HookPreEdit   HookPoint = "pre_edit"
)

// HookErrorPolicy controls how a hook failure is handled at the call
// site (spec.md §4.6).
type HookErrorPolicy string

const (
	HookFailFast HookErrorPolicy = "fail-fast"
	HookRetry    HookErrorPolicy = "retry"
	HookIgnore   HookErrorPolicy = "ignore"
)

// HookTransport selects the implementation a hook is bound to.
type HookTransport string

const (
	TransportRPC       HookTransport = "rpc"       // out-of-process RPC (NATS request/reply)
	TransportWebhook    HookTransport = "webhook"   // out-of-process HTTPS webhook
	TransportInProcess HookTransport = "in_process" // in-process adapter keyed by name
)

// HookSelector matches a hook against an invocation's context. An
// empty field means "any" per spec.md §4.6.
type HookSelector struct {
	Tenants           []string          `bson:"tenants,omitempty" json:"tenants,omitempty"`
	ConversationTypes []ConversationType `bson:"conversation_types,omitempty" json:"conversation_types,omitempty"`
	MessageTypes      []MessageKind      `bson:"message_types,omitempty" json:"message_types,omitempty"`
	SenderIDs         []string          `bson:"sender_ids,omitempty" json:"sender_ids,omitempty"`
	Tags              map[string]string `bson:"tags,omitempty" json:"tags,omitempty"`
}

// HookConfig is the configuration of a single hook registration
// (spec.md §3/§4.6).
type HookConfig struct {
	TenantID      string          `bson:"tenant_id,omitempty" json:"tenant_id,omitempty"`
	HookType      HookPoint       `bson:"hook_type" json:"hook_type"`
	Name          string          `bson:"name" json:"name"`
	Priority      int             `bson:"priority" json:"priority"`
	TimeoutMS     int             `bson:"timeout_ms" json:"timeout_ms"`
	MaxRetries    int             `bson:"max_retries" json:"max_retries"`
	ErrorPolicy   HookErrorPolicy `bson:"error_policy" json:"error_policy"`
	RequireSuccess bool           `bson:"require_success" json:"require_success"`
	Transport     HookTransport   `bson:"transport" json:"transport"`
	Endpoint      string          `bson:"endpoint,omitempty" json:"endpoint,omitempty"` // RPC subject / webhook URL / adapter name
	SharedSecret  string          `bson:"shared_secret,omitempty" json:"shared_secret,omitempty"`
	Selector      HookSelector    `bson:"selector" json:"selector"`
	InsertSeq     int64           `bson:"insert_seq" json:"insert_seq"` // tie-break on equal priority
}
