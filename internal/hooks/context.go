// Package hooks implements the Hook Engine of spec.md §3/§4.6: named
// extension points the Message Orchestrator and Storage Writer call
// into at well-defined points in the pipeline, with ordered chains,
// selector matching, per-hook timeout/retry/error policy, and three
// transports. Grounded on original_source's hook_builder/mod.rs for
// the HookContext shape and chain-resolution order, and on the
// teacher's service/natsx package for the RPC transport.
package hooks

import (
	"github.com/flare152/flare-im-core/internal/model"
)

// Context is passed to every hook invocation. It carries more than
// the bare message so a hook can make a routing or content decision
// without a second round trip into the metadata store (the
// supplemented "rich HookContext" feature from SPEC_FULL.md).
type Context struct {
	TenantID         string
	ConversationID   string
	ConversationType model.ConversationType
	SenderID         string
	Message          *model.Message
	Operation        *OperationEnvelope
	Tags             map[string]string
	RequestID        string

	// Mutable result slots a pre_send/pre_edit/pre_recall hook can
	// populate to influence the pipeline without erroring it out.
	RewrittenContent []byte
	Annotations      map[string]string
}

// OperationEnvelope is the hook-visible view of an operation message
// (spec.md §4.2/§4.3), separate from model.Message's OperationPayload
// so hook authors get typed fields instead of a raw blob.
type OperationEnvelope struct {
	OperationID   string
	Type          model.OperationType
	TargetMsgID   string
	Operator      string
	NoticeText    string
	ShowEditedMark bool
	TimeLimitSec  int64
	Payload       map[string]any
}

// Result is what a hook invocation returns to the engine.
type Result struct {
	Allow       bool
	Reason      string
	Annotations map[string]string
}
