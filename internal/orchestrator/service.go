package orchestrator

import (
	"context"
	"time"

	"github.com/flare152/flare-im-core/internal/model"
	"github.com/flare152/flare-im-core/internal/orchestrator/opbuilder"
)

// Service is the Message Orchestrator's caller-facing contract: what
// the Access Gateway, Core Gateway, and Storage Reader depend on.
// *Orchestrator satisfies it directly for in-process embedding;
// orchestrator/client.Client satisfies it over HTTP so the
// orchestrator can also run as its own scaled-out deployment
// (spec.md §2's component table lists it as an independent unit, not
// a library every gateway must embed).
type Service interface {
	SendMessage(ctx context.Context, msg *model.Message) (*model.Message, error)
	Recall(ctx context.Context, tenantID, conversationID, operatorID string, req opbuilder.RecallRequest, sentAt time.Time) (*model.Message, error)
	Edit(ctx context.Context, tenantID, conversationID, operatorID string, req opbuilder.EditRequest) (*model.Message, error)
	Delete(ctx context.Context, tenantID, conversationID, operatorID string, req opbuilder.DeleteRequest) ([]*model.Message, error)
	Read(ctx context.Context, tenantID, conversationID, operatorID string, req opbuilder.ReadRequest) (*model.Message, error)
	Mark(ctx context.Context, tenantID, conversationID, operatorID string, req opbuilder.MarkRequest) (*model.Message, error)
	Reaction(ctx context.Context, tenantID, conversationID, operatorID string, req opbuilder.ReactionRequest) (*model.Message, error)
	Pin(ctx context.Context, tenantID, conversationID, operatorID string, req opbuilder.PinRequest) (*model.Message, error)
}

var _ Service = (*Orchestrator)(nil)
