// Package client implements orchestrator.Service over HTTP against a
// registry-discovered Message Orchestrator fleet, the counterpart to
// orchestrator.HTTPServer. Instance selection uses
// registry.SWRR (smooth weighted round robin) so a gateway spreads
// its calls across every healthy orchestrator instance rather than
// pinning to whichever one answered first.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/flare152/flare-im-core/internal/errs"
	"github.com/flare152/flare-im-core/internal/model"
	"github.com/flare152/flare-im-core/internal/orchestrator/opbuilder"
	"github.com/flare152/flare-im-core/internal/registry"
)

type opRequest struct {
	TenantID       string                     `json:"tenant_id"`
	ConversationID string                     `json:"conversation_id"`
	OperatorID     string                     `json:"operator_id"`
	Message        *model.Message             `json:"message,omitempty"`
	Recall         *opbuilder.RecallRequest   `json:"recall,omitempty"`
	Edit           *opbuilder.EditRequest     `json:"edit,omitempty"`
	Delete         *opbuilder.DeleteRequest   `json:"delete,omitempty"`
	Read           *opbuilder.ReadRequest     `json:"read,omitempty"`
	Mark           *opbuilder.MarkRequest     `json:"mark,omitempty"`
	Reaction       *opbuilder.ReactionRequest `json:"reaction,omitempty"`
	Pin            *opbuilder.PinRequest      `json:"pin,omitempty"`
	SentAtUnixMS   int64                      `json:"sent_at_unix_ms,omitempty"`
}

type Client struct {
	Registry registry.Registry
	Service  string // registry service name the orchestrator fleet registers under
	HTTP     *http.Client

	balancer     *registry.SWRR
	lastRefresh  time.Time
	refreshEvery time.Duration
}

func New(reg registry.Registry, service string) *Client {
	return &Client{
		Registry:     reg,
		Service:      service,
		balancer:     registry.NewSWRR(),
		refreshEvery: 5 * time.Second,
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP == nil {
		return http.DefaultClient
	}
	return c.HTTP
}

func (c *Client) pick(ctx context.Context) (registry.Instance, error) {
	if time.Since(c.lastRefresh) > c.refreshEvery {
		insts, err := c.Registry.List(ctx, c.Service)
		if err == nil {
			c.balancer.Update(insts)
			c.lastRefresh = time.Now()
		}
	}
	inst, ok := c.balancer.Next()
	if !ok {
		return registry.Instance{}, errs.New("orchestrator client: no healthy instance", "service", c.Service)
	}
	return inst, nil
}

func (c *Client) call(ctx context.Context, path string, req opRequest, out any) error {
	inst, err := c.pick(ctx)
	if err != nil {
		return err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return errs.WrapMsg(err, "orchestrator client: marshal request")
	}
	addr := inst.Address + ":" + strconv.Itoa(inst.Port)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+addr+path, bytes.NewReader(body))
	if err != nil {
		return errs.WrapMsg(err, "orchestrator client: build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return errs.WrapMsg(err, "orchestrator client: request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return errs.New("orchestrator client: request rejected", "status", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) SendMessage(ctx context.Context, msg *model.Message) (*model.Message, error) {
	var out model.Message
	err := c.call(ctx, "/internal/orchestrator/send", opRequest{Message: msg}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Recall(ctx context.Context, tenantID, conversationID, operatorID string, req opbuilder.RecallRequest, sentAt time.Time) (*model.Message, error) {
	var out model.Message
	err := c.call(ctx, "/internal/orchestrator/recall", opRequest{
		TenantID: tenantID, ConversationID: conversationID, OperatorID: operatorID,
		Recall: &req, SentAtUnixMS: sentAt.UnixMilli(),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Edit(ctx context.Context, tenantID, conversationID, operatorID string, req opbuilder.EditRequest) (*model.Message, error) {
	var out model.Message
	err := c.call(ctx, "/internal/orchestrator/edit", opRequest{
		TenantID: tenantID, ConversationID: conversationID, OperatorID: operatorID, Edit: &req,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Delete(ctx context.Context, tenantID, conversationID, operatorID string, req opbuilder.DeleteRequest) ([]*model.Message, error) {
	var out []*model.Message
	err := c.call(ctx, "/internal/orchestrator/delete", opRequest{
		TenantID: tenantID, ConversationID: conversationID, OperatorID: operatorID, Delete: &req,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Read(ctx context.Context, tenantID, conversationID, operatorID string, req opbuilder.ReadRequest) (*model.Message, error) {
	var out model.Message
	err := c.call(ctx, "/internal/orchestrator/read", opRequest{
		TenantID: tenantID, ConversationID: conversationID, OperatorID: operatorID, Read: &req,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Mark(ctx context.Context, tenantID, conversationID, operatorID string, req opbuilder.MarkRequest) (*model.Message, error) {
	var out model.Message
	err := c.call(ctx, "/internal/orchestrator/mark", opRequest{
		TenantID: tenantID, ConversationID: conversationID, OperatorID: operatorID, Mark: &req,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Reaction(ctx context.Context, tenantID, conversationID, operatorID string, req opbuilder.ReactionRequest) (*model.Message, error) {
	var out model.Message
	err := c.call(ctx, "/internal/orchestrator/reaction", opRequest{
		TenantID: tenantID, ConversationID: conversationID, OperatorID: operatorID, Reaction: &req,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Pin(ctx context.Context, tenantID, conversationID, operatorID string, req opbuilder.PinRequest) (*model.Message, error) {
	var out model.Message
	err := c.call(ctx, "/internal/orchestrator/pin", opRequest{
		TenantID: tenantID, ConversationID: conversationID, OperatorID: operatorID, Pin: &req,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
