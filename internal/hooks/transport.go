package hooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/flare152/flare-im-core/internal/errs"
	"github.com/flare152/flare-im-core/internal/model"
)

// wireRequest/wireResponse are the JSON envelopes both out-of-process
// transports (RPC and webhook) exchange. Kept as hand-written structs
// rather than protobuf-generated types: see DESIGN.md's note on the
// missing gen/ packages.
type wireRequest struct {
	HookName       string            `json:"hook_name"`
	TenantID       string            `json:"tenant_id"`
	ConversationID string            `json:"conversation_id"`
	SenderID       string            `json:"sender_id"`
	Message        *model.Message    `json:"message,omitempty"`
	Operation      *OperationEnvelope `json:"operation,omitempty"`
	Tags           map[string]string `json:"tags,omitempty"`
	RequestID      string            `json:"request_id"`
}

type wireResponse struct {
	Allow       bool              `json:"allow"`
	Reason      string            `json:"reason,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

func toWireRequest(cfg model.HookConfig, hctx *Context) wireRequest {
	return wireRequest{
		HookName:       cfg.Name,
		TenantID:       hctx.TenantID,
		ConversationID: hctx.ConversationID,
		SenderID:       hctx.SenderID,
		Message:        hctx.Message,
		Operation:      hctx.Operation,
		Tags:           hctx.Tags,
		RequestID:      hctx.RequestID,
	}
}

// NewRPCInvoker builds an Invoker that calls out over a NATS
// request/reply subject, the out-of-process transport of spec.md
// §4.6, grounded on the teacher's service/natsx request pattern.
func NewRPCInvoker(nc *nats.Conn, cfg model.HookConfig) (Invoker, error) {
	if cfg.Endpoint == "" {
		return nil, errs.New("hooks: rpc hook missing subject", "hook", cfg.Name)
	}
	return func(ctx context.Context, hctx *Context) (Result, error) {
		payload, err := json.Marshal(toWireRequest(cfg, hctx))
		if err != nil {
			return Result{}, err
		}
		msg := nats.NewMsg(cfg.Endpoint)
		msg.Data = payload
		if cfg.SharedSecret != "" {
			msg.Header = nats.Header{}
			msg.Header.Add("X-Signature", sign(cfg.SharedSecret, payload))
		}
		reply, err := nc.RequestMsgWithContext(ctx, msg)
		if err != nil {
			return Result{}, err
		}
		var resp wireResponse
		if err := json.Unmarshal(reply.Data, &resp); err != nil {
			return Result{}, err
		}
		return Result{Allow: resp.Allow, Reason: resp.Reason, Annotations: resp.Annotations}, nil
	}, nil
}

// NewWebhookInvoker posts to an HTTPS endpoint, the other
// out-of-process transport, with an HMAC signature header for the
// receiver to authenticate the call.
func NewWebhookInvoker(client *http.Client, cfg model.HookConfig) (Invoker, error) {
	if cfg.Endpoint == "" {
		return nil, errs.New("hooks: webhook missing endpoint", "hook", cfg.Name)
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return func(ctx context.Context, hctx *Context) (Result, error) {
		payload, err := json.Marshal(toWireRequest(cfg, hctx))
		if err != nil {
			return Result{}, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return Result{}, err
		}
		req.Header.Set("Content-Type", "application/json")
		if cfg.SharedSecret != "" {
			req.Header.Set("X-Signature", sign(cfg.SharedSecret, payload))
		}
		resp, err := client.Do(req)
		if err != nil {
			return Result{}, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return Result{}, fmt.Errorf("hooks: webhook %s returned status %d", cfg.Name, resp.StatusCode)
		}
		var out wireResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return Result{}, err
		}
		return Result{Allow: out.Allow, Reason: out.Reason, Annotations: out.Annotations}, nil
	}, nil
}

// InProcessAdapter is a hook implementation compiled into this
// binary, registered by name (spec.md §4.6's third transport).
type InProcessAdapter func(ctx context.Context, hctx *Context) (Result, error)

// AdapterRegistry looks up in-process adapters by the name a
// HookConfig.Endpoint carries.
type AdapterRegistry struct {
	adapters map[string]InProcessAdapter
}

func NewAdapterRegistry() *AdapterRegistry {
	return &AdapterRegistry{adapters: map[string]InProcessAdapter{}}
}

func (r *AdapterRegistry) Register(name string, adapter InProcessAdapter) {
	r.adapters[name] = adapter
}

func NewInProcessInvoker(registry *AdapterRegistry, cfg model.HookConfig) (Invoker, error) {
	adapter, ok := registry.adapters[cfg.Endpoint]
	if !ok {
		return nil, errs.New("hooks: no in-process adapter registered", "name", cfg.Endpoint)
	}
	return Invoker(adapter), nil
}

// BuildInvoker dispatches to the transport-specific constructor named
// by cfg.Transport; passed to hooks.NewEngine as its build function.
func BuildInvoker(nc *nats.Conn, httpClient *http.Client, adapters *AdapterRegistry) func(model.HookConfig) (Invoker, error) {
	return func(cfg model.HookConfig) (Invoker, error) {
		switch cfg.Transport {
		case model.TransportRPC:
			return NewRPCInvoker(nc, cfg)
		case model.TransportWebhook:
			return NewWebhookInvoker(httpClient, cfg)
		case model.TransportInProcess:
			return NewInProcessInvoker(adapters, cfg)
		default:
			return nil, errs.New("hooks: unknown transport", "transport", cfg.Transport)
		}
	}
}

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
