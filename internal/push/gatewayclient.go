package push

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/flare152/flare-im-core/internal/errs"
	"github.com/flare152/flare-im-core/internal/registry"
)

// GatewayResolver maps a gateway id to a reachable instance, backed by
// internal/registry (the Access Gateway registers itself under
// service name "access-gateway" with its own instance id as GatewayID).
type GatewayResolver interface {
	List(ctx context.Context, service string) ([]registry.Instance, error)
}

// HTTPGatewayDispatcher implements GatewayDispatcher by POSTing to the
// target gateway's internal deliver endpoint (gateway.HandleInternalDeliver),
// grounded on the hooks package's webhook transport (plain net/http,
// JSON body, no protobuf).
type HTTPGatewayDispatcher struct {
	Client   *http.Client
	Resolver GatewayResolver
	Service  string // registry service name the gateway registers under
	Path     string // e.g. "/internal/push/deliver"
}

type deliverRequest struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id"`
	Frame    []byte `json:"frame"`
}

type deliverResponse struct {
	Connected bool `json:"connected"`
}

func (d *HTTPGatewayDispatcher) Deliver(ctx context.Context, gatewayID, tenantID, userID, deviceID string, frame []byte) (bool, error) {
	addr, err := d.resolve(ctx, gatewayID)
	if err != nil {
		return false, err
	}

	body, err := json.Marshal(deliverRequest{TenantID: tenantID, UserID: userID, DeviceID: deviceID, Frame: frame})
	if err != nil {
		return false, errs.WrapMsg(err, "push: marshal deliver request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+addr+d.Path, bytes.NewReader(body))
	if err != nil {
		return false, errs.WrapMsg(err, "push: build deliver request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client().Do(req)
	if err != nil {
		return false, errs.WrapMsg(err, "push: deliver request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return false, errs.New("push: deliver request rejected", "status", resp.StatusCode)
	}
	var out deliverResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, errs.WrapMsg(err, "push: decode deliver response")
	}
	return out.Connected, nil
}

func (d *HTTPGatewayDispatcher) resolve(ctx context.Context, gatewayID string) (string, error) {
	instances, err := d.Resolver.List(ctx, d.Service)
	if err != nil {
		return "", errs.WrapMsg(err, "push: resolve gateway")
	}
	for _, inst := range instances {
		if inst.ID == gatewayID {
			return inst.Address + ":" + strconv.Itoa(inst.Port), nil
		}
	}
	return "", errs.New("push: gateway instance not found", "gateway_id", gatewayID)
}

func (d *HTTPGatewayDispatcher) client() *http.Client {
	if d.Client == nil {
		return http.DefaultClient
	}
	return d.Client
}
