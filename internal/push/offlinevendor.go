package push

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/flare152/flare-im-core/internal/errs"
)

// WebhookOfflineVendor posts to a configurable HTTP endpoint for
// offline push delivery (APNs/FCM/etc. live behind it), the same
// plain net/http JSON transport the Hook Engine's webhook invoker
// uses — no vendor SDK in the example corpus to ground a concrete
// APNs/FCM client on, so the integration point is this generic POST
// instead of a fabricated dependency (see DESIGN.md).
type WebhookOfflineVendor struct {
	Client   *http.Client
	Endpoint string
}

type offlinePushRequest struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id"`
	Frame    []byte `json:"frame"`
}

func (v *WebhookOfflineVendor) client() *http.Client {
	if v.Client == nil {
		return &http.Client{Timeout: 5 * time.Second}
	}
	return v.Client
}

func (v *WebhookOfflineVendor) Send(ctx context.Context, tenantID, userID, deviceID string, frame []byte) error {
	if v.Endpoint == "" {
		return errs.New("push: offline vendor endpoint not configured")
	}
	body, err := json.Marshal(offlinePushRequest{TenantID: tenantID, UserID: userID, DeviceID: deviceID, Frame: frame})
	if err != nil {
		return errs.WrapMsg(err, "push: marshal offline push request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.Endpoint, bytes.NewReader(body))
	if err != nil {
		return errs.WrapMsg(err, "push: build offline push request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client().Do(req)
	if err != nil {
		return errs.WrapMsg(err, "push: offline push request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return errs.New("push: offline push rejected", "status", resp.StatusCode)
	}
	return nil
}
