package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// internalDeliverRequest is the body the Push Worker's
// HTTPGatewayDispatcher (internal/push) POSTs to a gateway instance
// it resolved as holding a target session.
type internalDeliverRequest struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id"`
	Frame    []byte `json:"frame"`
}

type internalDeliverResponse struct {
	Connected bool `json:"connected"`
}

// HandleInternalDeliver is the gateway's push-worker-facing endpoint,
// bound on an internal-only port/route by cmd/access-gateway. It
// never touches the public websocket path; it only writes to a
// connection this instance already holds.
func (s *Server) HandleInternalDeliver(c *gin.Context) {
	var req internalDeliverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	local := &Local{Conns: s.Conns}
	connected := local.DeliverLocal(c.Request.Context(), req.TenantID, req.UserID, req.DeviceID, req.Frame)
	c.JSON(http.StatusOK, internalDeliverResponse{Connected: connected})
}
