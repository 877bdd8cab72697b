package orchestrator

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flare152/flare-im-core/internal/model"
	"github.com/flare152/flare-im-core/internal/orchestrator/opbuilder"
)

// HTTPServer exposes an Orchestrator over the internal-only JSON API
// orchestrator/client.Client speaks, so a gateway can call a
// separately-scaled orchestrator fleet instead of embedding one.
// Grounded on the same plain net/http+JSON transport as the Push
// Worker's cross-gateway dispatcher and the Hook Engine's webhook
// invoker (see DESIGN.md's note on the missing gen/message package).
type HTTPServer struct {
	Orchestrator *Orchestrator
}

type opRequest struct {
	TenantID       string                  `json:"tenant_id"`
	ConversationID string                  `json:"conversation_id"`
	OperatorID     string                  `json:"operator_id"`
	Message        *model.Message          `json:"message,omitempty"`
	Recall         *opbuilder.RecallRequest `json:"recall,omitempty"`
	Edit           *opbuilder.EditRequest   `json:"edit,omitempty"`
	Delete         *opbuilder.DeleteRequest `json:"delete,omitempty"`
	Read           *opbuilder.ReadRequest   `json:"read,omitempty"`
	Mark           *opbuilder.MarkRequest   `json:"mark,omitempty"`
	Reaction       *opbuilder.ReactionRequest `json:"reaction,omitempty"`
	Pin            *opbuilder.PinRequest    `json:"pin,omitempty"`
	SentAtUnixMS   int64                   `json:"sent_at_unix_ms,omitempty"`
}

// Routes registers the internal RPC surface on r. These routes are
// never exposed on a public listener; only bootstrap-wired peer
// components (Access Gateway, Core Gateway) dial them.
func (h *HTTPServer) Routes(r gin.IRoutes) {
	r.POST("/internal/orchestrator/send", h.handleSend)
	r.POST("/internal/orchestrator/recall", h.handleRecall)
	r.POST("/internal/orchestrator/edit", h.handleEdit)
	r.POST("/internal/orchestrator/delete", h.handleDelete)
	r.POST("/internal/orchestrator/read", h.handleRead)
	r.POST("/internal/orchestrator/mark", h.handleMark)
	r.POST("/internal/orchestrator/reaction", h.handleReaction)
	r.POST("/internal/orchestrator/pin", h.handlePin)
}

func (h *HTTPServer) handleSend(c *gin.Context) {
	var req opRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid send request"})
		return
	}
	msg, err := h.Orchestrator.SendMessage(c.Request.Context(), req.Message)
	respondOp(c, msg, err)
}

func (h *HTTPServer) handleRecall(c *gin.Context) {
	var req opRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Recall == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recall request"})
		return
	}
	sentAt := time.UnixMilli(req.SentAtUnixMS)
	msg, err := h.Orchestrator.Recall(c.Request.Context(), req.TenantID, req.ConversationID, req.OperatorID, *req.Recall, sentAt)
	respondOp(c, msg, err)
}

func (h *HTTPServer) handleEdit(c *gin.Context) {
	var req opRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Edit == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid edit request"})
		return
	}
	msg, err := h.Orchestrator.Edit(c.Request.Context(), req.TenantID, req.ConversationID, req.OperatorID, *req.Edit)
	respondOp(c, msg, err)
}

func (h *HTTPServer) handleDelete(c *gin.Context) {
	var req opRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Delete == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid delete request"})
		return
	}
	msgs, err := h.Orchestrator.Delete(c.Request.Context(), req.TenantID, req.ConversationID, req.OperatorID, *req.Delete)
	respondOp(c, msgs, err)
}

func (h *HTTPServer) handleRead(c *gin.Context) {
	var req opRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Read == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid read request"})
		return
	}
	msg, err := h.Orchestrator.Read(c.Request.Context(), req.TenantID, req.ConversationID, req.OperatorID, *req.Read)
	respondOp(c, msg, err)
}

func (h *HTTPServer) handleMark(c *gin.Context) {
	var req opRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Mark == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mark request"})
		return
	}
	msg, err := h.Orchestrator.Mark(c.Request.Context(), req.TenantID, req.ConversationID, req.OperatorID, *req.Mark)
	respondOp(c, msg, err)
}

func (h *HTTPServer) handleReaction(c *gin.Context) {
	var req opRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Reaction == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reaction request"})
		return
	}
	msg, err := h.Orchestrator.Reaction(c.Request.Context(), req.TenantID, req.ConversationID, req.OperatorID, *req.Reaction)
	respondOp(c, msg, err)
}

func (h *HTTPServer) handlePin(c *gin.Context) {
	var req opRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Pin == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pin request"})
		return
	}
	msg, err := h.Orchestrator.Pin(c.Request.Context(), req.TenantID, req.ConversationID, req.OperatorID, *req.Pin)
	respondOp(c, msg, err)
}

func respondOp(c *gin.Context, v any, err error) {
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, v)
}
