package reader

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// HTTPServer exposes Reader over HTTP for callers that don't embed it
// directly (tooling, analytics, the storage-reader binary's own
// horizontally-scaled deployment), grounded on the same
// gin.IRoutes-registration shape coregateway uses.
type HTTPServer struct {
	Reader *Reader
}

func (h *HTTPServer) Routes(r gin.IRoutes) {
	r.GET("/v1/tenants/:tenant/conversations/:conv/messages", h.handleQuery)
	r.GET("/v1/tenants/:tenant/messages/:id", h.handleGet)
}

func (h *HTTPServer) handleQuery(c *gin.Context) {
	tenantID := c.Param("tenant")
	conversationID := c.Param("conv")
	userID := c.Query("user_id")
	afterSeq, _ := strconv.ParseInt(c.Query("after_seq"), 10, 64)
	limit, err := strconv.ParseInt(c.Query("limit"), 10, 64)
	if err != nil || limit <= 0 {
		limit = 50
	}
	msgs, err := h.Reader.QueryMessages(c.Request.Context(), tenantID, conversationID, userID, afterSeq, limit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *HTTPServer) handleGet(c *gin.Context) {
	tenantID := c.Param("tenant")
	userID := c.Query("user_id")
	msg, err := h.Reader.GetMessage(c.Request.Context(), tenantID, c.Param("id"), userID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, msg)
}
