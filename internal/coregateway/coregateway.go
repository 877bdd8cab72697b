// Package coregateway implements the Core Gateway of spec.md §4's
// component table: the outward-facing composite HTTP entry point a
// tenant back-office calls (issue tokens, browse/mutate
// conversations and messages, manage hook configuration) as opposed
// to the Access Gateway's device-facing websocket surface. Grounded
// on the teacher's chatgateway.go (gin.New + gin.Recovery + routed
// handlers) and middleware/route.go's POST/GET(opt) wrapping.
package coregateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flare152/flare-im-core/internal/conversation"
	"github.com/flare152/flare-im-core/internal/middleware"
	"github.com/flare152/flare-im-core/internal/model"
	"github.com/flare152/flare-im-core/internal/orchestrator"
	"github.com/flare152/flare-im-core/internal/orchestrator/opbuilder"
	"github.com/flare152/flare-im-core/internal/reader"
	"github.com/flare152/flare-im-core/internal/security"
	"github.com/flare152/flare-im-core/internal/store/mongostore"
)

type Server struct {
	Orchestrator orchestrator.Service
	Reader       *reader.Reader
	Conversation *conversation.Service
	Hooks        *mongostore.HookConfigStore
	JWT          *security.JWTIssuer
}

// Routes registers the back-office API surface on r. Issue is
// unauthenticated (it's how a caller gets a token in the first
// place); everything else requires a verified bearer token.
func (s *Server) Routes(r gin.IRoutes) {
	middleware.POST(r, s.JWT, "/v1/tokens", s.handleIssueToken, middleware.RouteOpt{IsAuth: false})

	middleware.POST(r, s.JWT, "/v1/messages", s.handleSend, middleware.RouteOpt{IsAuth: true})
	middleware.POST(r, s.JWT, "/v1/messages/:id/recall", s.handleRecall, middleware.RouteOpt{IsAuth: true})
	middleware.POST(r, s.JWT, "/v1/messages/:id/edit", s.handleEdit, middleware.RouteOpt{IsAuth: true})
	middleware.GET(r, s.JWT, "/v1/conversations/:id/messages", s.handleQueryMessages, middleware.RouteOpt{IsAuth: true})
	middleware.GET(r, s.JWT, "/v1/conversations", s.handleListConversations, middleware.RouteOpt{IsAuth: true})
	middleware.POST(r, s.JWT, "/v1/conversations/:id/mute", s.handleMute, middleware.RouteOpt{IsAuth: true})
	middleware.POST(r, s.JWT, "/v1/conversations/:id/pin", s.handlePin, middleware.RouteOpt{IsAuth: true})

	middleware.GET(r, s.JWT, "/v1/tenants/:tenant/hooks", s.handleListHooks, middleware.RouteOpt{IsAuth: true})
	middleware.POST(r, s.JWT, "/v1/tenants/:tenant/hooks", s.handleUpsertHook, middleware.RouteOpt{IsAuth: true})
}

func (s *Server) handleIssueToken(c *gin.Context) {
	var req struct {
		TenantID string `json:"tenant_id" binding:"required"`
		UserID   string `json:"user_id" binding:"required"`
		DeviceID string `json:"device_id"`
		Platform string `json:"platform"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, err := s.JWT.Issue(req.TenantID, req.UserID, req.DeviceID, req.Platform)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) handleSend(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	var req struct {
		ConversationID string            `json:"conversation_id" binding:"required"`
		ClientMsgID    string            `json:"client_msg_id"`
		ContentType    string            `json:"content_type"`
		Content        []byte            `json:"content"`
		Tags           map[string]string `json:"tags,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg := &model.Message{
		TenantID:       claims.TenantID,
		ConversationID: req.ConversationID,
		SenderID:       claims.UserID,
		ClientMsgID:    req.ClientMsgID,
		ContentType:    req.ContentType,
		Content:        req.Content,
		Kind:           model.MessageKindContent,
		Source:         model.SourceUser,
		Tags:           req.Tags,
	}
	sent, err := s.Orchestrator.SendMessage(c.Request.Context(), msg)
	respond(c, sent, err)
}

func (s *Server) handleRecall(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	var req struct {
		ConversationID string `json:"conversation_id" binding:"required"`
		Reason         string `json:"reason"`
		SentAtUnixMS   int64  `json:"sent_at_unix_ms" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sentAt := time.UnixMilli(req.SentAtUnixMS)
	msg, err := s.Orchestrator.Recall(c.Request.Context(), claims.TenantID, req.ConversationID, claims.UserID,
		opbuilder.RecallRequest{MessageID: c.Param("id"), Reason: req.Reason}, sentAt)
	respond(c, msg, err)
}

func (s *Server) handleEdit(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	var req struct {
		ConversationID string `json:"conversation_id" binding:"required"`
		NewContent     []byte `json:"new_content"`
		EditVersion    int64  `json:"edit_version"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg, err := s.Orchestrator.Edit(c.Request.Context(), claims.TenantID, req.ConversationID, claims.UserID, opbuilder.EditRequest{
		MessageID:      c.Param("id"),
		NewContent:     req.NewContent,
		EditVersion:    req.EditVersion,
		ShowEditedMark: true,
	})
	respond(c, msg, err)
}

func (s *Server) handleQueryMessages(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	afterSeq := parseInt64Query(c, "after_seq", 0)
	limit := parseInt64Query(c, "limit", 50)
	msgs, err := s.Reader.QueryMessages(c.Request.Context(), claims.TenantID, c.Param("id"), claims.UserID, afterSeq, limit)
	respond(c, msgs, err)
}

func (s *Server) handleListConversations(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	limit := parseInt64Query(c, "limit", 100)
	views, err := s.Conversation.ListConversations(c.Request.Context(), claims.TenantID, claims.UserID, limit)
	respond(c, views, err)
}

func (s *Server) handleMute(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	var req struct {
		UntilUnixMS int64 `json:"until_unix_ms"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := s.Conversation.SetConversationMute(c.Request.Context(), claims.TenantID, c.Param("id"), claims.UserID, req.UntilUnixMS)
	respond(c, gin.H{"ok": true}, err)
}

func (s *Server) handlePin(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	var req struct {
		Pinned bool `json:"pinned"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := s.Conversation.SetPinnedConversation(c.Request.Context(), claims.TenantID, c.Param("id"), claims.UserID, req.Pinned)
	respond(c, gin.H{"ok": true}, err)
}

func (s *Server) handleListHooks(c *gin.Context) {
	hooks, err := s.Hooks.ListHookConfigs(c.Request.Context(), c.Param("tenant"))
	respond(c, hooks, err)
}

func (s *Server) handleUpsertHook(c *gin.Context) {
	var cfg model.HookConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg.TenantID = c.Param("tenant")
	err := s.Hooks.Upsert(c.Request.Context(), cfg)
	respond(c, gin.H{"ok": true}, err)
}

func respond(c *gin.Context, v any, err error) {
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, v)
}

func parseInt64Query(c *gin.Context, key string, def int64) int64 {
	v := c.Query(key)
	if v == "" {
		return def
	}
	out, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return out
}
