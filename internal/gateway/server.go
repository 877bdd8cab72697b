package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/flare152/flare-im-core/internal/errs"
	"github.com/flare152/flare-im-core/internal/ids"
	"github.com/flare152/flare-im-core/internal/logging"
	"github.com/flare152/flare-im-core/internal/model"
	"github.com/flare152/flare-im-core/internal/orchestrator"
	"github.com/flare152/flare-im-core/internal/security"
	"github.com/flare152/flare-im-core/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the Access Gateway's websocket front door, grounded on
// the teacher's Server/HandleWS (service/chat/ws_server.go), with the
// dispatcher table collapsed into a direct type switch since this
// repo's frame set is small and hand-written rather than
// protobuf-generated.
type Server struct {
	GatewayID    string
	Conns        *ConnManager
	Sessions     *session.Manager
	Orchestrator orchestrator.Service
	JWT          *security.JWTIssuer

	WriteTimeout time.Duration
}

func (s *Server) writeTimeout() time.Duration {
	if s.WriteTimeout <= 0 {
		return 5 * time.Second
	}
	return s.WriteTimeout
}

// HandleWS upgrades the HTTP request and runs the connection's
// read/write loops until the client disconnects or is evicted.
func (s *Server) HandleWS(c *gin.Context) {
	socket, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Infof("gateway: upgrade failed err=%v", err)
		return
	}

	connID := ids.NewUUID()
	conn := s.Conns.AddUnauth(connID, socket)
	logging.Infof("gateway: connection opened conn=%s remote=%v", connID, conn.Remote)

	done := make(chan struct{})
	go s.writeLoop(conn, done)
	s.readLoop(conn)
	close(done)

	s.Conns.Remove(connID)
	if conn.Authorized {
		_ = s.Sessions.Disconnect(context.Background(), model.Session{
			TenantID: conn.TenantID,
			UserID:   conn.UserID,
			DeviceID: conn.DeviceID,
		})
	}
	logging.Infof("gateway: connection closed conn=%s", connID)
}

func (s *Server) writeLoop(conn *Conn, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case data, ok := <-conn.Outbox:
			if !ok {
				return
			}
			_ = conn.Socket.SetWriteDeadline(time.Now().Add(s.writeTimeout()))
			if err := conn.Socket.WriteMessage(websocket.TextMessage, data); err != nil {
				logging.Infof("gateway: write failed conn=%s err=%v", conn.ConnID, err)
				return
			}
		}
	}
}

func (s *Server) readLoop(conn *Conn) {
	for {
		mt, data, err := conn.Socket.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				logging.Infof("gateway: peer closed conn=%s", conn.ConnID)
			} else {
				logging.Infof("gateway: read error conn=%s err=%v", conn.ConnID, err)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		frame, err := parseFrame(data)
		if err != nil {
			logging.Infof("gateway: parse frame failed conn=%s err=%v", conn.ConnID, err)
			continue
		}
		s.dispatch(conn, frame)
	}
}

func (s *Server) dispatch(conn *Conn, f *Frame) {
	switch f.Type {
	case FrameAuth:
		s.handleAuth(conn, f)
	case FramePing:
		if conn.Authorized {
			s.Conns.Heartbeat(conn.ConnID)
			_ = s.Sessions.Heartbeat(context.Background(), conn.TenantID, conn.UserID, conn.DeviceID)
		}
		if out, err := encodeFrame(FramePong, f.RequestID, nil); err == nil {
			s.Conns.Send(conn.ConnID, out)
		}
	case FrameSend:
		s.handleSend(conn, f)
	default:
		s.sendError(conn, f.RequestID, "unsupported_frame", "frame type not handled by this connection")
	}
}

func (s *Server) handleAuth(conn *Conn, f *Frame) {
	var p AuthPayload
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		s.sendError(conn, f.RequestID, "bad_request", "invalid auth payload")
		return
	}
	claims, err := s.JWT.Verify(p.Token)
	if err != nil {
		s.sendError(conn, f.RequestID, "unauthorized", "token verification failed")
		return
	}
	if err := s.Conns.BindUser(conn.ConnID, claims.TenantID, claims.UserID, p.DeviceID, p.Platform); err != nil {
		s.sendError(conn, f.RequestID, "internal", "bind failed")
		return
	}

	evicted, err := s.Sessions.Connect(context.Background(), model.Session{
		TenantID:  claims.TenantID,
		UserID:    claims.UserID,
		DeviceID:  p.DeviceID,
		Platform:  p.Platform,
		GatewayID: s.GatewayID,
	})
	if err != nil {
		logging.Warnf("gateway: session connect failed conn=%s err=%v", conn.ConnID, err)
	}
	for _, ev := range evicted {
		s.kickLocal(claims.TenantID, claims.UserID, ev.DeviceID)
	}

	if out, err := encodeFrame(FrameAck, f.RequestID, nil); err == nil {
		s.Conns.Send(conn.ConnID, out)
	}
}

// kickLocal closes any local connection belonging to an evicted
// device; cross-gateway eviction relies on internal/session's
// presence pub/sub reaching the gateway instance that actually holds
// the connection.
func (s *Server) kickLocal(tenantID, userID, deviceID string) {
	for _, c := range s.Conns.ListUserConns(tenantID, userID) {
		if c.DeviceID == deviceID {
			s.Conns.Remove(c.ConnID)
		}
	}
}

func (s *Server) handleSend(conn *Conn, f *Frame) {
	if !conn.Authorized {
		s.sendError(conn, f.RequestID, "unauthorized", "auth required before send")
		return
	}
	var p SendPayload
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		s.sendError(conn, f.RequestID, "bad_request", "invalid send payload")
		return
	}
	msg := &model.Message{
		TenantID:       conn.TenantID,
		ConversationID: p.ConversationID,
		SenderID:       conn.UserID,
		ClientMsgID:    p.ClientMsgID,
		ContentType:    p.ContentType,
		Content:        p.Content,
		Kind:           model.MessageKindContent,
		Source:         model.SourceUser,
		Tags:           p.Tags,
	}
	sent, err := s.Orchestrator.SendMessage(context.Background(), msg)
	if err != nil {
		s.sendError(conn, f.RequestID, errCode(err), err.Error())
		return
	}
	if out, err := encodeFrame(FrameAck, f.RequestID, sent); err == nil {
		s.Conns.Send(conn.ConnID, out)
	}
}

// errCode extracts the numeric taxonomy code (as a decimal string)
// from a wrapped errs.Error, falling back to "internal" for plain
// errors (e.g. store
// failures that were only wrapped with a message, not a CodeError).
func errCode(err error) string {
	if ce, ok := errs.Unwrap(err).(errs.Error); ok {
		return strconv.Itoa(ce.ECode())
	}
	return "internal"
}

func (s *Server) sendError(conn *Conn, requestID, code, message string) {
	out, err := encodeFrame(FrameError, requestID, ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	s.Conns.Send(conn.ConnID, out)
}
