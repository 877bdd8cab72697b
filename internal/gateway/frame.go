// Package gateway implements the Access Gateway of spec.md §3/§4.1:
// websocket termination, auth handshake, frame routing, per-connection
// backpressure, and the PushDeliver contract the push worker calls
// into for online delivery. Grounded on the teacher's
// service/chat/ws_server.go (HandleWS's upgrade-then-read-loop shape)
// and service/chat/conn_manager.go (ConnManager), translated off the
// missing gen/message protobuf frame type onto a hand-written
// JSON frame envelope (see DESIGN.md).
package gateway

import "encoding/json"

// FrameType enumerates the wire frame kinds a connection can send or
// receive, mirroring the teacher's pb.MessageFrameData_Type values.
type FrameType string

const (
	FrameAuth  FrameType = "AUTH"
	FramePing  FrameType = "PING"
	FramePong  FrameType = "PONG"
	FrameSend  FrameType = "SEND"
	FrameAck   FrameType = "ACK"
	FramePush  FrameType = "PUSH"
	FrameOp    FrameType = "OP"
	FrameError FrameType = "ERROR"
)

// Frame is the envelope every websocket message carries.
type Frame struct {
	Type      FrameType       `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// AuthPayload is FrameAuth's payload: the JWT issued by the Core
// Gateway / an auth service, verified with internal/security.
type AuthPayload struct {
	Token    string `json:"token"`
	DeviceID string `json:"device_id"`
	Platform string `json:"platform"`
}

// SendPayload is FrameSend's payload: a content message the client is
// submitting, in the shape orchestrator.SendMessage expects.
type SendPayload struct {
	ConversationID string            `json:"conversation_id"`
	ClientMsgID    string            `json:"client_msg_id"`
	ContentType    string            `json:"content_type"`
	Content        []byte            `json:"content"`
	Tags           map[string]string `json:"tags,omitempty"`
}

// ErrorPayload is FrameError's payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func encodeFrame(t FrameType, requestID string, v any) ([]byte, error) {
	var payload json.RawMessage
	if v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		payload = data
	}
	return json.Marshal(Frame{Type: t, RequestID: requestID, Payload: payload})
}

func parseFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
