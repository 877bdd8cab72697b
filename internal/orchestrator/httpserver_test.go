package orchestrator

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/flare152/flare-im-core/internal/model"
	"github.com/flare152/flare-im-core/internal/orchestrator/opbuilder"
)

func newTestRouter(o *Orchestrator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	(&HTTPServer{Orchestrator: o}).Routes(r)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleSendReturnsPersistedMessage(t *testing.T) {
	o := newTestOrchestrator(&fakeProducer{})
	r := newTestRouter(o)

	rec := postJSON(t, r, "/internal/orchestrator/send", opRequest{
		Message: &model.Message{TenantID: "t1", ConversationID: "c1", SenderID: "u1"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var got model.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	if got.Seq == 0 {
		t.Fatal("expected a nonzero seq to be assigned")
	}
}

func TestHandleSendRejectsMissingMessage(t *testing.T) {
	o := newTestOrchestrator(&fakeProducer{})
	r := newTestRouter(o)

	rec := postJSON(t, r, "/internal/orchestrator/send", opRequest{TenantID: "t1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a missing message body, got %d", rec.Code)
	}
}

func TestHandleDeleteReturnsMessageArray(t *testing.T) {
	o := newTestOrchestrator(&fakeProducer{})
	r := newTestRouter(o)

	del := opbuilder.DeleteRequest{MessageIDs: []string{"a", "b"}, Global: true}
	rec := postJSON(t, r, "/internal/orchestrator/delete", opRequest{
		TenantID: "t1", ConversationID: "c1", OperatorID: "u1", Delete: &del,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var got []model.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
}
