package client

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/flare152/flare-im-core/internal/model"
	"github.com/flare152/flare-im-core/internal/orchestrator/opbuilder"
	"github.com/flare152/flare-im-core/internal/registry"
)

type fakeRegistry struct {
	insts []registry.Instance
}

func (f *fakeRegistry) Register(ctx context.Context, inst registry.Instance, opt registry.RegisterOptions) error {
	return nil
}
func (f *fakeRegistry) Deregister(ctx context.Context, service, id string) error { return nil }
func (f *fakeRegistry) List(ctx context.Context, service string) ([]registry.Instance, error) {
	return f.insts, nil
}
func (f *fakeRegistry) Watch(ctx context.Context, service string) (registry.Watcher, error) {
	return nil, nil
}
func (f *fakeRegistry) UpdateTTL(checkID, note, status string) error { return nil }
func (f *fakeRegistry) Close() error                                 { return nil }

func registryWithServer(t *testing.T, srv *httptest.Server) *fakeRegistry {
	t.Helper()
	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("split host port failed: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port failed: %v", err)
	}
	return &fakeRegistry{insts: []registry.Instance{{Service: "orchestrator", ID: "o1", Address: host, Port: port}}}
}

func TestSendMessageRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/internal/orchestrator/send" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var got opRequest
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request failed: %v", err)
		}
		if got.Message == nil || got.Message.ConversationID != "c1" {
			t.Fatalf("unexpected request body: %+v", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(model.Message{ConversationID: "c1", Seq: 42})
	}))
	defer srv.Close()

	c := New(registryWithServer(t, srv), "orchestrator")
	out, err := c.SendMessage(context.Background(), &model.Message{ConversationID: "c1"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if out.Seq != 42 {
		t.Fatalf("expected seq 42 from server response, got %d", out.Seq)
	}
}

func TestCallPropagatesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(registryWithServer(t, srv), "orchestrator")
	if _, err := c.SendMessage(context.Background(), &model.Message{}); err == nil {
		t.Fatal("expected a 500 response to surface as an error")
	}
}

func TestPickFailsWithNoHealthyInstances(t *testing.T) {
	c := New(&fakeRegistry{}, "orchestrator")
	if _, err := c.SendMessage(context.Background(), &model.Message{}); err == nil {
		t.Fatal("expected SendMessage to fail when no instance is registered")
	}
}

func TestRecallSendsSentAtAndRecallFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var got opRequest
		_ = json.NewDecoder(r.Body).Decode(&got)
		if got.Recall == nil || got.Recall.MessageID != "m1" {
			t.Fatalf("expected recall payload, got %+v", got)
		}
		if got.SentAtUnixMS == 0 {
			t.Fatal("expected a nonzero sent_at_unix_ms")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(model.Message{})
	}))
	defer srv.Close()

	c := New(registryWithServer(t, srv), "orchestrator")
	if _, err := c.Recall(context.Background(), "t1", "c1", "u1", opbuilder.RecallRequest{MessageID: "m1"}, time.Now()); err != nil {
		t.Fatalf("Recall failed: %v", err)
	}
}
