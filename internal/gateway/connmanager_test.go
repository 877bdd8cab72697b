package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// newTestConn opens a real websocket connection (client side) against
// an httptest server that immediately upgrades every request, giving
// ConnManager a genuine *websocket.Conn without a live gateway.
func newTestConn(t *testing.T) (*websocket.Conn, func()) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		<-r.Context().Done()
		_ = conn.Close()
	}))

	url := "ws" + srv.URL[len("http"):]
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial failed: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
		srv.Close()
	}
}

func TestAddUnauthThenBindUserTracksByUser(t *testing.T) {
	conn, cleanup := newTestConn(t)
	defer cleanup()

	m := NewConnManager("gw-1", ManagerConf{SweepEvery: time.Hour})
	defer m.Close()

	m.AddUnauth("c1", conn)
	if _, ok := m.Get("c1"); !ok {
		t.Fatal("expected unauthenticated connection to be tracked")
	}

	if err := m.BindUser("c1", "t1", "u1", "d1", "ios"); err != nil {
		t.Fatalf("BindUser failed: %v", err)
	}

	conns := m.ListUserConns("t1", "u1")
	if len(conns) != 1 || conns[0].ConnID != "c1" {
		t.Fatalf("expected one bound connection for u1, got %+v", conns)
	}
}

func TestBindUserOnUnknownConnFails(t *testing.T) {
	m := NewConnManager("gw-1", ManagerConf{SweepEvery: time.Hour})
	defer m.Close()

	if err := m.BindUser("missing", "t1", "u1", "d1", "ios"); err == nil {
		t.Fatal("expected BindUser on an unknown connection id to fail")
	}
}

func TestMaxPerUserEvictsOldestConnection(t *testing.T) {
	m := NewConnManager("gw-1", ManagerConf{SweepEvery: time.Hour, MaxPerUser: 1})
	defer m.Close()

	connA, cleanupA := newTestConn(t)
	defer cleanupA()
	connB, cleanupB := newTestConn(t)
	defer cleanupB()

	m.AddUnauth("a", connA)
	if err := m.BindUser("a", "t1", "u1", "dA", "ios"); err != nil {
		t.Fatalf("BindUser a failed: %v", err)
	}
	time.Sleep(time.Millisecond)

	m.AddUnauth("b", connB)
	if err := m.BindUser("b", "t1", "u1", "dB", "android"); err != nil {
		t.Fatalf("BindUser b failed: %v", err)
	}

	conns := m.ListUserConns("t1", "u1")
	if len(conns) != 1 {
		t.Fatalf("expected ceiling of 1 connection per user, got %d", len(conns))
	}
	if conns[0].ConnID != "b" {
		t.Fatalf("expected the newer connection to survive, got %s", conns[0].ConnID)
	}
	if _, ok := m.Get("a"); ok {
		t.Fatal("expected the evicted connection to be removed from the primary index too")
	}
}

func TestRemoveClearsBothIndexes(t *testing.T) {
	conn, cleanup := newTestConn(t)
	defer cleanup()

	m := NewConnManager("gw-1", ManagerConf{SweepEvery: time.Hour})
	defer m.Close()

	m.AddUnauth("c1", conn)
	_ = m.BindUser("c1", "t1", "u1", "d1", "ios")
	m.Remove("c1")

	if _, ok := m.Get("c1"); ok {
		t.Fatal("expected connection to be gone from byConn")
	}
	if conns := m.ListUserConns("t1", "u1"); len(conns) != 0 {
		t.Fatalf("expected no connections left for u1, got %d", len(conns))
	}
}

func TestSendDropsConnectionWhenOutboxFull(t *testing.T) {
	conn, cleanup := newTestConn(t)
	defer cleanup()

	m := NewConnManager("gw-1", ManagerConf{SweepEvery: time.Hour, OutboxSize: 1})
	defer m.Close()
	m.AddUnauth("c1", conn)

	if !m.Send("c1", []byte("first")) {
		t.Fatal("expected first send to succeed")
	}
	if m.Send("c1", []byte("second")) {
		t.Fatal("expected second send to overflow the bounded outbox and report false")
	}
	if _, ok := m.Get("c1"); ok {
		t.Fatal("expected the connection to be dropped after outbox overflow")
	}
}

func TestSendOnUnknownConnReturnsFalse(t *testing.T) {
	m := NewConnManager("gw-1", ManagerConf{SweepEvery: time.Hour})
	defer m.Close()
	if m.Send("nope", []byte("x")) {
		t.Fatal("expected Send on an unknown connection to report false")
	}
}

func TestManagerConfNormFillsDefaults(t *testing.T) {
	c := ManagerConf{}
	c.norm()
	if c.SweepEvery != 10*time.Second || c.UnauthTTL != 60*time.Second || c.AuthTTL != 2*time.Hour || c.OutboxSize != 256 {
		t.Fatalf("unexpected normalized defaults: %+v", c)
	}
}
