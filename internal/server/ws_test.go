package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jpalmerr/regionpulse/internal/store"
)

type wsInbound struct {
	Type string        `json:"type"`
	Data statusPayload `json:"data"`
}

// dialWS starts an httptest server around srv.handleWS, with request
// contexts derived from serverCtx, and dials it.
func dialWS(t *testing.T, srv *Server, serverCtx context.Context) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.handleWS(w, r.WithContext(serverCtx))
	}))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readUpdate(t *testing.T, conn *websocket.Conn) wsInbound {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg wsInbound
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func TestHandleWS_SendsLatestOnConnect(t *testing.T) {
	ms := store.NewMemoryStore(testSnapshot(4))
	conn := dialWS(t, newTestServer(ms, nil), context.Background())

	msg := readUpdate(t, conn)
	if msg.Type != "statusUpdate" {
		t.Errorf("Type = %q, want statusUpdate", msg.Type)
	}
	if msg.Data.Cycle != 4 {
		t.Errorf("Cycle = %d, want 4", msg.Data.Cycle)
	}
	if msg.Data.Summary.TotalNodes != 2 {
		t.Errorf("Summary.TotalNodes = %d, want 2", msg.Data.Summary.TotalNodes)
	}
}

func TestHandleWS_StreamsUpdates(t *testing.T) {
	ms := store.NewMemoryStore(testSnapshot(0))
	conn := dialWS(t, newTestServer(ms, nil), context.Background())

	readUpdate(t, conn)

	ms.Publish(testSnapshot(1))
	ms.Publish(testSnapshot(2))

	if got := readUpdate(t, conn).Data.Cycle; got != 1 {
		t.Errorf("first update cycle = %d, want 1", got)
	}
	if got := readUpdate(t, conn).Data.Cycle; got != 2 {
		t.Errorf("second update cycle = %d, want 2", got)
	}
}

func TestHandleWS_ForceCheckTriggers(t *testing.T) {
	tr := newTriggerRecorder(true)
	ms := store.NewMemoryStore(testSnapshot(0))
	conn := dialWS(t, newTestServer(ms, tr.trigger), context.Background())

	readUpdate(t, conn)

	if err := conn.WriteJSON(map[string]string{"type": "forceCheck"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	select {
	case source := <-tr.calls:
		if source != "ws" {
			t.Errorf("trigger source = %q, want ws", source)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("forceCheck did not trigger a cycle")
	}
}

// TestHandleWS_IgnoresUnknownAndMalformed verifies bad client messages do
// not close the connection.
func TestHandleWS_IgnoresUnknownAndMalformed(t *testing.T) {
	tr := newTriggerRecorder(true)
	ms := store.NewMemoryStore(testSnapshot(0))
	conn := dialWS(t, newTestServer(ms, tr.trigger), context.Background())

	readUpdate(t, conn)

	_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":42}`))
	_ = conn.WriteJSON(map[string]string{"type": "hello"})
	_ = conn.WriteJSON(map[string]string{"type": "forceCheck"})

	select {
	case <-tr.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("connection stopped processing after bad messages")
	}

	ms.Publish(testSnapshot(7))
	if got := readUpdate(t, conn).Data.Cycle; got != 7 {
		t.Errorf("cycle = %d, want 7", got)
	}
}

func TestHandleWS_ForceCheckWithoutTrigger(t *testing.T) {
	ms := store.NewMemoryStore(testSnapshot(0))
	conn := dialWS(t, newTestServer(ms, nil), context.Background())

	readUpdate(t, conn)
	_ = conn.WriteJSON(map[string]string{"type": "forceCheck"})

	// connection stays usable
	ms.Publish(testSnapshot(1))
	if got := readUpdate(t, conn).Data.Cycle; got != 1 {
		t.Errorf("cycle = %d, want 1", got)
	}
}

func TestHandleWS_ClientCloseUnsubscribes(t *testing.T) {
	ms := store.NewMemoryStore(testSnapshot(0))
	conn := dialWS(t, newTestServer(ms, nil), context.Background())

	readUpdate(t, conn)
	if n := ms.SubscriberCount(); n != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1", n)
	}

	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ms.SubscriberCount() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("subscription not released after client closed")
}

func TestHandleWS_ServerShutdownClosesConnection(t *testing.T) {
	ms := store.NewMemoryStore(testSnapshot(0))
	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	conn := dialWS(t, newTestServer(ms, nil), serverCtx)
	readUpdate(t, conn)

	serverCancel()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Fatal("ReadMessage() error = nil, want close")
	}
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("close error = %v, want going away", err)
	}
}

func TestHandleWS_RejectsCrossOrigin(t *testing.T) {
	srv := newTestServer(store.NewMemoryStore(testSnapshot(0)), nil)
	ts := httptest.NewServer(http.HandlerFunc(srv.handleWS))
	defer ts.Close()

	header := http.Header{"Origin": []string{"http://evil.example.com"}}
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("Dial() error = nil, want rejected handshake")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}
}
