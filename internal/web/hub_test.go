package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", hub.ClientCount(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBroadcastReachesClient(t *testing.T) {
	hub := NewHub(zap.NewNop())
	conn := dialHub(t, hub)
	waitForClients(t, hub, 1)

	hub.Broadcast("status", map[string]string{"from": "CONNECTING", "to": "CONNECTED"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}

	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if frame.Type != "status" {
		t.Errorf("frame type = %q, want status", frame.Type)
	}
	payload, ok := frame.Payload.(map[string]any)
	if !ok || payload["to"] != "CONNECTED" {
		t.Errorf("payload = %v, want status change to CONNECTED", frame.Payload)
	}
}

func TestClientDisconnectDetaches(t *testing.T) {
	hub := NewHub(zap.NewNop())
	conn := dialHub(t, hub)
	waitForClients(t, hub, 1)

	_ = conn.Close()
	waitForClients(t, hub, 0)
}

func TestBroadcastWithoutClientsIsSafe(t *testing.T) {
	hub := NewHub(zap.NewNop())
	hub.Broadcast("status", map[string]string{"to": "CONNECTED"})
}
