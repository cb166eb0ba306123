package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/mudra/internal/app"
)

type mutableState struct {
	mu   sync.Mutex
	snap app.Snapshot
}

func (m *mutableState) Snapshot() app.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

func (m *mutableState) SetText(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.Text = text
}

func dialState(t *testing.T, h *StateHandler) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) app.Snapshot {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}

	var snap app.Snapshot
	if err := json.Unmarshal(msg, &snap); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	return snap
}

func TestStateHandler_SendsOnConnectAndChange(t *testing.T) {
	state := &mutableState{snap: app.Snapshot{Text: "HI", Enabled: true}}
	h := NewStateHandler(state, 10*time.Millisecond)
	defer h.Close()

	conn := dialState(t, h)

	if snap := readSnapshot(t, conn); snap.Text != "HI" {
		t.Errorf("initial snapshot text = %q, want HI", snap.Text)
	}

	state.SetText("HI THERE")
	for i := 0; i < 3; i++ {
		if snap := readSnapshot(t, conn); snap.Text == "HI THERE" {
			return
		}
	}
	t.Error("changed snapshot was never pushed")
}

func TestStateHandler_SkipsUnchanged(t *testing.T) {
	state := &mutableState{snap: app.Snapshot{Text: "SAME"}}
	h := NewStateHandler(state, 10*time.Millisecond)
	defer h.Close()

	conn := dialState(t, h)
	readSnapshot(t, conn)

	// At most one repeat of the connect snapshot, then silence.
	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	received := 0
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		received++
	}
	if received > 1 {
		t.Errorf("received %d messages for an unchanged snapshot", received)
	}
}

func TestStateHandler_Close(t *testing.T) {
	state := &mutableState{}
	h := NewStateHandler(state, 10*time.Millisecond)

	conn := dialState(t, h)
	readSnapshot(t, conn)

	deadline := time.Now().Add(time.Second)
	for h.Clients() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if h.Clients() != 1 {
		t.Fatalf("Clients() = %d, want 1", h.Clients())
	}

	h.Close()
	h.Close()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the connection to be closed")
	}
}
