package stream

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/DustGate/dustgate/internal/model"
)

func newStreamServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	router := gin.New()
	router.GET("/v1/stream", hub.HandleWS)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Close)
	return hub, srv
}

func dialStream(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestHubBroadcast(t *testing.T) {
	hub, srv := newStreamServer(t)
	conn := dialStream(t, srv)
	waitFor(t, "subscriber registration", func() bool { return hub.Subscribers() == 1 })

	record := model.SettlementRecord{
		ID:          uuid.New(),
		BatchID:     uuid.New(),
		Caller:      "0x0000000000000000000000000000000000000077",
		Maker:       "0x0000000000000000000000000000000000000011",
		Token:       "0x00000000000000000000000000000000000000A1",
		TokenAmount: "2000000",
		GrossWei:    "2000000000000000",
		PayableWei:  "2000000000000000",
		CreatedAt:   time.Now().UTC(),
	}
	hub.Broadcast(record)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got model.SettlementRecord
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("invalid frame: %v", err)
	}
	if got.BatchID != record.BatchID || got.Maker != record.Maker || got.PayableWei != record.PayableWei {
		t.Fatalf("frame does not match broadcast: %+v", got)
	}

	conn.Close()
	waitFor(t, "subscriber removal", func() bool { return hub.Subscribers() == 0 })
}

func TestHubBroadcastWithoutSubscribers(t *testing.T) {
	hub := NewHub()
	defer hub.Close()
	// Nothing to deliver to; must not block or panic.
	hub.Broadcast(model.SettlementRecord{ID: uuid.New(), BatchID: uuid.New()})
}

func TestHubClose(t *testing.T) {
	hub, srv := newStreamServer(t)
	conn := dialStream(t, srv)
	waitFor(t, "subscriber registration", func() bool { return hub.Subscribers() == 1 })

	hub.Close()
	if hub.Subscribers() != 0 {
		t.Fatalf("expected no subscribers after close, got %d", hub.Subscribers())
	}

	// The peer sees the close frame as a read error.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected closed connection")
	}

	// Late dials are turned away immediately.
	late := dialStream(t, srv)
	_ = late.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := late.ReadMessage(); err == nil {
		t.Fatalf("expected refused subscriber to be disconnected")
	}
	if hub.Subscribers() != 0 {
		t.Fatalf("closed hub must not register subscribers, got %d", hub.Subscribers())
	}
}
