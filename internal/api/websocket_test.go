package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"solflow/internal/eventbus"
	"solflow/internal/models"
)

func TestWebSocket_BroadcastsPublishedSignal(t *testing.T) {
	ConfigureRateLimit(1000, 1000, time.Minute)
	bus := eventbus.New()
	t.Cleanup(bus.Close)
	auth := NewAuthenticator("test-secret")
	s := NewServer(&fakeReader{}, bus, auth)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	defer conn.Close()

	// Give the server goroutine time to register the client before publishing.
	time.Sleep(50 * time.Millisecond)

	bus.Publish(eventbus.Event{
		Type:      "signal",
		Timestamp: time.Now(),
		Data:      models.Signal{Mint: "MintA", SignalType: models.SignalBreakout},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read ws message: %v", err)
	}
	if !strings.Contains(string(msg), "MintA") {
		t.Errorf("expected broadcast payload to contain MintA, got %q", msg)
	}
}
