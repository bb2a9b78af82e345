package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"main/internal/bus"
	"main/internal/model"
)

func tradeEvent(t *testing.T, price string) model.Event {
	t.Helper()
	return model.NewAggTrade("BTCUSDT", 1700000000000000000, model.AggTrade{
		TradeID:  1,
		Price:    decimal.RequireFromString(price),
		Quantity: decimal.RequireFromString("1"),
	}, nil)
}

func startTestServer(t *testing.T, hub *bus.Hub) (*httptest.Server, *websocket.Conn) {
	t.Helper()
	srv, err := New(Config{ListenAddr: "127.0.0.1:0", QueueSize: 16}, hub)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return ts, conn
}

func waitSubscribers(t *testing.T, hub *bus.Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Subscribers() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("subscribers = %d, want %d", hub.Subscribers(), want)
}

func TestStreamDeliversEventLinesInOrder(t *testing.T) {
	hub := bus.NewHub(nil, nil)
	defer hub.Close()
	_, conn := startTestServer(t, hub)
	waitSubscribers(t, hub, 1)

	for _, p := range []string{"50000", "50001", "50002"} {
		if err := hub.Admit(tradeEvent(t, p)); err != nil {
			t.Fatalf("admit: %v", err)
		}
	}

	for want := uint64(1); want <= 3; want++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		kind, frame, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read frame %d: %v", want, err)
		}
		if kind != websocket.TextMessage {
			t.Fatalf("frame type = %d", kind)
		}
		e, err := model.Decode(frame)
		if err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		if e.Seq != want {
			t.Fatalf("frame seq = %d, want %d", e.Seq, want)
		}
	}
}

func TestStreamClosesOnHubShutdown(t *testing.T) {
	hub := bus.NewHub(nil, nil)
	_, conn := startTestServer(t, hub)
	waitSubscribers(t, hub, 1)

	hub.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("read succeeded after hub shutdown")
	}
}

func TestClientDisconnectReleasesSubscription(t *testing.T) {
	hub := bus.NewHub(nil, nil)
	defer hub.Close()
	_, conn := startTestServer(t, hub)
	waitSubscribers(t, hub, 1)

	conn.Close()
	waitSubscribers(t, hub, 0)
}
