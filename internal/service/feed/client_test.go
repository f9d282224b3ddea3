package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"PairFlow/pkg/logger"

	"github.com/gorilla/websocket"
)

type countingMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func (m *countingMetrics) RecordTick(string)                {}
func (m *countingMetrics) RecordBarClosed(string, string)   {}
func (m *countingMetrics) RecordLastPrice(string, float64)  {}
func (m *countingMetrics) RecordLatency(string, float64)    {}
func (m *countingMetrics) RecordAlertFired(string)          {}
func (m *countingMetrics) RecordZScore(float64)             {}
func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errors == nil {
		m.errors = map[string]int{}
	}
	m.errors[kind]++
}

func TestClientSubscribeAndRead(t *testing.T) {
	subscribed := make(chan subscribeFrame, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var sub subscribeFrame
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		subscribed <- sub
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"result":null,"id":1}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`garbage`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"e":"trade","s":"BTCUSDT","T":1700000000000,"p":"100.5","q":"2"}`))
		// hold the connection open until the client leaves
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	metrics := &countingMetrics{}
	c := New(logger.NewNop(), metrics,
		WithURL("ws"+strings.TrimPrefix(srv.URL, "http")),
		WithSymbols([]string{"BTCUSDT", "ethusdt"}),
	)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()
	if err := c.Subscribe(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	sub := <-subscribed
	if sub.Method != "SUBSCRIBE" || len(sub.Params) != 2 || sub.Params[0] != "btcusdt@trade" {
		t.Fatalf("subscribe frame = %+v", sub)
	}

	ticks, _ := c.Read(ctx)
	select {
	case tk := <-ticks:
		if tk.Symbol != "btcusdt" || tk.Price != 100.5 || tk.Size != 2 {
			t.Fatalf("tick = %+v", tk)
		}
	case <-ctx.Done():
		t.Fatalf("no tick received")
	}
	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if metrics.errors["normalize"] != 1 {
		t.Fatalf("normalize errors = %d, want 1", metrics.errors["normalize"])
	}
	if !c.IsConnected() {
		t.Fatalf("client should report connected")
	}
}

func TestRelayModeSkipsSubscribe(t *testing.T) {
	c := New(logger.NewNop(), &countingMetrics{}, WithMode(ModeRelay))
	if err := c.Subscribe(context.Background()); err != nil {
		t.Fatalf("relay subscribe: %v", err)
	}
	if err := New(logger.NewNop(), &countingMetrics{}).Subscribe(context.Background()); err != ErrNotConnected {
		t.Fatalf("unconnected subscribe err = %v", err)
	}
}
