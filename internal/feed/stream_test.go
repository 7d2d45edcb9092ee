package feed

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/dlmmbot/internal/cache/memory"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// wsServer upgrades incoming connections and hands them to fn.
func wsServer(t *testing.T, fn func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		fn(conn)
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStreamSubscribesAndCachesPrices(t *testing.T) {
	gotSub := make(chan subscribeCommand, 1)
	srv := wsServer(t, func(conn *websocket.Conn) {
		var cmd subscribeCommand
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := json.Unmarshal(raw, &cmd); err != nil {
			return
		}
		gotSub <- cmd

		msg, _ := json.Marshal(priceUpdate{Event: "price_update", PoolAddress: "pool1", Price: 101.5})
		_ = conn.WriteMessage(websocket.TextMessage, msg)

		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	cache := memory.NewPriceCache()
	stream := NewPriceStream(wsURL(srv), []string{"pool1"}, cache, discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- stream.Run(ctx) }()

	select {
	case cmd := <-gotSub:
		if cmd.Type != "subscribe" || len(cmd.Pools) != 1 || cmd.Pools[0] != "pool1" {
			t.Fatalf("subscribe = %+v", cmd)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no subscribe command received")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		price, _, err := cache.GetPrice(ctx, "pool1")
		if err == nil {
			if price != 101.5 {
				t.Fatalf("cached price = %v, want 101.5", price)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("price never reached the cache")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestStreamIgnoresMalformedAndNonPositive(t *testing.T) {
	srv := wsServer(t, func(conn *websocket.Conn) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
		msg, _ := json.Marshal(priceUpdate{Event: "price_update", PoolAddress: "pool1", Price: 0})
		_ = conn.WriteMessage(websocket.TextMessage, msg)
		other, _ := json.Marshal(priceUpdate{Event: "heartbeat"})
		_ = conn.WriteMessage(websocket.TextMessage, other)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	cache := memory.NewPriceCache()
	stream := NewPriceStream(wsURL(srv), []string{"pool1"}, cache, discard())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = stream.Run(ctx)

	if _, _, err := cache.GetPrice(context.Background(), "pool1"); err == nil {
		t.Fatal("malformed and zero-price updates must not be cached")
	}
}

func TestStreamNoPoolsReturnsImmediately(t *testing.T) {
	stream := NewPriceStream("ws://unused", nil, memory.NewPriceCache(), discard())
	if err := stream.Run(context.Background()); err != nil {
		t.Fatalf("err = %v, want nil when nothing to stream", err)
	}
}
