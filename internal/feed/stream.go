// Package feed implements an optional streaming price feed. It subscribes to
// the price source's WebSocket endpoint and pushes updates into the price
// cache, so monitoring ticks usually hit a fresh cache instead of the REST
// API.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/dlmmbot/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// priceUpdate is the message shape published on the stream.
type priceUpdate struct {
	Event       string  `json:"event"`
	PoolAddress string  `json:"pool_address"`
	Price       float64 `json:"price"`
}

// subscribeCommand asks the stream for updates on a set of pools.
type subscribeCommand struct {
	Type  string   `json:"type"`
	Pools []string `json:"pools"`
}

// PriceStream connects to the WS endpoint, subscribes to the configured
// pools, and writes each price update into the cache. It reconnects with
// exponential backoff and runs until its context is cancelled.
type PriceStream struct {
	wsURL string
	pools []string
	cache domain.PriceCache
	log   *slog.Logger
	now   func() time.Time
}

func NewPriceStream(wsURL string, pools []string, cache domain.PriceCache, log *slog.Logger) *PriceStream {
	return &PriceStream{
		wsURL: wsURL,
		pools: pools,
		cache: cache,
		log:   log.With("component", "price_stream"),
		now:   time.Now,
	}
}

// Run drives the connect/read/reconnect loop. It returns when ctx is
// cancelled, or immediately when no pools are configured.
func (s *PriceStream) Run(ctx context.Context) error {
	if len(s.pools) == 0 {
		s.log.Info("no pools to stream, feed disabled")
		return nil
	}

	delay := reconnectDelay
	for {
		err := s.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Warn("price stream disconnected, reconnecting", "error", err, "delay", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// runConnection dials, subscribes, and reads until the connection drops or
// ctx is cancelled.
func (s *PriceStream) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return fmt.Errorf("feed: connect %s: %w", s.wsURL, err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	if err := s.subscribe(conn); err != nil {
		return err
	}
	s.log.Info("price stream subscribed", "pools", len(s.pools))

	// Close the connection when ctx ends so the blocking read returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			conn.Close()
		case <-done:
		}
	}()
	go s.pingLoop(conn, done)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("feed: read: %w", err)
		}
		s.handleMessage(ctx, raw)
	}
}

func (s *PriceStream) subscribe(conn *websocket.Conn) error {
	cmd := subscribeCommand{Type: "subscribe", Pools: s.pools}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("feed: marshal subscribe: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	return nil
}

func (s *PriceStream) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage routes a raw message. Unparseable or irrelevant messages are
// dropped; a zero or negative price never reaches the cache.
func (s *PriceStream) handleMessage(ctx context.Context, raw []byte) {
	var upd priceUpdate
	if err := json.Unmarshal(raw, &upd); err != nil {
		return
	}
	if upd.Event != "" && upd.Event != "price_update" {
		return
	}
	if upd.PoolAddress == "" || upd.Price <= 0 {
		return
	}

	if err := s.cache.SetPrice(ctx, upd.PoolAddress, upd.Price, s.now()); err != nil {
		s.log.Warn("price cache write failed", "pool", upd.PoolAddress, "error", err)
		return
	}
	s.log.Debug("streamed price cached", "pool", upd.PoolAddress, "price", upd.Price)
}
