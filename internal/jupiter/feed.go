package jupiter

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// PriceFeed maintains a WebSocket subscription to the Jupiter price stream
// and caches the last price per feed id. Tools read the cache; they never
// block on the socket.
type PriceFeed struct {
	wsURL string

	mu     sync.RWMutex
	prices map[string]pricePoint
	subs   map[string]struct{}

	conn   *websocket.Conn
	connMu sync.Mutex
}

type pricePoint struct {
	price float64
	at    time.Time
}

// NewPriceFeed creates an unstarted feed for wsURL.
func NewPriceFeed(wsURL string) *PriceFeed {
	return &PriceFeed{
		wsURL:  wsURL,
		prices: make(map[string]pricePoint),
		subs:   make(map[string]struct{}),
	}
}

// Subscribe registers interest in a feed id. Safe before or after Run.
func (f *PriceFeed) Subscribe(id string) {
	f.mu.Lock()
	_, known := f.subs[id]
	f.subs[id] = struct{}{}
	f.mu.Unlock()

	if !known {
		f.sendSubscribe([]string{id})
	}
}

// Last returns the most recent cached price for id and its age, or ok=false
// when the feed has not delivered one yet.
func (f *PriceFeed) Last(id string) (price float64, age time.Duration, ok bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.prices[id]
	if !ok {
		return 0, 0, false
	}
	return p.price, time.Since(p.at), true
}

// Run connects and consumes the stream until ctx is cancelled, reconnecting
// with backoff on failure.
func (f *PriceFeed) Run(ctx context.Context) error {
	if f.wsURL == "" {
		<-ctx.Done()
		return ctx.Err()
	}
	backoff := time.Second
	for {
		if err := f.connectAndConsume(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("price feed disconnected", "err", err, "retry_in", backoff)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (f *PriceFeed) connectAndConsume(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()
	defer func() {
		f.connMu.Lock()
		f.conn = nil
		f.connMu.Unlock()
	}()

	// Re-subscribe everything after a reconnect.
	f.mu.RLock()
	ids := make([]string, 0, len(f.subs))
	for id := range f.subs {
		ids = append(ids, id)
	}
	f.mu.RUnlock()
	if len(ids) > 0 {
		f.sendSubscribe(ids)
	}

	slog.Info("price feed connected", "url", f.wsURL, "subscriptions", len(ids))

	// Close the socket when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		f.handleMessage(data)
	}
}

// feedMessage is the pyth-style price frame the stream delivers.
type feedMessage struct {
	ID    string `json:"id"`
	Price struct {
		Price float64 `json:"price"`
	} `json:"price"`
}

func (f *PriceFeed) handleMessage(data []byte) {
	var msg feedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if msg.ID == "" || msg.Price.Price == 0 {
		return
	}
	f.mu.Lock()
	f.prices[msg.ID] = pricePoint{price: msg.Price.Price, at: time.Now()}
	f.mu.Unlock()
}

func (f *PriceFeed) sendSubscribe(ids []string) {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return
	}
	msg := map[string]any{
		"type":           "subscribe",
		"price_feed_ids": ids,
	}
	if err := f.conn.WriteJSON(msg); err != nil {
		slog.Warn("price feed subscribe failed", "err", err)
	}
}
