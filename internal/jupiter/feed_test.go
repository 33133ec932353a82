package jupiter

import (
	"testing"
	"time"
)

func TestPriceFeedCache(t *testing.T) {
	f := NewPriceFeed("wss://example.invalid/ws")

	if _, _, ok := f.Last("SOL"); ok {
		t.Fatal("expected no cached price before any message")
	}

	f.handleMessage([]byte(`{"id":"SOL","price":{"price":142.5}}`))

	price, age, ok := f.Last("SOL")
	if !ok {
		t.Fatal("expected cached price after message")
	}
	if price != 142.5 {
		t.Errorf("price = %v, want 142.5", price)
	}
	if age > time.Minute {
		t.Errorf("age suspiciously large: %v", age)
	}
}

func TestPriceFeedIgnoresMalformed(t *testing.T) {
	f := NewPriceFeed("wss://example.invalid/ws")
	f.handleMessage([]byte(`not json`))
	f.handleMessage([]byte(`{"id":"","price":{"price":1}}`))
	f.handleMessage([]byte(`{"id":"SOL","price":{"price":0}}`))
	if _, _, ok := f.Last("SOL"); ok {
		t.Error("zero or malformed frames must not populate the cache")
	}
}

func TestSubscribeBeforeConnect(t *testing.T) {
	f := NewPriceFeed("wss://example.invalid/ws")
	// Must not panic with no live connection.
	f.Subscribe("SOL")
	f.Subscribe("SOL")
}
