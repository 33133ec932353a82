package jupiter

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// PriceService answers symbol-keyed price lookups. Fresh prices come from the
// WebSocket feed cache; the REST price API is the fallback when the feed has
// no recent point for a symbol.
type PriceService struct {
	client *Client
	feed   *PriceFeed
}

// NewPriceService creates a PriceService. feed may be nil, in which case
// every lookup goes over REST.
func NewPriceService(client *Client, feed *PriceFeed) *PriceService {
	return &PriceService{client: client, feed: feed}
}

// Watch subscribes the live feed to a set of symbols.
func (s *PriceService) Watch(symbols ...string) {
	if s.feed == nil {
		return
	}
	for _, sym := range symbols {
		s.feed.Subscribe(strings.ToUpper(sym))
	}
}

// Price returns the current USD price for a symbol over REST.
func (s *PriceService) Price(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return 0, fmt.Errorf("symbol is required")
	}
	return s.client.GetPrice(ctx, symbol)
}

// LastCached returns the feed's most recent price for a symbol and its age.
func (s *PriceService) LastCached(symbol string) (float64, time.Duration, bool) {
	if s.feed == nil {
		return 0, 0, false
	}
	return s.feed.Last(strings.ToUpper(strings.TrimSpace(symbol)))
}
