package tools

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/solpilot/solpilot/internal/schema"
)

// LivePriceSource reads the WebSocket feed cache, falling back to REST.
type LivePriceSource interface {
	PriceSource
	// LastCached returns the feed's most recent price and its age.
	LastCached(symbol string) (price float64, age time.Duration, ok bool)
}

// TokenPriceTool reports the current USD price of a token.
type TokenPriceTool struct {
	prices LivePriceSource
}

func NewTokenPriceTool(prices LivePriceSource) *TokenPriceTool {
	return &TokenPriceTool{prices: prices}
}

func (t *TokenPriceTool) Name() string { return string(ToolTokenPrice) }
func (t *TokenPriceTool) Description() string {
	return "Get the current USD price of a token from the live price feed."
}
func (t *TokenPriceTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"symbol": {
				"type": "string",
				"description": "Token symbol, e.g. SOL, USDC, BONK"
			}
		},
		"required": ["symbol"]
	}`)
}

func (t *TokenPriceTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(stringParam(params, "symbol", "")))
	if symbol == "" {
		return schema.Failure(schema.ErrValidation, "symbol is required"), nil
	}

	if price, age, ok := t.prices.LastCached(symbol); ok && age < 30*time.Second {
		return schema.Success(map[string]any{
			"symbol":   symbol,
			"priceUSD": price,
			"source":   "feed",
			"ageMs":    age.Milliseconds(),
		}), nil
	}

	price, err := t.prices.Price(ctx, symbol)
	if err != nil {
		return "", err
	}
	return schema.Success(map[string]any{
		"symbol":   symbol,
		"priceUSD": price,
		"source":   "rest",
	}), nil
}
