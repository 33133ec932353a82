// Package jupiter talks to the Jupiter aggregator: swap quotes and swap
// transaction construction over REST, live prices over a WebSocket feed.
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/solpilot/solpilot/internal/config"
)

// Quote is one swap route returned by the aggregator.
type Quote struct {
	InputMint   string `json:"inputMint"`
	OutputMint  string `json:"outputMint"`
	InAmount    string `json:"inAmount"`
	OutAmount   string `json:"outAmount"`
	PriceImpact string `json:"priceImpactPct"`
	RoutePlan   []struct {
		SwapInfo struct {
			Label string `json:"label"`
		} `json:"swapInfo"`
	} `json:"routePlan"`
}

// RouteLabels lists the DEX hops of the quoted route.
func (q *Quote) RouteLabels() []string {
	out := make([]string, 0, len(q.RoutePlan))
	for _, hop := range q.RoutePlan {
		out = append(out, hop.SwapInfo.Label)
	}
	return out
}

// Client is the Jupiter REST client.
type Client struct {
	quoteBase  string
	priceBase  string
	httpClient *http.Client
}

// NewClient creates a Client from config.
func NewClient(cfg config.JupiterConfig) *Client {
	return &Client{
		quoteBase:  cfg.QuoteAPIBase,
		priceBase:  cfg.PriceAPIBase,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// GetQuote fetches the best route for swapping rawAmount of inputMint into
// outputMint. rawAmount is in the input token's base units.
func (c *Client) GetQuote(ctx context.Context, inputMint, outputMint string, rawAmount uint64, slippageBps int) (*Quote, error) {
	if slippageBps <= 0 {
		slippageBps = 50
	}
	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", strconv.FormatUint(rawAmount, 10))
	q.Set("slippageBps", strconv.Itoa(slippageBps))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.quoteBase+"/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build quote request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote HTTP %d", resp.StatusCode)
	}

	var quote Quote
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return nil, fmt.Errorf("parse quote: %w", err)
	}
	return &quote, nil
}

// BuildSwapTransaction asks Jupiter to assemble the unsigned swap transaction
// for quote, paid and signed by userWallet. Returns the base64 payload.
func (c *Client) BuildSwapTransaction(ctx context.Context, quote *Quote, userWallet string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"quoteResponse":    quote,
		"userPublicKey":    userWallet,
		"wrapAndUnwrapSol": true,
	})
	if err != nil {
		return "", fmt.Errorf("marshal swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.quoteBase+"/swap", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build swap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("swap request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("swap HTTP %d", resp.StatusCode)
	}

	var out struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("parse swap response: %w", err)
	}
	if out.SwapTransaction == "" {
		return "", fmt.Errorf("swap response missing transaction")
	}
	return out.SwapTransaction, nil
}

// GetPrice fetches the current USD price for a token id (mint or symbol)
// from the REST price endpoint. Used as a fallback when the feed has no
// cached price yet.
func (c *Client) GetPrice(ctx context.Context, id string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.priceBase+"/price?ids="+url.QueryEscape(id), nil)
	if err != nil {
		return 0, fmt.Errorf("build price request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("price request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return 0, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price HTTP %d", resp.StatusCode)
	}

	var out struct {
		Data map[string]struct {
			Price float64 `json:"price"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("parse price response: %w", err)
	}
	entry, ok := out.Data[id]
	if !ok {
		return 0, fmt.Errorf("no price for %q", id)
	}
	return entry.Price, nil
}

// ErrRateLimited marks a 429 from the aggregator so callers can tag the
// failure precisely.
var ErrRateLimited = fmt.Errorf("jupiter: rate limited")
