// Package drift talks to a self-hosted Drift gateway over REST. The gateway
// operates the backend-owned sub-account; end-user keys are never involved.
package drift

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	chain "github.com/solpilot/solpilot/internal/solana"
)

// ErrNoAccount is returned when the wallet has no Drift user account yet.
var ErrNoAccount = fmt.Errorf("drift: no user account")

// Balance summarises a Drift user account.
type Balance struct {
	AccountValue    float64 `json:"accountValue"`
	TotalCollateral float64 `json:"totalCollateral"`
	FreeCollateral  float64 `json:"freeCollateral"`
	Leverage        float64 `json:"leverage"`
	UnrealizedPnl   float64 `json:"unrealizedPnl"`
}

// Position is one open perp position.
type Position struct {
	Market     string  `json:"market"`
	BaseAmount float64 `json:"baseAmount"`
	EntryPrice float64 `json:"entryPrice"`
	Direction  string  `json:"direction"` // long | short
}

// OrderReceipt reports a placed perp order.
type OrderReceipt struct {
	OrderID   int64  `json:"orderId"`
	Market    string `json:"market"`
	Direction string `json:"direction"`
	Status    string `json:"status"`
}

// Client is the Drift gateway REST client. When a signer is present every
// request is authenticated as the backend authority; the gateway verifies the
// signature before touching the sub-account.
type Client struct {
	base       string
	signer     *chain.Signer
	httpClient *http.Client
}

// NewClient creates a Client for the gateway base URL. An empty base yields a
// client whose calls fail with a configuration error, so tools can report
// Drift as unavailable instead of panicking. signer may be nil; requests then
// go out unsigned and a gateway requiring auth will reject them.
func NewClient(base string, signer *chain.Signer) *Client {
	return &Client{
		base:       strings.TrimRight(base, "/"),
		signer:     signer,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

// Configured reports whether a gateway URL was provided.
func (c *Client) Configured() bool { return c.base != "" }

// GetBalance fetches the collateral summary for the sub-account serving
// wallet. ErrNoAccount is returned when the account does not exist.
func (c *Client) GetBalance(ctx context.Context, wallet string) (*Balance, error) {
	var out Balance
	if err := c.get(ctx, "/v2/user?authority="+wallet, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPositions lists open perp positions for the wallet's sub-account.
func (c *Client) GetPositions(ctx context.Context, wallet string) ([]Position, error) {
	var out struct {
		Positions []Position `json:"positions"`
	}
	if err := c.get(ctx, "/v2/positions?authority="+wallet, &out); err != nil {
		return nil, err
	}
	return out.Positions, nil
}

// CreateAccount initialises a Drift user account for the wallet's sub-account.
func (c *Client) CreateAccount(ctx context.Context, wallet string) error {
	return c.post(ctx, "/v2/user", map[string]any{"authority": wallet}, nil)
}

// PlacePerpOrder opens a market perp position.
// direction is "long" or "short"; amountUsdc is the quote-asset size.
func (c *Client) PlacePerpOrder(ctx context.Context, wallet, market, direction string, amountUsdc, leverage float64) (*OrderReceipt, error) {
	body := map[string]any{
		"authority": wallet,
		"orders": []map[string]any{{
			"marketType": "perp",
			"market":     market,
			"direction":  direction,
			"orderType":  "market",
			"amountUsdc": amountUsdc,
			"leverage":   leverage,
		}},
	}
	var out OrderReceipt
	if err := c.post(ctx, "/v2/orders", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if c.base == "" {
		return fmt.Errorf("drift gateway not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if err := c.authenticate(req, nil); err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	if c.base == "" {
		return fmt.Errorf("drift gateway not configured")
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.authenticate(req, data); err != nil {
		return err
	}
	return c.do(req, out)
}

// authenticate stamps the request with the backend authority's public key and
// an ed25519 signature over timestamp, request URI and body. The key is the
// process-wide signer loaded at startup; nothing in the request can select a
// different one.
func (c *Client) authenticate(req *http.Request, body []byte) error {
	if c.signer == nil {
		return nil
	}
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	msg := append([]byte(ts+"\n"+req.URL.RequestURI()+"\n"), body...)
	sig, err := c.signer.Sign(msg)
	if err != nil {
		return fmt.Errorf("sign request: %w", err)
	}
	req.Header.Set("X-Authority", c.signer.PublicKey().String())
	req.Header.Set("X-Timestamp", ts)
	req.Header.Set("X-Signature", sig.String())
	return nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("drift request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return ErrNoAccount
	case http.StatusTooManyRequests:
		return fmt.Errorf("drift: rate limited")
	default:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return fmt.Errorf("drift HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parse drift response: %w", err)
	}
	return nil
}
