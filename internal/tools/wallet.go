package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	sol "github.com/gagliardetto/solana-go"

	"github.com/solpilot/solpilot/internal/schema"
	chain "github.com/solpilot/solpilot/internal/solana"
)

// ChainReader is the slice of the Solana client the wallet tools need.
type ChainReader interface {
	SOLBalance(ctx context.Context, wallet sol.PublicKey) (string, error)
	TokenBalances(ctx context.Context, wallet sol.PublicKey) ([]chain.TokenBalance, error)
	RecentTransactions(ctx context.Context, wallet sol.PublicKey, limit int) ([]chain.TransactionInfo, error)
}

// PriceSource supplies USD prices for portfolio valuation.
type PriceSource interface {
	Price(ctx context.Context, symbol string) (float64, error)
}

// ---------------------------------------------------------------------------
// get_wallet_balance
// ---------------------------------------------------------------------------

// BalanceTool fetches SOL and SPL token balances for a wallet.
type BalanceTool struct {
	chain ChainReader
}

func NewBalanceTool(chain ChainReader) *BalanceTool {
	return &BalanceTool{chain: chain}
}

func (t *BalanceTool) Name() string { return string(ToolWalletBalance) }
func (t *BalanceTool) Description() string {
	return "Fetch SOL and SPL token balances for a Solana wallet."
}
func (t *BalanceTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"walletAddress": {
				"type": "string",
				"description": "The Solana wallet address to check balances for."
			}
		},
		"required": ["walletAddress"]
	}`)
}

func (t *BalanceTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	addr, _ := params["walletAddress"].(string)
	wallet, err := chain.ParseAddress(addr)
	if err != nil {
		return schema.Failure(schema.ErrInvalidAddress, fmt.Sprintf("%q is not a valid Solana address", addr)), nil
	}

	solBal, err := t.chain.SOLBalance(ctx, wallet)
	if err != nil {
		return "", err
	}
	tokens, err := t.chain.TokenBalances(ctx, wallet)
	if err != nil {
		return "", err
	}

	balances := map[string]any{
		"SOL": map[string]any{"balance": solBal},
	}
	for _, tok := range tokens {
		balances[tok.Symbol] = map[string]any{"balance": tok.Balance}
	}

	return schema.Success(map[string]any{
		"walletAddress": addr,
		"balances":      balances,
	}), nil
}

// ---------------------------------------------------------------------------
// get_recent_transactions
// ---------------------------------------------------------------------------

// RecentTransactionsTool fetches a wallet's recent transaction history.
type RecentTransactionsTool struct {
	chain ChainReader
}

func NewRecentTransactionsTool(chain ChainReader) *RecentTransactionsTool {
	return &RecentTransactionsTool{chain: chain}
}

func (t *RecentTransactionsTool) Name() string { return string(ToolRecentTransactions) }
func (t *RecentTransactionsTool) Description() string {
	return "Fetch the recent transaction history for a wallet."
}
func (t *RecentTransactionsTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"walletAddress": {
				"type": "string",
				"description": "Wallet to get transactions for"
			},
			"limit": {
				"type": "integer",
				"description": "How many transactions to fetch (default: 5)",
				"minimum": 1,
				"maximum": 25
			}
		},
		"required": ["walletAddress"]
	}`)
}

func (t *RecentTransactionsTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	addr, _ := params["walletAddress"].(string)
	wallet, err := chain.ParseAddress(addr)
	if err != nil {
		return schema.Failure(schema.ErrInvalidAddress, fmt.Sprintf("%q is not a valid Solana address", addr)), nil
	}

	limit := intParam(params, "limit", 5)
	txs, err := t.chain.RecentTransactions(ctx, wallet, limit)
	if err != nil {
		return "", err
	}

	return schema.Success(map[string]any{
		"walletAddress": addr,
		"transactions":  txs,
	}), nil
}

// ---------------------------------------------------------------------------
// get_portfolio_summary
// ---------------------------------------------------------------------------

// PortfolioTool values a wallet's holdings in USD.
type PortfolioTool struct {
	chain  ChainReader
	prices PriceSource
}

func NewPortfolioTool(chain ChainReader, prices PriceSource) *PortfolioTool {
	return &PortfolioTool{chain: chain, prices: prices}
}

func (t *PortfolioTool) Name() string { return string(ToolPortfolioSummary) }
func (t *PortfolioTool) Description() string {
	return "Get an overview of wallet balances, token distribution, and net worth in USD."
}
func (t *PortfolioTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"walletAddress": {
				"type": "string",
				"description": "Wallet address to summarize portfolio for"
			}
		},
		"required": ["walletAddress"]
	}`)
}

func (t *PortfolioTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	addr, _ := params["walletAddress"].(string)
	wallet, err := chain.ParseAddress(addr)
	if err != nil {
		return schema.Failure(schema.ErrInvalidAddress, fmt.Sprintf("%q is not a valid Solana address", addr)), nil
	}

	solBal, err := t.chain.SOLBalance(ctx, wallet)
	if err != nil {
		return "", err
	}
	tokens, err := t.chain.TokenBalances(ctx, wallet)
	if err != nil {
		return "", err
	}

	type holding struct {
		Symbol   string  `json:"symbol"`
		Balance  string  `json:"balance"`
		ValueUSD float64 `json:"valueUSD"`
	}

	var holdings []holding
	var netWorth float64

	appendHolding := func(symbol, balance string) {
		amount := parseAmount(balance)
		value := 0.0
		if amount > 0 {
			// Price lookups are best-effort; a missing price leaves
			// the holding valued at zero rather than failing the tool.
			if price, err := t.prices.Price(ctx, symbol); err == nil {
				value = amount * price
			}
		}
		netWorth += value
		holdings = append(holdings, holding{Symbol: symbol, Balance: balance, ValueUSD: round2(value)})
	}

	appendHolding("SOL", solBal)
	for _, tok := range tokens {
		appendHolding(tok.Symbol, tok.Balance)
	}

	return schema.Success(map[string]any{
		"walletAddress": addr,
		"netWorthUSD":   round2(netWorth),
		"tokens":        holdings,
	}), nil
}

// ---------------------------------------------------------------------------
// Param helpers
// ---------------------------------------------------------------------------

// intParam reads an integer argument, tolerating the float64 the JSON
// decoder produces.
func intParam(params map[string]any, key string, def int) int {
	switch v := params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// floatParam reads a numeric argument.
func floatParam(params map[string]any, key string) (float64, bool) {
	switch v := params[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func parseAmount(s string) float64 {
	var f float64
	_, err := fmt.Sscanf(s, "%g", &f)
	if err != nil {
		return 0
	}
	return f
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
