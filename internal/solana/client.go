// Package solana wraps the RPC reads and unsigned-transaction construction
// used by the wallet tools. It never signs with a user key and never
// broadcasts; signing happens in the user's wallet, outside this process.
package solana

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/solpilot/solpilot/internal/config"
)

// TokenBalance is one token line in a wallet balance report.
type TokenBalance struct {
	Symbol   string `json:"symbol"`
	Balance  string `json:"balance"`
	Decimals uint8  `json:"decimals"`
}

// TransactionInfo is one entry of a wallet's recent history.
type TransactionInfo struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
	Time      string `json:"time,omitempty"`
	Failed    bool   `json:"failed"`
	Memo      string `json:"memo,omitempty"`
}

// Client performs read-only RPC calls against a Solana cluster.
type Client struct {
	rpc    *rpc.Client
	tokens map[string]config.Token
}

// NewClient creates a Client for the configured endpoint and token map.
func NewClient(cfg config.SolanaConfig) *Client {
	return &Client{
		rpc:    rpc.New(cfg.RPCEndpoint),
		tokens: cfg.Tokens,
	}
}

// ParseAddress validates a base58 wallet address.
func ParseAddress(addr string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(addr)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	return pk, nil
}

// SOLBalance returns the native balance in SOL as a display string.
func (c *Client) SOLBalance(ctx context.Context, wallet solana.PublicKey) (string, error) {
	out, err := c.rpc.GetBalance(ctx, wallet, rpc.CommitmentFinalized)
	if err != nil {
		return "", fmt.Errorf("get balance: %w", err)
	}
	return FormatLamports(out.Value), nil
}

// TokenBalances returns the balance of every configured SPL token the wallet
// holds. Tokens with no associated account are reported as zero.
func (c *Client) TokenBalances(ctx context.Context, wallet solana.PublicKey) ([]TokenBalance, error) {
	var out []TokenBalance
	for symbol, tok := range c.tokens {
		mint, err := solana.PublicKeyFromBase58(tok.Mint)
		if err != nil {
			return nil, fmt.Errorf("token %s: bad mint in config: %w", symbol, err)
		}
		ata, _, err := solana.FindAssociatedTokenAddress(wallet, mint)
		if err != nil {
			return nil, fmt.Errorf("token %s: derive ATA: %w", symbol, err)
		}
		bal, err := c.rpc.GetTokenAccountBalance(ctx, ata, rpc.CommitmentFinalized)
		if err != nil {
			// No associated account yet means a zero balance, not a fault.
			out = append(out, TokenBalance{Symbol: symbol, Balance: "0", Decimals: tok.Decimals})
			continue
		}
		amount := "0"
		if bal.Value != nil {
			amount = bal.Value.UiAmountString
		}
		out = append(out, TokenBalance{Symbol: symbol, Balance: amount, Decimals: tok.Decimals})
	}
	return out, nil
}

// RecentTransactions returns the wallet's most recent signatures, newest first.
func (c *Client) RecentTransactions(ctx context.Context, wallet solana.PublicKey, limit int) ([]TransactionInfo, error) {
	if limit <= 0 {
		limit = 5
	}
	sigs, err := c.rpc.GetSignaturesForAddressWithOpts(ctx, wallet, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentFinalized,
	})
	if err != nil {
		return nil, fmt.Errorf("get signatures: %w", err)
	}

	out := make([]TransactionInfo, 0, len(sigs))
	for _, sig := range sigs {
		info := TransactionInfo{
			Signature: sig.Signature.String(),
			Slot:      sig.Slot,
			Failed:    sig.Err != nil,
		}
		if sig.BlockTime != nil {
			info.Time = sig.BlockTime.Time().UTC().Format(time.RFC3339)
		}
		if sig.Memo != nil {
			info.Memo = *sig.Memo
		}
		out = append(out, info)
	}
	return out, nil
}

// LatestBlockhash fetches the blockhash new transactions must reference.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, uint64, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, 0, fmt.Errorf("get latest blockhash: %w", err)
	}
	return out.Value.Blockhash, out.Value.LastValidBlockHeight, nil
}

// AccountExists reports whether the account has been created on chain.
func (c *Client) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	_, err := c.rpc.GetAccountInfo(ctx, account)
	if err != nil {
		if err == rpc.ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("get account info: %w", err)
	}
	return true, nil
}

// Token resolves a configured token by symbol.
func (c *Client) Token(symbol string) (config.Token, bool) {
	tok, ok := c.tokens[symbol]
	return tok, ok
}

// FormatLamports renders lamports as a SOL decimal string.
func FormatLamports(lamports uint64) string {
	whole := lamports / solana.LAMPORTS_PER_SOL
	frac := lamports % solana.LAMPORTS_PER_SOL
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}
	s := fmt.Sprintf("%d.%09d", whole, frac)
	// Trim trailing zeros but keep at least one fractional digit.
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	return s
}
