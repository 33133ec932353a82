package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/solpilot/solpilot/internal/config"
	"github.com/solpilot/solpilot/internal/jupiter"
	"github.com/solpilot/solpilot/internal/schema"
)

// solMint is the wrapped-SOL mint used by the aggregator for native SOL.
const solMint = "So11111111111111111111111111111111111111112"

// SwapService is the slice of the Jupiter client the swap tools need.
type SwapService interface {
	GetQuote(ctx context.Context, inputMint, outputMint string, rawAmount uint64, slippageBps int) (*jupiter.Quote, error)
	BuildSwapTransaction(ctx context.Context, quote *jupiter.Quote, userWallet string) (string, error)
}

// TokenResolver maps symbols to configured mints.
type TokenResolver interface {
	Token(symbol string) (config.Token, bool)
}

// resolveMint returns (mint, decimals) for a symbol, treating SOL natively.
func resolveMint(tokens TokenResolver, symbol string) (string, uint8, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "SOL" {
		return solMint, 9, nil
	}
	tok, ok := tokens.Token(symbol)
	if !ok {
		return "", 0, fmt.Errorf("unknown token %q", symbol)
	}
	return tok.Mint, tok.Decimals, nil
}

// ---------------------------------------------------------------------------
// get_best_swap_price
// ---------------------------------------------------------------------------

// SwapPriceTool quotes the best route for a token pair.
type SwapPriceTool struct {
	swaps  SwapService
	tokens TokenResolver
}

func NewSwapPriceTool(swaps SwapService, tokens TokenResolver) *SwapPriceTool {
	return &SwapPriceTool{swaps: swaps, tokens: tokens}
}

func (t *SwapPriceTool) Name() string { return string(ToolBestSwapPrice) }
func (t *SwapPriceTool) Description() string {
	return "List the best DEX swap quote for a given token pair and amount."
}
func (t *SwapPriceTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"fromToken": {
				"type": "string",
				"description": "Token symbol to swap from"
			},
			"toToken": {
				"type": "string",
				"description": "Token symbol to swap to"
			},
			"amount": {
				"type": "number",
				"description": "Amount to swap, in fromToken units",
				"exclusiveMinimum": 0
			}
		},
		"required": ["fromToken", "toToken", "amount"]
	}`)
}

func (t *SwapPriceTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	fromSym, _ := params["fromToken"].(string)
	toSym, _ := params["toToken"].(string)
	amount, ok := floatParam(params, "amount")
	if !ok || amount <= 0 {
		return schema.Failure(schema.ErrValidation, "amount must be a positive number"), nil
	}

	inMint, inDecimals, err := resolveMint(t.tokens, fromSym)
	if err != nil {
		return schema.Failure(schema.ErrValidation, err.Error()), nil
	}
	outMint, outDecimals, err := resolveMint(t.tokens, toSym)
	if err != nil {
		return schema.Failure(schema.ErrValidation, err.Error()), nil
	}

	raw := uint64(math.Round(amount * math.Pow10(int(inDecimals))))
	quote, err := t.swaps.GetQuote(ctx, inMint, outMint, raw, 0)
	if err != nil {
		return "", err
	}

	outAmount := scaleRawAmount(quote.OutAmount, outDecimals)
	price := 0.0
	if amount > 0 {
		price = outAmount / amount
	}

	return schema.Success(map[string]any{
		"pair":           fmt.Sprintf("%s/%s", strings.ToUpper(fromSym), strings.ToUpper(toSym)),
		"amount":         amount,
		"expectedOutput": outAmount,
		"bestPrice":      strconv.FormatFloat(price, 'f', -1, 64),
		"priceImpactPct": quote.PriceImpact,
		"route":          strings.Join(quote.RouteLabels(), " → "),
	}), nil
}

// ---------------------------------------------------------------------------
// create_swap_transaction
// ---------------------------------------------------------------------------

// SwapTransactionTool prepares an unsigned swap transaction for the caller's
// wallet via the aggregator.
type SwapTransactionTool struct {
	swaps  SwapService
	tokens TokenResolver
}

func NewSwapTransactionTool(swaps SwapService, tokens TokenResolver) *SwapTransactionTool {
	return &SwapTransactionTool{swaps: swaps, tokens: tokens}
}

func (t *SwapTransactionTool) Name() string { return string(ToolSwapTransaction) }
func (t *SwapTransactionTool) Description() string {
	return "Prepare an unsigned swap transaction for the connected wallet. The user must review and sign it."
}
func (t *SwapTransactionTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"fromToken": {
				"type": "string",
				"description": "Token symbol to swap from"
			},
			"toToken": {
				"type": "string",
				"description": "Token symbol to swap to"
			},
			"amount": {
				"type": "number",
				"description": "Amount to swap, in fromToken units",
				"exclusiveMinimum": 0
			},
			"slippageBps": {
				"type": "integer",
				"description": "Max slippage in basis points (default 50)",
				"minimum": 1,
				"maximum": 1000
			}
		},
		"required": ["fromToken", "toToken", "amount"]
	}`)
}

func (t *SwapTransactionTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	turn := TurnFrom(ctx)
	if turn.WalletAddress == "" {
		return schema.Failure(schema.ErrInvalidAddress, "no wallet connected; connect a wallet to swap"), nil
	}

	fromSym, _ := params["fromToken"].(string)
	toSym, _ := params["toToken"].(string)
	amount, ok := floatParam(params, "amount")
	if !ok || amount <= 0 {
		return schema.Failure(schema.ErrValidation, "amount must be a positive number"), nil
	}
	slippage := intParam(params, "slippageBps", 50)

	inMint, inDecimals, err := resolveMint(t.tokens, fromSym)
	if err != nil {
		return schema.Failure(schema.ErrValidation, err.Error()), nil
	}
	outMint, _, err := resolveMint(t.tokens, toSym)
	if err != nil {
		return schema.Failure(schema.ErrValidation, err.Error()), nil
	}

	raw := uint64(math.Round(amount * math.Pow10(int(inDecimals))))
	quote, err := t.swaps.GetQuote(ctx, inMint, outMint, raw, slippage)
	if err != nil {
		return "", err
	}

	serialized, err := t.swaps.BuildSwapTransaction(ctx, quote, turn.WalletAddress)
	if err != nil {
		return "", err
	}

	return schema.Success(map[string]any{
		"transactionType":       "SWAP",
		"serializedTransaction": serialized,
		"pair":                  fmt.Sprintf("%s/%s", strings.ToUpper(fromSym), strings.ToUpper(toSym)),
		"amount":                amount,
		"slippageBps":           slippage,
		"route":                 strings.Join(quote.RouteLabels(), " → "),
		"instructions": []map[string]any{{
			"type":        "swap",
			"program":     "jupiter",
			"description": fmt.Sprintf("Swap %v %s for %s via %s", amount, strings.ToUpper(fromSym), strings.ToUpper(toSym), strings.Join(quote.RouteLabels(), ", ")),
		}},
		"message": "Unsigned swap transaction prepared. Review and sign in your wallet to execute.",
	}), nil
}

// scaleRawAmount converts a base-unit amount string into token units.
func scaleRawAmount(raw string, decimals uint8) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v / math.Pow10(int(decimals))
}
