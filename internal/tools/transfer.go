package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sol "github.com/gagliardetto/solana-go"

	"github.com/solpilot/solpilot/internal/schema"
	chain "github.com/solpilot/solpilot/internal/solana"
)

// TransferBuilder builds unsigned transfer transactions.
type TransferBuilder interface {
	BuildSOLTransfer(ctx context.Context, from, to sol.PublicKey, amountSOL float64) (*chain.UnsignedTransfer, error)
	BuildTokenTransfer(ctx context.Context, from, to sol.PublicKey, symbol string, amount float64) (*chain.UnsignedTransfer, error)
}

// SendTokensTool prepares an unsigned SOL or SPL transfer from the caller's
// wallet. The result must be signed in the user's wallet and broadcast by the
// client; this tool never touches a private key.
type SendTokensTool struct {
	builder TransferBuilder
}

func NewSendTokensTool(builder TransferBuilder) *SendTokensTool {
	return &SendTokensTool{builder: builder}
}

func (t *SendTokensTool) Name() string { return string(ToolSendTokens) }
func (t *SendTokensTool) Description() string {
	return "Prepare an unsigned transaction sending SOL or SPL tokens from the connected wallet to another wallet. The user must review and sign it."
}
func (t *SendTokensTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"toWallet": {
				"type": "string",
				"description": "Recipient wallet address"
			},
			"amount": {
				"type": "number",
				"description": "Amount to send",
				"exclusiveMinimum": 0
			},
			"tokenSymbol": {
				"type": "string",
				"description": "Token symbol, e.g. SOL, USDC. Defaults to SOL."
			}
		},
		"required": ["toWallet", "amount"]
	}`)
}

func (t *SendTokensTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	turn := TurnFrom(ctx)
	if turn.WalletAddress == "" {
		return schema.Failure(schema.ErrInvalidAddress, "no wallet connected; connect a wallet to send tokens"), nil
	}
	from, err := chain.ParseAddress(turn.WalletAddress)
	if err != nil {
		return schema.Failure(schema.ErrInvalidAddress, "connected wallet address is not valid"), nil
	}

	toAddr, _ := params["toWallet"].(string)
	to, err := chain.ParseAddress(toAddr)
	if err != nil {
		return schema.Failure(schema.ErrInvalidAddress, fmt.Sprintf("recipient %q is not a valid Solana address", toAddr)), nil
	}

	amount, ok := floatParam(params, "amount")
	if !ok || amount <= 0 {
		return schema.Failure(schema.ErrValidation, "amount must be a positive number"), nil
	}

	symbol := strings.ToUpper(strings.TrimSpace(stringParam(params, "tokenSymbol", "SOL")))

	var transfer *chain.UnsignedTransfer
	if symbol == "SOL" {
		transfer, err = t.builder.BuildSOLTransfer(ctx, from, to, amount)
	} else {
		transfer, err = t.builder.BuildTokenTransfer(ctx, from, to, symbol, amount)
	}
	if err != nil {
		if strings.Contains(err.Error(), "unknown token") {
			return schema.Failure(schema.ErrValidation, err.Error()), nil
		}
		return "", err
	}

	payload, err := json.Marshal(transfer)
	if err != nil {
		return "", fmt.Errorf("encode transfer: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return "", fmt.Errorf("reshape transfer: %w", err)
	}
	fields["message"] = fmt.Sprintf(
		"Unsigned %s transfer prepared. Review the instructions and sign in your wallet to send %v %s to %s.",
		symbol, amount, symbol, toAddr)

	return schema.Success(fields), nil
}

// stringParam reads a string argument with a default.
func stringParam(params map[string]any, key, def string) string {
	if v, ok := params[key].(string); ok && v != "" {
		return v
	}
	return def
}
