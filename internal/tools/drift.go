package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/solpilot/solpilot/internal/drift"
	"github.com/solpilot/solpilot/internal/schema"
	chain "github.com/solpilot/solpilot/internal/solana"
)

// DriftService is the slice of the Drift gateway client the perp tools need.
type DriftService interface {
	Configured() bool
	GetBalance(ctx context.Context, wallet string) (*drift.Balance, error)
	GetPositions(ctx context.Context, wallet string) ([]drift.Position, error)
	CreateAccount(ctx context.Context, wallet string) error
	PlacePerpOrder(ctx context.Context, wallet, market, direction string, amountUsdc, leverage float64) (*drift.OrderReceipt, error)
}

// ---------------------------------------------------------------------------
// get_drift_balance
// ---------------------------------------------------------------------------

// DriftBalanceTool reports the caller's Drift sub-account collateral state.
type DriftBalanceTool struct {
	drift DriftService
}

func NewDriftBalanceTool(d DriftService) *DriftBalanceTool {
	return &DriftBalanceTool{drift: d}
}

func (t *DriftBalanceTool) Name() string { return string(ToolDriftBalance) }
func (t *DriftBalanceTool) Description() string {
	return "Get the Drift Protocol account balance, collateral, leverage and unrealized PnL for a wallet."
}
func (t *DriftBalanceTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"walletAddress": {
				"type": "string",
				"description": "Wallet address whose Drift account to inspect"
			}
		},
		"required": ["walletAddress"]
	}`)
}

func (t *DriftBalanceTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	if !t.drift.Configured() {
		return schema.Failure(schema.ErrUnknown, "Drift integration is not configured on this server"), nil
	}
	addr, _ := params["walletAddress"].(string)
	if _, err := chain.ParseAddress(addr); err != nil {
		return schema.Failure(schema.ErrInvalidAddress, fmt.Sprintf("%q is not a valid Solana address", addr)), nil
	}

	bal, err := t.drift.GetBalance(ctx, addr)
	if err != nil {
		if errors.Is(err, drift.ErrNoAccount) {
			return schema.Failure(schema.ErrNoAccount, "no Drift account exists for this wallet; use create_drift_account first"), nil
		}
		return "", err
	}

	positions, err := t.drift.GetPositions(ctx, addr)
	if err != nil && !errors.Is(err, drift.ErrNoAccount) {
		return "", err
	}

	return schema.Success(map[string]any{
		"driftData": map[string]any{
			"hasAccount":      true,
			"accountValue":    bal.AccountValue,
			"totalCollateral": bal.TotalCollateral,
			"freeCollateral":  bal.FreeCollateral,
			"leverage":        bal.Leverage,
			"unrealizedPnl":   bal.UnrealizedPnl,
			"positions":       positions,
		},
	}), nil
}

// ---------------------------------------------------------------------------
// create_drift_account
// ---------------------------------------------------------------------------

// CreateDriftAccountTool initialises a Drift sub-account for the caller.
type CreateDriftAccountTool struct {
	drift DriftService
}

func NewCreateDriftAccountTool(d DriftService) *CreateDriftAccountTool {
	return &CreateDriftAccountTool{drift: d}
}

func (t *CreateDriftAccountTool) Name() string { return string(ToolCreateDriftAccount) }
func (t *CreateDriftAccountTool) Description() string {
	return "Create a Drift Protocol sub-account for the connected wallet. Required before trading perps."
}
func (t *CreateDriftAccountTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *CreateDriftAccountTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	if !t.drift.Configured() {
		return schema.Failure(schema.ErrUnknown, "Drift integration is not configured on this server"), nil
	}
	turn := TurnFrom(ctx)
	if turn.WalletAddress == "" {
		return schema.Failure(schema.ErrInvalidAddress, "no wallet connected"), nil
	}

	if err := t.drift.CreateAccount(ctx, turn.WalletAddress); err != nil {
		return "", err
	}
	return schema.Success(map[string]any{
		"message": "Drift sub-account created. You can now deposit collateral and trade perps.",
	}), nil
}

// ---------------------------------------------------------------------------
// open_perp_position
// ---------------------------------------------------------------------------

// OpenPerpPositionTool opens a market perp position on the caller's Drift
// sub-account.
type OpenPerpPositionTool struct {
	drift DriftService
}

func NewOpenPerpPositionTool(d DriftService) *OpenPerpPositionTool {
	return &OpenPerpPositionTool{drift: d}
}

func (t *OpenPerpPositionTool) Name() string { return string(ToolOpenPerpPosition) }
func (t *OpenPerpPositionTool) Description() string {
	return "Open a perpetual futures position on Drift for the connected wallet's sub-account."
}
func (t *OpenPerpPositionTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"market": {
				"type": "string",
				"description": "Perp market, e.g. SOL-PERP"
			},
			"direction": {
				"type": "string",
				"enum": ["long", "short"],
				"description": "Position direction"
			},
			"amountUsdc": {
				"type": "number",
				"description": "Position size in USDC",
				"exclusiveMinimum": 0
			},
			"leverage": {
				"type": "number",
				"description": "Leverage multiplier (default 1)",
				"minimum": 1,
				"maximum": 10
			}
		},
		"required": ["market", "direction", "amountUsdc"]
	}`)
}

func (t *OpenPerpPositionTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	if !t.drift.Configured() {
		return schema.Failure(schema.ErrUnknown, "Drift integration is not configured on this server"), nil
	}
	turn := TurnFrom(ctx)
	if turn.WalletAddress == "" {
		return schema.Failure(schema.ErrInvalidAddress, "no wallet connected"), nil
	}

	market := strings.ToUpper(stringParam(params, "market", ""))
	direction := stringParam(params, "direction", "")
	amount, ok := floatParam(params, "amountUsdc")
	if !ok || amount <= 0 {
		return schema.Failure(schema.ErrValidation, "amountUsdc must be a positive number"), nil
	}
	leverage, ok := floatParam(params, "leverage")
	if !ok {
		leverage = 1
	}

	receipt, err := t.drift.PlacePerpOrder(ctx, turn.WalletAddress, market, direction, amount, leverage)
	if err != nil {
		if errors.Is(err, drift.ErrNoAccount) {
			return schema.Failure(schema.ErrNoAccount, "no Drift account exists for this wallet; use create_drift_account first"), nil
		}
		if strings.Contains(strings.ToLower(err.Error()), "insufficient") {
			return schema.Failure(schema.ErrInsufficientUSDC, err.Error()), nil
		}
		return "", err
	}

	return schema.Success(map[string]any{
		"orderId":   receipt.OrderID,
		"market":    market,
		"direction": direction,
		"sizeUsdc":  amount,
		"leverage":  leverage,
		"status":    receipt.Status,
	}), nil
}
