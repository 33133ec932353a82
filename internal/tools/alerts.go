package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/solpilot/solpilot/internal/schema"
)

// AlertSummary is the tool-facing view of a registered price alert.
type AlertSummary struct {
	ID        string  `json:"id"`
	Symbol    string  `json:"symbol"`
	Direction string  `json:"direction"`
	Threshold float64 `json:"threshold"`
}

// AlertServicer is implemented by the price watch service. Defined here so
// the tools package does not depend on the scheduler internals.
type AlertServicer interface {
	AddAlert(owner, symbol, direction string, threshold float64) (AlertSummary, error)
	ListAlerts(owner string) []AlertSummary
	RemoveAlert(owner, id string) error
}

// ---------------------------------------------------------------------------
// create_price_alert
// ---------------------------------------------------------------------------

// CreatePriceAlertTool registers a price threshold watch for the caller.
type CreatePriceAlertTool struct {
	alerts AlertServicer
}

func NewCreatePriceAlertTool(alerts AlertServicer) *CreatePriceAlertTool {
	return &CreatePriceAlertTool{alerts: alerts}
}

func (t *CreatePriceAlertTool) Name() string { return string(ToolCreatePriceAlert) }
func (t *CreatePriceAlertTool) Description() string {
	return "Create a price alert that notifies the user when a token crosses a USD threshold."
}
func (t *CreatePriceAlertTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"symbol": {
				"type": "string",
				"description": "Token symbol to watch, e.g. SOL"
			},
			"direction": {
				"type": "string",
				"enum": ["above", "below"],
				"description": "Fire when the price moves above or below the threshold"
			},
			"threshold": {
				"type": "number",
				"description": "USD price threshold",
				"exclusiveMinimum": 0
			}
		},
		"required": ["symbol", "direction", "threshold"]
	}`)
}

func (t *CreatePriceAlertTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	turn := TurnFrom(ctx)
	symbol := strings.ToUpper(stringParam(params, "symbol", ""))
	direction := stringParam(params, "direction", "")
	threshold, ok := floatParam(params, "threshold")
	if !ok || threshold <= 0 {
		return schema.Failure(schema.ErrValidation, "threshold must be a positive number"), nil
	}

	if turn.WalletAddress == "" {
		return schema.Failure(schema.ErrInvalidAddress, "no wallet is connected; connect a wallet before creating alerts"), nil
	}

	alert, err := t.alerts.AddAlert(turn.WalletAddress, symbol, direction, threshold)
	if err != nil {
		return schema.Failure(schema.ErrValidation, err.Error()), nil
	}

	return schema.Success(map[string]any{
		"alertId":   alert.ID,
		"symbol":    alert.Symbol,
		"direction": alert.Direction,
		"threshold": alert.Threshold,
		"message":   fmt.Sprintf("Alert created: notify when %s moves %s $%g.", alert.Symbol, alert.Direction, alert.Threshold),
	}), nil
}

// ---------------------------------------------------------------------------
// list_price_alerts
// ---------------------------------------------------------------------------

// ListPriceAlertsTool lists the caller's active price alerts.
type ListPriceAlertsTool struct {
	alerts AlertServicer
}

func NewListPriceAlertsTool(alerts AlertServicer) *ListPriceAlertsTool {
	return &ListPriceAlertsTool{alerts: alerts}
}

func (t *ListPriceAlertsTool) Name() string { return string(ToolListPriceAlerts) }
func (t *ListPriceAlertsTool) Description() string {
	return "List the connected wallet's active price alerts."
}
func (t *ListPriceAlertsTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *ListPriceAlertsTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	turn := TurnFrom(ctx)
	alerts := t.alerts.ListAlerts(turn.WalletAddress)
	return schema.Success(map[string]any{"alerts": alerts}), nil
}

// ---------------------------------------------------------------------------
// cancel_price_alert
// ---------------------------------------------------------------------------

// CancelPriceAlertTool removes one of the caller's alerts.
type CancelPriceAlertTool struct {
	alerts AlertServicer
}

func NewCancelPriceAlertTool(alerts AlertServicer) *CancelPriceAlertTool {
	return &CancelPriceAlertTool{alerts: alerts}
}

func (t *CancelPriceAlertTool) Name() string { return string(ToolCancelPriceAlert) }
func (t *CancelPriceAlertTool) Description() string {
	return "Cancel a price alert by id."
}
func (t *CancelPriceAlertTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"id": {
				"type": "string",
				"description": "Alert id, as returned by create_price_alert or list_price_alerts"
			}
		},
		"required": ["id"]
	}`)
}

func (t *CancelPriceAlertTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	turn := TurnFrom(ctx)
	id := stringParam(params, "id", "")
	if err := t.alerts.RemoveAlert(turn.WalletAddress, id); err != nil {
		return schema.Failure(schema.ErrValidation, err.Error()), nil
	}
	return schema.Success(map[string]any{
		"cancelled": id,
	}), nil
}
