// Package tools implements the tool registry and the built-in tool catalogue.
package tools

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/solpilot/solpilot/internal/schema"
)

// ToolName is the canonical name of a built-in tool.
type ToolName string

const (
	ToolWalletBalance      ToolName = "get_wallet_balance"
	ToolRecentTransactions ToolName = "get_recent_transactions"
	ToolPortfolioSummary   ToolName = "get_portfolio_summary"
	ToolSendTokens         ToolName = "send_tokens"
	ToolBestSwapPrice      ToolName = "get_best_swap_price"
	ToolSwapTransaction    ToolName = "create_swap_transaction"
	ToolTokenPrice         ToolName = "get_token_price"
	ToolDriftBalance       ToolName = "get_drift_balance"
	ToolCreateDriftAccount ToolName = "create_drift_account"
	ToolOpenPerpPosition   ToolName = "open_perp_position"
	ToolMarketNews         ToolName = "get_market_news"
	ToolCreatePriceAlert   ToolName = "create_price_alert"
	ToolListPriceAlerts    ToolName = "list_price_alerts"
	ToolCancelPriceAlert   ToolName = "cancel_price_alert"
)

// Registry holds the fixed, name-keyed set of tools handed to the dispatcher.
// It is populated once at boot and read-only afterwards, so all sessions
// share it without locking.
type Registry struct {
	tools map[string]schema.Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]schema.Tool)}
}

// Register adds a tool. A name collision is a configuration bug and is fatal
// at boot, so it returns an error instead of overwriting.
func (r *Registry) Register(t schema.Tool) error {
	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = t
	return nil
}

// MustRegister registers each tool and panics on collision. Boot-time only.
func (r *Registry) MustRegister(ts ...schema.Tool) {
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Resolve returns the tool with the given name. A miss is a recoverable
// condition the dispatcher reports back to the model, not an error here.
func (r *Registry) Resolve(name string) (schema.Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Definitions returns all tool definitions in OpenAI function-calling format,
// in stable name order.
func (r *Registry) Definitions() []map[string]any {
	list := make([]map[string]any, 0, len(r.tools))
	for _, name := range r.Names() {
		t := r.tools[name]
		var params any
		if err := json.Unmarshal(t.Parameters(), &params); err != nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		list = append(list, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name(),
				"description": t.Description(),
				"parameters":  params,
			},
		})
	}
	return list
}
