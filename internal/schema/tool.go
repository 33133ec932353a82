// Package schema contains the core contracts shared across solpilot packages.
// Concrete implementations live in their respective packages; this package is
// the single canonical source of truth for every shared type.
package schema

import (
	"context"
	"encoding/json"
)

// Tool is the interface all LLM-callable tools must satisfy.
//
// Execute receives arguments already validated against Parameters() plus the
// per-turn caller context carried in ctx. Expected domain failures (bad
// address, insufficient balance, no account) are encoded in the returned JSON
// via Failure; they are data, not errors. A non-nil error means an
// infrastructure fault (RPC down, timeout) that the dispatcher converts into
// a tagged tool-error result.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON Schema (as raw JSON bytes) for this tool's parameters.
	Parameters() json.RawMessage
	Execute(ctx context.Context, params map[string]any) (string, error)
}
