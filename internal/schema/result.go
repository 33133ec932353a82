package schema

import "encoding/json"

// ErrorType is the machine-readable tag carried by failed tool results.
type ErrorType string

const (
	ErrNoAccount        ErrorType = "no_account"
	ErrInvalidAddress   ErrorType = "invalid_address"
	ErrRateLimit        ErrorType = "rate_limit"
	ErrTimeout          ErrorType = "timeout"
	ErrNetwork          ErrorType = "network"
	ErrInsufficientSOL  ErrorType = "insufficient_sol"
	ErrInsufficientUSDC ErrorType = "insufficient_usdc"
	ErrValidation       ErrorType = "validation"
	ErrUnknown          ErrorType = "unknown"
)

// Success serialises a tool success payload. The success marker is always
// present so the renderer can pick a template without probing fields.
func Success(fields map[string]any) string {
	out := map[string]any{"success": true}
	for k, v := range fields {
		out[k] = v
	}
	data, err := json.Marshal(out)
	if err != nil {
		return `{"success":false,"error":"failed to encode tool result","errorType":"unknown"}`
	}
	return string(data)
}

// Failure serialises an expected-failure tool payload.
func Failure(errType ErrorType, msg string) string {
	data, _ := json.Marshal(map[string]any{
		"success":   false,
		"error":     msg,
		"errorType": string(errType),
	})
	return string(data)
}
