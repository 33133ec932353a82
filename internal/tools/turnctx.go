package tools

import "context"

type turnCtxKey struct{}

// TurnContext carries per-turn caller identity to tool Execute bodies.
//
// WalletAddress is the authenticated caller's wallet, injected by the
// transport layer. Tools must take the acting wallet from here, never from
// model-generated arguments, so the model cannot impersonate another caller.
type TurnContext struct {
	WalletAddress string
	SessionKey    string
}

// WithTurn returns a ctx carrying tc.
func WithTurn(ctx context.Context, tc TurnContext) context.Context {
	return context.WithValue(ctx, turnCtxKey{}, tc)
}

// TurnFrom extracts the TurnContext from ctx, or a zero value.
func TurnFrom(ctx context.Context) TurnContext {
	if tc, ok := ctx.Value(turnCtxKey{}).(TurnContext); ok {
		return tc
	}
	return TurnContext{}
}
