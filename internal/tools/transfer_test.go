package tools

import (
	"context"
	"fmt"
	"testing"

	sol "github.com/gagliardetto/solana-go"

	chain "github.com/solpilot/solpilot/internal/solana"
)

const testRecipient = "11111111111111111111111111111111"

type fakeBuilder struct {
	lastSymbol string
}

func (f *fakeBuilder) BuildSOLTransfer(ctx context.Context, from, to sol.PublicKey, amountSOL float64) (*chain.UnsignedTransfer, error) {
	f.lastSymbol = "SOL"
	return &chain.UnsignedTransfer{
		TransactionType:       "transfer",
		SerializedTransaction: "dGVzdA==",
		Blockhash:             "hash",
		LastValidBlockHeight:  42,
		From:                  from.String(),
		To:                    to.String(),
		Amount:                amountSOL,
		Token:                 "SOL",
	}, nil
}

func (f *fakeBuilder) BuildTokenTransfer(ctx context.Context, from, to sol.PublicKey, symbol string, amount float64) (*chain.UnsignedTransfer, error) {
	if symbol == "WAT" {
		return nil, fmt.Errorf("unknown token %q", symbol)
	}
	f.lastSymbol = symbol
	return &chain.UnsignedTransfer{
		TransactionType:       "transfer",
		SerializedTransaction: "dG9rZW4=",
		Token:                 symbol,
		Amount:                amount,
	}, nil
}

func TestSendTokensNoWalletConnected(t *testing.T) {
	tool := NewSendTokensTool(&fakeBuilder{})

	// No TurnContext on the context: the wallet is unknown.
	raw, err := tool.Execute(context.Background(), map[string]any{
		"toWallet": testRecipient,
		"amount":   1.0,
	})
	if err != nil {
		t.Fatalf("missing wallet must be a tagged failure, not an error: %v", err)
	}
	res := decodeResult(t, raw)
	if res["success"] != false {
		t.Fatal("expected tagged failure without a connected wallet")
	}
	if res["errorType"] != "invalid_address" {
		t.Errorf("errorType = %v", res["errorType"])
	}
}

func TestSendTokensWalletFromContextNotParams(t *testing.T) {
	builder := &fakeBuilder{}
	tool := NewSendTokensTool(builder)

	ctx := WithTurn(context.Background(), TurnContext{WalletAddress: testWallet})
	raw, err := tool.Execute(ctx, map[string]any{
		"toWallet": testRecipient,
		"amount":   0.5,
		// A fromWallet argument must be ignored even if the model sends one.
		"fromWallet": testRecipient,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	res := decodeResult(t, raw)
	if res["success"] != true {
		t.Fatalf("expected success, got %v", res)
	}
	if res["from"] != testWallet {
		t.Errorf("from = %v, want the context wallet %s", res["from"], testWallet)
	}
	if res["serializedTransaction"] != "dGVzdA==" {
		t.Errorf("serializedTransaction = %v", res["serializedTransaction"])
	}
}

func TestSendTokensBadRecipient(t *testing.T) {
	tool := NewSendTokensTool(&fakeBuilder{})
	ctx := WithTurn(context.Background(), TurnContext{WalletAddress: testWallet})

	raw, err := tool.Execute(ctx, map[string]any{"toWallet": "garbage", "amount": 1.0})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	res := decodeResult(t, raw)
	if res["success"] != false || res["errorType"] != "invalid_address" {
		t.Errorf("expected invalid_address failure, got %v", res)
	}
}

func TestSendTokensSPLDispatch(t *testing.T) {
	builder := &fakeBuilder{}
	tool := NewSendTokensTool(builder)
	ctx := WithTurn(context.Background(), TurnContext{WalletAddress: testWallet})

	raw, err := tool.Execute(ctx, map[string]any{
		"toWallet":    testRecipient,
		"amount":      10.0,
		"tokenSymbol": "usdc",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	res := decodeResult(t, raw)
	if res["success"] != true {
		t.Fatalf("expected success, got %v", res)
	}
	if builder.lastSymbol != "USDC" {
		t.Errorf("symbol not upcased before dispatch: %q", builder.lastSymbol)
	}
}

func TestSendTokensUnknownToken(t *testing.T) {
	tool := NewSendTokensTool(&fakeBuilder{})
	ctx := WithTurn(context.Background(), TurnContext{WalletAddress: testWallet})

	raw, err := tool.Execute(ctx, map[string]any{
		"toWallet":    testRecipient,
		"amount":      1.0,
		"tokenSymbol": "WAT",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	res := decodeResult(t, raw)
	if res["success"] != false || res["errorType"] != "validation" {
		t.Errorf("expected validation failure for unknown token, got %v", res)
	}
}
