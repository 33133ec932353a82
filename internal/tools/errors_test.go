package tools

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/solpilot/solpilot/internal/drift"
	"github.com/solpilot/solpilot/internal/jupiter"
	"github.com/solpilot/solpilot/internal/schema"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want schema.ErrorType
	}{
		{"deadline", context.DeadlineExceeded, schema.ErrTimeout},
		{"wrapped deadline", fmt.Errorf("quote: %w", context.DeadlineExceeded), schema.ErrTimeout},
		{"rate limited", jupiter.ErrRateLimited, schema.ErrRateLimit},
		{"no drift account", drift.ErrNoAccount, schema.ErrNoAccount},
		{"connection refused", errors.New("dial tcp 127.0.0.1:8899: connection refused"), schema.ErrNetwork},
		{"dns failure", errors.New("lookup quote-api.jup.ag: no such host"), schema.ErrNetwork},
		{"rate limit text", errors.New("429: rate limit exceeded"), schema.ErrRateLimit},
		{"opaque", errors.New("something odd"), schema.ErrUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyError(tc.err); got != tc.want {
				t.Errorf("ClassifyError(%v) = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
}

func TestFailureFromErrorIsTagged(t *testing.T) {
	raw := FailureFromError(fmt.Errorf("fetch positions: %w", drift.ErrNoAccount))
	res := decodeResult(t, raw)
	if res["success"] != false {
		t.Fatal("expected failure payload")
	}
	if res["errorType"] != "no_account" {
		t.Errorf("errorType = %v", res["errorType"])
	}
	if res["error"] == "" {
		t.Error("error message missing")
	}
}
