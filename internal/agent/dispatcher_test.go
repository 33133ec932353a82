package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/solpilot/solpilot/internal/config"
	"github.com/solpilot/solpilot/internal/schema"
	"github.com/solpilot/solpilot/internal/session"
	"github.com/solpilot/solpilot/internal/tools"
)

// scriptedProvider replays a fixed sequence of responses.
type scriptedProvider struct {
	responses []schema.LLMResponse
	errs      []error
	calls     int
}

func (p *scriptedProvider) Chat(ctx context.Context, messages schema.Messages, defs []map[string]any, opts schema.ChatOptions) (schema.LLMResponse, error) {
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return schema.LLMResponse{}, p.errs[i]
	}
	if i >= len(p.responses) {
		return schema.LLMResponse{}, errors.New("script exhausted")
	}
	return p.responses[i], nil
}

func (p *scriptedProvider) DefaultModel() string { return "test-model" }

// blockingProvider waits for ctx cancellation.
type blockingProvider struct{}

func (blockingProvider) Chat(ctx context.Context, messages schema.Messages, defs []map[string]any, opts schema.ChatOptions) (schema.LLMResponse, error) {
	<-ctx.Done()
	return schema.LLMResponse{}, ctx.Err()
}
func (blockingProvider) DefaultModel() string { return "test-model" }

// recordingTool captures how it was invoked.
type recordingTool struct {
	name     string
	params   string
	result   string
	err      error
	panics   bool
	delay    time.Duration
	doneCh   chan string // receives the tool name on completion, if set
	executed atomic.Int32
	wallet   atomic.Value // last wallet seen from the turn context
}

func (r *recordingTool) Name() string        { return r.name }
func (r *recordingTool) Description() string { return "test tool" }
func (r *recordingTool) Parameters() json.RawMessage {
	if r.params == "" {
		return json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return json.RawMessage(r.params)
}
func (r *recordingTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	r.executed.Add(1)
	r.wallet.Store(tools.TurnFrom(ctx).WalletAddress)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if r.doneCh != nil {
		r.doneCh <- r.name
	}
	if r.panics {
		panic("boom")
	}
	return r.result, r.err
}

func textResponse(s string) schema.LLMResponse {
	return schema.LLMResponse{Content: &s, FinishReason: "stop"}
}

func toolResponse(calls ...schema.ToolCallRequest) schema.LLMResponse {
	return schema.LLMResponse{ToolCalls: calls, FinishReason: "tool_calls"}
}

func testConfig() config.AgentConfig {
	return config.AgentConfig{
		Model:          "test-model",
		MaxTokens:      1024,
		MaxIter:        4,
		MemoryWindow:   50,
		TurnTimeoutSec: 10,
		ToolTimeoutSec: 5,
	}
}

func collect(t *testing.T, events <-chan schema.Event) []schema.Event {
	t.Helper()
	var out []schema.Event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatalf("event stream did not close; so far: %v", out)
		}
	}
}

func joinedText(events []schema.Event) string {
	var sb strings.Builder
	for _, ev := range events {
		if ev.Kind == schema.EventTextDelta {
			sb.WriteString(ev.Text)
		}
	}
	return sb.String()
}

func runTurn(t *testing.T, provider schema.LLMProvider, reg *tools.Registry, turn tools.TurnContext) (*session.Session, []schema.Event) {
	t.Helper()
	d := NewDispatcher(provider, reg, nil, testConfig())
	sess := session.NewSession("test")
	events := collect(t, d.RunTurn(context.Background(), sess, "hello", turn))
	return sess, events
}

func TestPlainTextTurn(t *testing.T) {
	provider := &scriptedProvider{responses: []schema.LLMResponse{
		textResponse("Your balance looks healthy today."),
	}}
	sess, events := runTurn(t, provider, tools.NewRegistry(), tools.TurnContext{})

	if got := joinedText(events); got != "Your balance looks healthy today." {
		t.Errorf("joined deltas = %q", got)
	}
	last := events[len(events)-1]
	if last.Kind != schema.EventTurnEnd {
		t.Fatalf("stream must end with turn-end, got %s", last.Kind)
	}
	if sess.Len() != 2 {
		t.Errorf("session should hold user + assistant, len = %d", sess.Len())
	}
}

func TestToolCallRoundTrip(t *testing.T) {
	tool := &recordingTool{name: "get_wallet_balance", result: `{"success":true,"balances":{}}`}
	reg := tools.NewRegistry()
	reg.MustRegister(tool)

	provider := &scriptedProvider{responses: []schema.LLMResponse{
		toolResponse(schema.ToolCallRequest{ID: "call_1", Name: "get_wallet_balance", Arguments: map[string]any{}}),
		textResponse("You have 2.5 SOL."),
	}}

	_, events := runTurn(t, provider, reg, tools.TurnContext{WalletAddress: "wallet123"})

	var startIdx, resultIdx, endIdx = -1, -1, -1
	for i, ev := range events {
		switch ev.Kind {
		case schema.EventToolCallStart:
			startIdx = i
			if ev.CallID != "call_1" || ev.ToolName != "get_wallet_balance" {
				t.Errorf("bad start event: %+v", ev)
			}
		case schema.EventToolCallResult:
			resultIdx = i
			if ev.CallID != "call_1" {
				t.Errorf("result callId = %q, want call_1", ev.CallID)
			}
			if ev.Result != tool.result {
				t.Errorf("result payload = %q", ev.Result)
			}
		case schema.EventTurnEnd:
			endIdx = i
		}
	}
	if startIdx == -1 || resultIdx == -1 || endIdx == -1 {
		t.Fatalf("missing events: %v", events)
	}
	if !(startIdx < resultIdx && resultIdx < endIdx) {
		t.Errorf("event ordering wrong: start=%d result=%d end=%d", startIdx, resultIdx, endIdx)
	}

	if tool.executed.Load() != 1 {
		t.Errorf("tool executed %d times", tool.executed.Load())
	}
	if w, _ := tool.wallet.Load().(string); w != "wallet123" {
		t.Errorf("tool saw wallet %q from context", w)
	}
}

func TestValidationFailurePreventsExecution(t *testing.T) {
	tool := &recordingTool{
		name:   "send_tokens",
		params: `{"type":"object","properties":{"amount":{"type":"number"}},"required":["amount"]}`,
	}
	reg := tools.NewRegistry()
	reg.MustRegister(tool)

	provider := &scriptedProvider{responses: []schema.LLMResponse{
		toolResponse(schema.ToolCallRequest{ID: "c1", Name: "send_tokens", Arguments: map[string]any{"amount": "ten"}}),
		textResponse("That amount was not valid."),
	}}

	_, events := runTurn(t, provider, reg, tools.TurnContext{})

	if tool.executed.Load() != 0 {
		t.Fatal("tool executed despite schema violation")
	}
	for _, ev := range events {
		if ev.Kind == schema.EventToolCallResult {
			var res map[string]any
			if err := json.Unmarshal([]byte(ev.Result), &res); err != nil {
				t.Fatalf("result not JSON: %v", err)
			}
			if res["success"] != false || res["errorType"] != "validation" {
				t.Errorf("expected tagged validation failure, got %v", res)
			}
			return
		}
	}
	t.Fatal("no tool-call-result event for the rejected call")
}

func TestFaultIsolationAcrossParallelCalls(t *testing.T) {
	good := &recordingTool{name: "good_tool", result: `{"success":true,"value":1}`}
	bad := &recordingTool{name: "bad_tool", panics: true}
	reg := tools.NewRegistry()
	reg.MustRegister(good, bad)

	provider := &scriptedProvider{responses: []schema.LLMResponse{
		toolResponse(
			schema.ToolCallRequest{ID: "c1", Name: "good_tool", Arguments: map[string]any{}},
			schema.ToolCallRequest{ID: "c2", Name: "bad_tool", Arguments: map[string]any{}},
		),
		textResponse("One tool failed, here is what I found."),
	}}

	_, events := runTurn(t, provider, reg, tools.TurnContext{})

	results := map[string]string{}
	for _, ev := range events {
		if ev.Kind == schema.EventToolCallResult {
			results[ev.CallID] = ev.Result
		}
	}
	if len(results) != 2 {
		t.Fatalf("expected results for both calls, have %d", len(results))
	}
	var failed map[string]any
	if err := json.Unmarshal([]byte(results["c2"]), &failed); err != nil {
		t.Fatalf("panic result not JSON: %v", err)
	}
	if failed["success"] != false {
		t.Error("panicking tool must yield a tagged failure")
	}
	if events[len(events)-1].Kind != schema.EventTurnEnd {
		t.Error("turn must still complete after a tool fault")
	}
}

func TestOutOfOrderToolCompletion(t *testing.T) {
	done := make(chan string, 2)
	slow := &recordingTool{name: "get_recent_transactions", result: `{"success":true,"transactions":[]}`, delay: 150 * time.Millisecond, doneCh: done}
	fast := &recordingTool{name: "get_token_price", result: `{"success":true,"price":150}`, doneCh: done}
	reg := tools.NewRegistry()
	reg.MustRegister(slow, fast)

	provider := &scriptedProvider{responses: []schema.LLMResponse{
		toolResponse(
			schema.ToolCallRequest{ID: "c-slow", Name: "get_recent_transactions", Arguments: map[string]any{}},
			schema.ToolCallRequest{ID: "c-fast", Name: "get_token_price", Arguments: map[string]any{}},
		),
		textResponse("Here is your activity and the price."),
	}}

	_, events := runTurn(t, provider, reg, tools.TurnContext{})

	// The second call finishes first.
	if first := <-done; first != "get_token_price" {
		t.Fatalf("fast tool should complete first, got %s", first)
	}
	<-done

	var resultIDs []string
	results := map[string]string{}
	for _, ev := range events {
		if ev.Kind == schema.EventToolCallResult {
			resultIDs = append(resultIDs, ev.CallID)
			results[ev.CallID] = ev.Result
		}
	}
	if len(resultIDs) != 2 || resultIDs[0] != "c-slow" || resultIDs[1] != "c-fast" {
		t.Fatalf("result events must follow request order, got %v", resultIDs)
	}
	if results["c-slow"] != slow.result {
		t.Errorf("c-slow result = %q, attribution swapped?", results["c-slow"])
	}
	if results["c-fast"] != fast.result {
		t.Errorf("c-fast result = %q, attribution swapped?", results["c-fast"])
	}
	if events[len(events)-1].Kind != schema.EventTurnEnd {
		t.Error("turn must complete")
	}
}

func TestToolErrorBecomesTaggedResult(t *testing.T) {
	tool := &recordingTool{name: "get_token_price", err: fmt.Errorf("dial tcp: connection refused")}
	reg := tools.NewRegistry()
	reg.MustRegister(tool)

	provider := &scriptedProvider{responses: []schema.LLMResponse{
		toolResponse(schema.ToolCallRequest{ID: "c1", Name: "get_token_price", Arguments: map[string]any{}}),
		textResponse("The price service is unreachable right now."),
	}}

	_, events := runTurn(t, provider, reg, tools.TurnContext{})

	for _, ev := range events {
		if ev.Kind == schema.EventToolCallResult {
			var res map[string]any
			if err := json.Unmarshal([]byte(ev.Result), &res); err != nil {
				t.Fatalf("result not JSON: %v", err)
			}
			if res["errorType"] != "network" {
				t.Errorf("errorType = %v, want network", res["errorType"])
			}
			return
		}
	}
	t.Fatal("no tool-call-result event")
}

func TestUnknownToolIsTaggedFailure(t *testing.T) {
	provider := &scriptedProvider{responses: []schema.LLMResponse{
		toolResponse(schema.ToolCallRequest{ID: "c1", Name: "no_such_tool", Arguments: map[string]any{}}),
		textResponse("I don't have that capability."),
	}}

	_, events := runTurn(t, provider, tools.NewRegistry(), tools.TurnContext{})

	found := false
	for _, ev := range events {
		if ev.Kind == schema.EventToolCallResult {
			found = true
			var res map[string]any
			_ = json.Unmarshal([]byte(ev.Result), &res)
			if res["success"] != false {
				t.Errorf("expected failure payload for unknown tool, got %v", res)
			}
		}
	}
	if !found {
		t.Fatal("unknown tool produced no result event")
	}
	if events[len(events)-1].Kind != schema.EventTurnEnd {
		t.Error("turn must complete after an unknown tool call")
	}
}

func TestDuplicateCallIDsRemapped(t *testing.T) {
	tool := &recordingTool{name: "get_token_price", result: `{"success":true}`}
	reg := tools.NewRegistry()
	reg.MustRegister(tool)

	provider := &scriptedProvider{responses: []schema.LLMResponse{
		toolResponse(
			schema.ToolCallRequest{ID: "dup", Name: "get_token_price", Arguments: map[string]any{}},
			schema.ToolCallRequest{ID: "dup", Name: "get_token_price", Arguments: map[string]any{}},
		),
		textResponse("Both prices fetched."),
	}}

	sess, events := runTurn(t, provider, reg, tools.TurnContext{})

	ids := map[string]bool{}
	for _, ev := range events {
		if ev.Kind == schema.EventToolCallStart {
			if ids[ev.CallID] {
				t.Fatalf("call id %q reused in start events", ev.CallID)
			}
			ids[ev.CallID] = true
		}
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 distinct call ids, have %d", len(ids))
	}
	if tool.executed.Load() != 2 {
		t.Errorf("both calls should execute, ran %d", tool.executed.Load())
	}
	if events[len(events)-1].Kind != schema.EventTurnEnd {
		t.Error("turn must complete")
	}
	_ = sess
}

func TestLaggingReaderStillGetsTurnEnd(t *testing.T) {
	// Exactly enough deltas to fill the stream buffer, against a reader that
	// only starts draining after the dispatcher has filled it. The closing
	// event must wait for the reader, not vanish. Each 25-char word splits
	// into one delta.
	long := strings.Repeat("123456789012345678901234 ", 64)
	provider := &scriptedProvider{responses: []schema.LLMResponse{textResponse(long)}}

	d := NewDispatcher(provider, tools.NewRegistry(), nil, testConfig())
	sess := session.NewSession("test")
	events := d.RunTurn(context.Background(), sess, "hello", tools.TurnContext{})

	time.Sleep(300 * time.Millisecond)

	collected := collect(t, events)
	if len(collected) == 0 {
		t.Fatal("no events")
	}
	last := collected[len(collected)-1]
	if last.Kind != schema.EventTurnEnd {
		t.Fatalf("stream closed with %s, want turn-end", last.Kind)
	}
	if got := joinedText(collected); got != long {
		t.Errorf("deltas lost under backpressure: got %d bytes, want %d", len(got), len(long))
	}
}

func TestCallIDReusedAcrossIterationsRemapped(t *testing.T) {
	tool := &recordingTool{name: "get_token_price", result: `{"success":true}`}
	reg := tools.NewRegistry()
	reg.MustRegister(tool)

	// The model reuses "c1" in a later iteration of the same turn.
	provider := &scriptedProvider{responses: []schema.LLMResponse{
		toolResponse(schema.ToolCallRequest{ID: "c1", Name: "get_token_price", Arguments: map[string]any{}}),
		toolResponse(schema.ToolCallRequest{ID: "c1", Name: "get_token_price", Arguments: map[string]any{}}),
		textResponse("Both prices fetched."),
	}}

	_, events := runTurn(t, provider, reg, tools.TurnContext{})

	ids := map[string]bool{}
	for _, ev := range events {
		if ev.Kind == schema.EventToolCallStart {
			if ids[ev.CallID] {
				t.Fatalf("call id %q reused across iterations", ev.CallID)
			}
			ids[ev.CallID] = true
		}
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 distinct call ids, have %d", len(ids))
	}
	if tool.executed.Load() != 2 {
		t.Errorf("both calls should execute, ran %d", tool.executed.Load())
	}
	last := events[len(events)-1]
	if last.Kind != schema.EventTurnEnd {
		t.Fatalf("terminal event = %s, want turn-end", last.Kind)
	}
}

func TestProviderErrorEndsTurnWithError(t *testing.T) {
	provider := &scriptedProvider{errs: []error{errors.New("upstream 500")}}
	_, events := runTurn(t, provider, tools.NewRegistry(), tools.TurnContext{})

	if len(events) == 0 {
		t.Fatal("expected a turn-error event")
	}
	last := events[len(events)-1]
	if last.Kind != schema.EventTurnError {
		t.Fatalf("terminal event = %s, want turn-error", last.Kind)
	}
	if last.Error == "" {
		t.Error("turn-error should carry a message")
	}
}

func TestProviderErrorAfterToolsPreservesStreamedOutput(t *testing.T) {
	tool := &recordingTool{name: "get_wallet_balance", result: `{"success":true}`}
	reg := tools.NewRegistry()
	reg.MustRegister(tool)

	partial := "Checking your balance."
	provider := &scriptedProvider{
		responses: []schema.LLMResponse{
			{Content: &partial, ToolCalls: []schema.ToolCallRequest{{ID: "c1", Name: "get_wallet_balance", Arguments: map[string]any{}}}},
		},
		errs: []error{nil, errors.New("upstream 500")},
	}

	_, events := runTurn(t, provider, reg, tools.TurnContext{})

	if got := joinedText(events); got != partial {
		t.Errorf("streamed text before the failure = %q, want %q", got, partial)
	}
	sawResult := false
	for _, ev := range events {
		if ev.Kind == schema.EventToolCallResult {
			sawResult = true
		}
	}
	if !sawResult {
		t.Error("tool result emitted before the failure must be preserved")
	}
	if events[len(events)-1].Kind != schema.EventTurnError {
		t.Errorf("terminal event = %s, want turn-error", events[len(events)-1].Kind)
	}
}

func TestCancelledTurnClosesWithoutTerminal(t *testing.T) {
	d := NewDispatcher(blockingProvider{}, tools.NewRegistry(), nil, testConfig())
	sess := session.NewSession("test")

	ctx, cancel := context.WithCancel(context.Background())
	events := d.RunTurn(ctx, sess, "hello", tools.TurnContext{})
	cancel()

	collected := collect(t, events)
	for _, ev := range collected {
		if ev.Kind == schema.EventTurnEnd {
			t.Errorf("abandoned turn must not emit turn-end")
		}
	}
}

func TestMaxIterationsEndsTurn(t *testing.T) {
	tool := &recordingTool{name: "get_token_price", result: `{"success":true}`}
	reg := tools.NewRegistry()
	reg.MustRegister(tool)

	// Every response requests another tool call; the loop must cut off.
	var responses []schema.LLMResponse
	for i := 0; i < 10; i++ {
		responses = append(responses, toolResponse(
			schema.ToolCallRequest{ID: fmt.Sprintf("c%d", i), Name: "get_token_price", Arguments: map[string]any{}},
		))
	}
	provider := &scriptedProvider{responses: responses}

	_, events := runTurn(t, provider, reg, tools.TurnContext{})

	last := events[len(events)-1]
	if last.Kind != schema.EventTurnEnd || last.Reason != "max-iterations" {
		t.Fatalf("terminal = %+v, want turn-end with max-iterations", last)
	}
	if int(tool.executed.Load()) != testConfig().MaxIter {
		t.Errorf("tool ran %d times, want %d", tool.executed.Load(), testConfig().MaxIter)
	}
}

func TestSecondConcurrentTurnRefused(t *testing.T) {
	d := NewDispatcher(blockingProvider{}, tools.NewRegistry(), nil, testConfig())
	sess := session.NewSession("test")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := d.RunTurn(ctx, sess, "one", tools.TurnContext{})

	// Give the first turn a moment to take the guard.
	time.Sleep(50 * time.Millisecond)

	second := collect(t, d.RunTurn(context.Background(), sess, "two", tools.TurnContext{}))
	if len(second) != 1 || second[0].Kind != schema.EventTurnError {
		t.Fatalf("second turn should fail fast with turn-error, got %v", second)
	}

	cancel()
	collect(t, first)
}

func TestPersonaInjectedAsSystemPrompt(t *testing.T) {
	var sawSystem string
	provider := &capturingProvider{onChat: func(messages schema.Messages) {
		if messages.Len() > 0 && messages.Messages[0].Role == "system" {
			sawSystem = messages.Messages[0].Text()
		}
	}}

	d := NewDispatcher(provider, tools.NewRegistry(), NewPersona(""), testConfig())
	sess := session.NewSession("test")
	collect(t, d.RunTurn(context.Background(), sess, "hi", tools.TurnContext{WalletAddress: "walletXYZ"}))

	if !strings.Contains(sawSystem, "SolPilot") {
		t.Error("system prompt missing persona body")
	}
	if !strings.Contains(sawSystem, "walletXYZ") {
		t.Error("system prompt missing connected wallet")
	}
}

// capturingProvider lets a test inspect the outgoing conversation.
type capturingProvider struct {
	onChat func(messages schema.Messages)
}

func (p *capturingProvider) Chat(ctx context.Context, messages schema.Messages, defs []map[string]any, opts schema.ChatOptions) (schema.LLMResponse, error) {
	if p.onChat != nil {
		p.onChat(messages)
	}
	return textResponse("ok"), nil
}
func (p *capturingProvider) DefaultModel() string { return "test-model" }
