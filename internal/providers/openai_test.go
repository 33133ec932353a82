package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/solpilot/solpilot/internal/schema"
)

func TestRepairJSON(t *testing.T) {
	cases := []struct {
		in      string
		wantKey string
	}{
		{`{"walletAddress":"ABC123"}`, "walletAddress"},
		{`{"walletAddress":"ABC123"}garbage`, "walletAddress"},
		{``, ""},
	}
	for _, c := range cases {
		out, err := repairJSON(c.in)
		if err != nil {
			t.Fatalf("repairJSON(%q): %v", c.in, err)
		}
		if c.wantKey != "" {
			if _, ok := out[c.wantKey]; !ok {
				t.Errorf("repairJSON(%q): missing key %q", c.in, c.wantKey)
			}
		}
	}
}

func TestParseOpenAIResponse_ToolCalls(t *testing.T) {
	raw := []byte(`{
		"choices":[{"message":{
			"content":null,
			"tool_calls":[{"id":"call_1","function":{"name":"get_wallet_balance","arguments":"{\"walletAddress\":\"ABC123\"}"}}]
		},"finish_reason":"tool_calls"}],
		"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}
	}`)

	resp, err := parseOpenAIResponse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !resp.HasToolCalls() {
		t.Fatal("expected tool calls")
	}
	tc := resp.ToolCalls[0]
	if tc.ID != "call_1" || tc.Name != "get_wallet_balance" {
		t.Errorf("unexpected tool call: %+v", tc)
	}
	if tc.Arguments["walletAddress"] != "ABC123" {
		t.Errorf("arguments not parsed: %+v", tc.Arguments)
	}
	if resp.FinishReason != "tool_calls" {
		t.Errorf("finish reason: %q", resp.FinishReason)
	}
}

func TestParseAnthropicResponse(t *testing.T) {
	raw := []byte(`{
		"content":[
			{"type":"text","text":"Checking balances."},
			{"type":"tool_use","id":"toolu_1","name":"get_wallet_balance","input":{"walletAddress":"ABC123"}}
		],
		"stop_reason":"tool_use",
		"usage":{"input_tokens":12,"output_tokens":7}
	}`)

	resp, err := parseAnthropicResponse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if resp.Content == nil || *resp.Content != "Checking balances." {
		t.Errorf("content: %v", resp.Content)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].ID != "toolu_1" {
		t.Errorf("tool calls: %+v", resp.ToolCalls)
	}
	if resp.FinishReason != "tool_calls" {
		t.Errorf("finish reason: %q", resp.FinishReason)
	}
}

func TestChat_OpenAIWireFormat(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hi"},"finish_reason":"stop"}],"usage":{}}`))
	}))
	defer srv.Close()

	p := New("openai", "test-key", srv.URL, "gpt-4o-mini", nil)

	msgs := schema.NewMessages()
	msgs.AddSystem("persona")
	msgs.AddUser("hello")

	resp, err := p.Chat(context.Background(), msgs, []map[string]any{
		{"type": "function", "function": map[string]any{"name": "t", "parameters": map[string]any{}}},
	}, schema.NewChatOptions("", 128, 0))
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content == nil || *resp.Content != "hi" {
		t.Errorf("content: %v", resp.Content)
	}
	if gotBody["model"] != "gpt-4o-mini" {
		t.Errorf("default model not applied: %v", gotBody["model"])
	}
	if gotBody["tool_choice"] != "auto" {
		t.Errorf("tool_choice missing: %v", gotBody["tool_choice"])
	}
}
