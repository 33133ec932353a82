package session

import (
	"testing"

	"github.com/solpilot/solpilot/internal/schema"
)

func strptr(s string) *string { return &s }

func TestDuplicateToolCallIDRejected(t *testing.T) {
	s := NewSession("web:abc")
	s.AddUser("check my balance")

	calls := []schema.ToolCall{{ID: "call_1", Name: "get_wallet_balance", Arguments: map[string]any{}}}
	if err := s.AddAssistant(nil, calls, nil); err != nil {
		t.Fatalf("first AddAssistant: %v", err)
	}

	err := s.AddAssistant(nil, []schema.ToolCall{{ID: "call_1", Name: "get_token_price"}}, nil)
	if err == nil {
		t.Fatal("reused tool call id accepted")
	}
	if s.Len() != 2 {
		t.Errorf("rejected append must not modify transcript, len = %d", s.Len())
	}
	if !s.HasCallID("call_1") {
		t.Error("issued id should be reported by HasCallID")
	}
	if s.HasCallID("call_2") {
		t.Error("never-issued id reported by HasCallID")
	}
}

func TestDuplicateToolResultRejected(t *testing.T) {
	s := NewSession("web:abc")
	s.AddAssistant(nil, []schema.ToolCall{{ID: "call_1", Name: "get_wallet_balance"}}, nil)

	if err := s.AddToolResult("call_1", "get_wallet_balance", `{"success":true}`); err != nil {
		t.Fatalf("first result: %v", err)
	}
	if err := s.AddToolResult("call_1", "get_wallet_balance", `{"success":true}`); err == nil {
		t.Fatal("duplicate tool result accepted")
	}
	if err := s.AddToolResult("call_9", "get_wallet_balance", `{}`); err == nil {
		t.Fatal("result for never-issued call id accepted")
	}
}

func TestTurnGuard(t *testing.T) {
	s := NewSession("web:abc")
	if err := s.BeginTurn(); err != nil {
		t.Fatalf("BeginTurn: %v", err)
	}
	if err := s.BeginTurn(); err == nil {
		t.Fatal("second concurrent turn accepted")
	}
	s.EndTurn()
	if err := s.BeginTurn(); err != nil {
		t.Fatalf("BeginTurn after EndTurn: %v", err)
	}
}

func TestHistoryWindowNeverOpensOnToolResult(t *testing.T) {
	s := NewSession("web:abc")
	s.AddUser("one")
	s.AddAssistant(nil, []schema.ToolCall{{ID: "c1", Name: "get_wallet_balance"}}, nil)
	s.AddToolResult("c1", "get_wallet_balance", `{"success":true}`)
	s.AddAssistant(strptr("done"), nil, nil)

	// A window of 2 would start on the tool result; it must widen to include
	// the assistant message that issued the call.
	h := s.History(3)
	if h.Messages[0].Role != "assistant" || len(h.Messages[0].ToolCalls) == 0 {
		t.Errorf("window opens on %q, want the tool-calling assistant message", h.Messages[0].Role)
	}
}

func TestManagerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	s := m.GetOrCreate("web:wallet1")
	s.AddUser("what is my balance?")
	if err := s.AddAssistant(nil, []schema.ToolCall{{ID: "call_1", Name: "get_wallet_balance", Arguments: map[string]any{"walletAddress": "abc"}}}, nil); err != nil {
		t.Fatalf("AddAssistant: %v", err)
	}
	if err := s.AddToolResult("call_1", "get_wallet_balance", `{"success":true}`); err != nil {
		t.Fatalf("AddToolResult: %v", err)
	}
	s.AddAssistant(strptr("You have 2.5 SOL."), nil, nil)

	if err := m.Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Reload through a fresh manager to force a disk read.
	m2, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	loaded := m2.GetOrCreate("web:wallet1")
	if loaded.Len() != 4 {
		t.Fatalf("expected 4 messages after reload, have %d", loaded.Len())
	}

	// Call ID tracking must survive the round trip.
	if err := loaded.AddToolResult("call_1", "get_wallet_balance", `{}`); err == nil {
		t.Error("duplicate result accepted after reload")
	}

	msgs := loaded.Snapshot().Messages
	if len(msgs[1].ToolCalls) != 1 || msgs[1].ToolCalls[0].ID != "call_1" {
		t.Errorf("tool calls not restored: %+v", msgs[1])
	}
	if msgs[2].Role != "tool" || msgs[2].ToolCallID != "call_1" {
		t.Errorf("tool result not restored: %+v", msgs[2])
	}
}

func TestGetOrCreateCaches(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	a := m.GetOrCreate("k")
	b := m.GetOrCreate("k")
	if a != b {
		t.Error("expected the same session instance from the cache")
	}
	m.Invalidate("k")
	c := m.GetOrCreate("k")
	if a == c {
		t.Error("expected a fresh session after Invalidate")
	}
}
