package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.json")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	def := DefaultConfig()
	if cfg.Agent.Model != def.Agent.Model {
		t.Errorf("expected default model %q, got %q", def.Agent.Model, cfg.Agent.Model)
	}
	if cfg.Solana.RPCEndpoint != def.Solana.RPCEndpoint {
		t.Errorf("expected default RPC endpoint, got %q", cfg.Solana.RPCEndpoint)
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"agent": map[string]any{
			"model":     "gpt-4o",
			"maxTokens": 2048,
		},
		"server": map[string]any{"port": 9191},
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Agent.Model != "gpt-4o" {
		t.Errorf("expected model %q, got %q", "gpt-4o", cfg.Agent.Model)
	}
	if cfg.Agent.MaxTokens != 2048 {
		t.Errorf("expected maxTokens 2048, got %d", cfg.Agent.MaxTokens)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("expected port 9191, got %d", cfg.Server.Port)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte("{not valid json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for corrupt config")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := DefaultConfig()
	cfg.Server.Port = 4242
	cfg.Drift.GatewayBase = "http://localhost:8876"
	if err := Save(&cfg, path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Server.Port != 4242 {
		t.Errorf("expected port 4242, got %d", loaded.Server.Port)
	}
	if loaded.Drift.GatewayBase != "http://localhost:8876" {
		t.Errorf("drift gateway not round-tripped: %q", loaded.Drift.GatewayBase)
	}
}

func TestTimeoutDefaults(t *testing.T) {
	var a AgentConfig
	if a.TurnTimeout().Seconds() != 120 {
		t.Errorf("expected 120s turn timeout default, got %v", a.TurnTimeout())
	}
	if a.ToolTimeout().Seconds() != 30 {
		t.Errorf("expected 30s tool timeout default, got %v", a.ToolTimeout())
	}
	a.TurnTimeoutSec = 5
	a.ToolTimeoutSec = 2
	if a.TurnTimeout().Seconds() != 5 || a.ToolTimeout().Seconds() != 2 {
		t.Errorf("configured timeouts not honoured: %v %v", a.TurnTimeout(), a.ToolTimeout())
	}
}
