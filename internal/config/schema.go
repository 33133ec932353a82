package config

import (
	"os"
	"time"
)

// Config is the root configuration for solpilot.
type Config struct {
	Agent     AgentConfig     `json:"agent"`
	Providers ProvidersConfig `json:"providers"`
	Server    ServerConfig    `json:"server"`
	Solana    SolanaConfig    `json:"solana"`
	Jupiter   JupiterConfig   `json:"jupiter"`
	Drift     DriftConfig     `json:"drift"`
	News      NewsConfig      `json:"news"`
	Notify    NotifyConfig    `json:"notify"`
}

// AgentConfig holds dispatcher settings.
type AgentConfig struct {
	Model        string  `json:"model"`
	MaxTokens    int     `json:"maxTokens"`
	Temperature  float64 `json:"temperature"`
	MaxIter      int     `json:"maxIter"`
	MemoryWindow int     `json:"memoryWindow"`
	PersonaPath  string  `json:"personaPath"`
	// Timeouts in seconds; zero means the default.
	TurnTimeoutSec int `json:"turnTimeoutSec"`
	ToolTimeoutSec int `json:"toolTimeoutSec"`
}

// TurnTimeout returns the per-turn deadline.
func (a AgentConfig) TurnTimeout() time.Duration {
	if a.TurnTimeoutSec > 0 {
		return time.Duration(a.TurnTimeoutSec) * time.Second
	}
	return 120 * time.Second
}

// ToolTimeout returns the per-tool-call deadline.
func (a AgentConfig) ToolTimeout() time.Duration {
	if a.ToolTimeoutSec > 0 {
		return time.Duration(a.ToolTimeoutSec) * time.Second
	}
	return 30 * time.Second
}

// ProvidersConfig selects and configures the LLM backend.
type ProvidersConfig struct {
	Name         string            `json:"name"` // "openai" | "anthropic" | "openrouter"
	APIKey       string            `json:"apiKey"`
	APIBase      string            `json:"apiBase"`
	ExtraHeaders map[string]string `json:"extraHeaders,omitempty"`
}

// ServerConfig holds the HTTP gateway settings.
type ServerConfig struct {
	Port int `json:"port"`
}

// SolanaConfig points at the RPC endpoint and the backend signer.
//
// SignerKeyPath is the solana-keygen JSON file for the process-wide
// sub-account signer. It is loaded once at startup; nothing in a request can
// select a different key.
type SolanaConfig struct {
	RPCEndpoint   string           `json:"rpcEndpoint"`
	SignerKeyPath string           `json:"signerKeyPath"`
	Tokens        map[string]Token `json:"tokens"` // symbol → mint
}

// Token describes one SPL token the assistant knows how to handle.
type Token struct {
	Mint     string `json:"mint"`
	Decimals uint8  `json:"decimals"`
}

// JupiterConfig holds the Jupiter aggregator endpoints.
type JupiterConfig struct {
	QuoteAPIBase string `json:"quoteApiBase"`
	PriceAPIBase string `json:"priceApiBase"`
	PriceFeedWS  string `json:"priceFeedWs"`
}

// DriftConfig points at a self-hosted Drift gateway.
type DriftConfig struct {
	GatewayBase string `json:"gatewayBase"`
}

// NewsConfig configures the market news tool.
type NewsConfig struct {
	SearchAPIKey string `json:"searchApiKey"`
	MaxResults   int    `json:"maxResults"`
}

// NotifyConfig configures alert delivery sinks.
type NotifyConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Slack    SlackConfig    `json:"slack"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	ChatID  int64  `json:"chatId"`
}

type SlackConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"botToken"`
	Channel  string `json:"channel"`
}

// DefaultConfig returns the built-in defaults. Secrets come from the
// environment so a fresh install works without editing the file.
func DefaultConfig() Config {
	return Config{
		Agent: AgentConfig{
			Model:        "gpt-4o-mini",
			MaxTokens:    4096,
			Temperature:  0.2,
			MaxIter:      8,
			MemoryWindow: 50,
		},
		Providers: ProvidersConfig{
			Name:   "openai",
			APIKey: os.Getenv("OPENAI_API_KEY"),
		},
		Server: ServerConfig{Port: 8080},
		Solana: SolanaConfig{
			RPCEndpoint: "https://api.devnet.solana.com",
			Tokens: map[string]Token{
				"USDC": {Mint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6},
				"BONK": {Mint: "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", Decimals: 5},
			},
		},
		Jupiter: JupiterConfig{
			QuoteAPIBase: "https://quote-api.jup.ag/v6",
			PriceAPIBase: "https://price.jup.ag/v6",
			PriceFeedWS:  "wss://price.jup.ag/v4/ws",
		},
		News: NewsConfig{
			SearchAPIKey: os.Getenv("BRAVE_API_KEY"),
			MaxResults:   5,
		},
	}
}
