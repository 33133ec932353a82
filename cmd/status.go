package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/solpilot/solpilot/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show solpilot status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := config.ConfigPath()

	fmt.Printf("%s solpilot Status\n\n", logo)

	_, statErr := os.Stat(cfgPath)
	cfgMark := "✗"
	if statErr == nil {
		cfgMark = "✓"
	}
	fmt.Printf("Config:    %s %s\n", cfgPath, cfgMark)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	dataDir := config.DataDir()
	_, dataErr := os.Stat(dataDir)
	dataMark := "✗"
	if dataErr == nil {
		dataMark = "✓"
	}
	fmt.Printf("Data dir:  %s %s\n", dataDir, dataMark)
	fmt.Printf("Model:     %s\n", cfg.Agent.Model)
	fmt.Printf("Port:      %d\n\n", cfg.Server.Port)

	keyMark := "(not set)"
	if cfg.Providers.APIKey != "" {
		keyMark = "✓"
	}
	fmt.Printf("Provider:  %-12s %s\n", cfg.Providers.Name, keyMark)

	fmt.Printf("RPC:       %s\n", cfg.Solana.RPCEndpoint)
	signerMark := "(not set)"
	if cfg.Solana.SignerKeyPath != "" {
		if _, err := os.Stat(cfg.Solana.SignerKeyPath); err == nil {
			signerMark = "✓ " + cfg.Solana.SignerKeyPath
		} else {
			signerMark = "✗ " + cfg.Solana.SignerKeyPath
		}
	}
	fmt.Printf("Signer:    %s\n", signerMark)

	symbols := make([]string, 0, len(cfg.Solana.Tokens))
	for symbol := range cfg.Solana.Tokens {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	fmt.Printf("Tokens:    SOL")
	for _, symbol := range symbols {
		fmt.Printf(", %s", symbol)
	}
	fmt.Println()

	fmt.Println("\nDelivery:")
	tgMark := "(disabled)"
	if cfg.Notify.Telegram.Enabled {
		tgMark = "✓"
	}
	slackMark := "(disabled)"
	if cfg.Notify.Slack.Enabled {
		slackMark = "✓"
	}
	fmt.Printf("  %-10s %s\n", "Telegram", tgMark)
	fmt.Printf("  %-10s %s\n", "Slack", slackMark)
	return nil
}
