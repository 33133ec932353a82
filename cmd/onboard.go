package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/solpilot/solpilot/internal/config"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize configuration and data directory",
	RunE:  runOnboard,
}

func runOnboard(_ *cobra.Command, _ []string) error {
	cfgPath := config.ConfigPath()

	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Config already exists at %s\n", cfgPath)
		fmt.Printf("Press Enter to refresh (keep existing values) or Ctrl+C to cancel: ")
		fmt.Scanln()
		existing, loadErr := config.Load(cfgPath)
		if loadErr != nil {
			def := config.DefaultConfig()
			existing = &def
		}
		if err := config.Save(existing, cfgPath); err != nil {
			return err
		}
		fmt.Printf("✓ Config refreshed at %s\n", cfgPath)
	} else {
		cfg := config.DefaultConfig()
		cfg.Agent.PersonaPath = filepath.Join(config.DataDir(), "persona.md")
		if err := config.Save(&cfg, cfgPath); err != nil {
			return err
		}
		fmt.Printf("✓ Created config at %s\n", cfgPath)
	}

	dataDir := config.DataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	fmt.Printf("✓ Data dir at %s\n", dataDir)

	createPersonaTemplate(dataDir)

	fmt.Printf("\n%s solpilot is ready!\n\n", logo)
	fmt.Println("Next steps:")
	fmt.Printf("  1. Add your API key to %s\n", cfgPath)
	fmt.Println("  2. Point solana.rpcEndpoint at your RPC node")
	fmt.Printf("  3. Chat: solpilot chat -m \"what's the SOL price?\"\n")
	fmt.Println("  4. Serve the web UI: solpilot serve")
	return nil
}

func createPersonaTemplate(dataDir string) {
	p := filepath.Join(dataDir, "persona.md")
	if _, err := os.Stat(p); err == nil {
		return
	}

	template := `---
name: SolPilot
description: Solana trading copilot
---
You are SolPilot, a conversational assistant for Solana wallets and trading.

## Personality

- Precise with numbers, never rounds amounts silently
- Explains every transaction before handing it over for signing
- Says so plainly when a request cannot be done

## Boundaries

- Never asks for or handles private keys
- Transfers and swaps are prepared unsigned; the user signs in their wallet
`
	if err := os.WriteFile(p, []byte(template), 0o644); err == nil {
		fmt.Printf("  Created %s\n", filepath.Base(p))
	}
}
