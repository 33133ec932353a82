// Package cmd implements the solpilot CLI using cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"
const logo = "🧭"

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "solpilot",
	Short: logo + " solpilot — Solana trading copilot",
	Long:  logo + " solpilot — a conversational assistant for Solana wallets, swaps, and perps",
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version

	rootCmd.AddCommand(onboardCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(toolsCmd)
}
