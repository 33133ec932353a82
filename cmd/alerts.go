package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/solpilot/solpilot/internal/config"
	"github.com/solpilot/solpilot/internal/watch"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Manage price alerts",
}

func init() {
	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsRemoveCmd)
}

func alertStorePath() string {
	return filepath.Join(config.DataDir(), "alerts.json")
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered price alerts",
	RunE: func(_ *cobra.Command, _ []string) error {
		svc := watch.NewService(alertStorePath(), 0, nil)
		alerts := svc.AllAlerts()
		if len(alerts) == 0 {
			fmt.Println("No price alerts.")
			return nil
		}
		fmt.Printf("%-10s %-8s %-8s %12s  %-20s %s\n", "ID", "Symbol", "Dir", "Threshold", "Created", "Owner")
		for _, a := range alerts {
			created := time.UnixMilli(a.CreatedAtMs).Format("2006-01-02 15:04")
			fmt.Printf("%-10s %-8s %-8s %12.4f  %-20s %s\n", a.ID, a.Symbol, a.Direction, a.Threshold, created, truncStr(a.Owner, 12))
		}
		return nil
	},
}

var alertsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a price alert by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		id := args[0]
		svc := watch.NewService(alertStorePath(), 0, nil)
		for _, a := range svc.AllAlerts() {
			if a.ID != id {
				continue
			}
			if err := svc.RemoveAlert(a.Owner, id); err != nil {
				return err
			}
			fmt.Printf("✓ Removed alert %s (%s %s %.4f)\n", id, a.Symbol, a.Direction, a.Threshold)
			return nil
		}
		return fmt.Errorf("no alert with id %q", id)
	},
}

func truncStr(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
