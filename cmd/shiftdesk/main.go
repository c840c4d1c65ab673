package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/shiftdesk/internal/cli"
	"github.com/example/shiftdesk/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "shiftdesk",
		Short:   "shiftdesk - shift tracking for a parking facility",
		Version: version.String(),
		Long: `shiftdesk tracks who is on duty at the gate, hands the cash drawer from
one employee to the next, and attributes every vehicle and payment to a shift.`,
		SilenceUsage: true,
	}
	cli.AddGlobalFlags(rootCmd)

	// Setup
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.ConfigCmd())

	// Shifts and handovers
	rootCmd.AddCommand(cli.ShiftCmd())
	rootCmd.AddCommand(cli.HandoverCmd())

	// Ledger and linkage
	rootCmd.AddCommand(cli.VehicleCmd())
	rootCmd.AddCommand(cli.LinkCmd())
	rootCmd.AddCommand(cli.ReconcileCmd())

	// Server
	rootCmd.AddCommand(cli.ServeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
