package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/shiftdesk/internal/config"
	"github.com/example/shiftdesk/internal/wire"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the shiftdesk config and database",
		Long:  `Write ~/.shiftdesk/config.toml if missing and create the database schema.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path, err := configPath(cmd)
			if err != nil {
				return err
			}

			cfg, err := config.LoadConfig(path)
			if err != nil {
				return err
			}
			if err := config.SaveConfig(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Config at %s\n", path)

			if _, err := wire.Get(); err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			switch cfg.Database.Driver {
			case config.DriverPostgres:
				fmt.Fprintln(out, "✓ Postgres schema migrated")
			default:
				fmt.Fprintf(out, "✓ Database initialized at %s\n", cfg.Database.Path)
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Next steps:")
			fmt.Fprintln(out, "  shiftdesk shift start --employee-id E1 --employee-name \"Asha\" --opening-cash 500")
			fmt.Fprintln(out, "  shiftdesk serve")
			return nil
		},
	}
}
