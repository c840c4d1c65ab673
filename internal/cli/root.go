// Package cli contains the cobra commands of the shiftdesk binary.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/example/shiftdesk/internal/ctxutil"
	"github.com/example/shiftdesk/internal/wire"
)

// AddGlobalFlags registers the persistent flags and wires the logger and
// config path before any subcommand runs.
func AddGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().String("config", "", "config file (default ~/.shiftdesk/config.toml)")
	root.PersistentFlags().String("log-format", "text", "log format: text or json")
	root.PersistentFlags().BoolP("verbose", "v", false, "debug logging")
	root.PersistentFlags().String("operator", "", "operator ID recorded in logs")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("log-format")
		verbose, _ := cmd.Flags().GetBool("verbose")
		logger, err := newLogger(cmd.ErrOrStderr(), format, verbose)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)

		path, _ := cmd.Flags().GetString("config")
		wire.Configure(path, logger)

		if op, _ := cmd.Flags().GetString("operator"); op != "" {
			cmd.SetContext(ctxutil.WithOperatorID(cmd.Context(), op))
		}
		return nil
	}
	root.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return wire.Shutdown()
	}
}

func newLogger(w io.Writer, format string, verbose bool) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: slog.LevelWarn}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q (want text or json)", format)
}

// moneyFlag reads a decimal flag. Empty means zero unless required.
func moneyFlag(cmd *cobra.Command, name string, required bool) (decimal.Decimal, error) {
	raw, _ := cmd.Flags().GetString(name)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			return decimal.Decimal{}, fmt.Errorf("--%s is required", name)
		}
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("--%s: %q is not an amount", name, raw)
	}
	return d, nil
}

// ctx returns the command context, never nil.
func ctx(cmd *cobra.Command) context.Context {
	if c := cmd.Context(); c != nil {
		return c
	}
	return context.Background()
}
