package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/shiftdesk/internal/ports/primary"
	"github.com/example/shiftdesk/internal/wire"
)

// VehicleCmd returns the vehicle command
func VehicleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vehicle",
		Short: "Record vehicle entries, exits and payments",
	}
	cmd.AddCommand(vehicleEntryCmd())
	cmd.AddCommand(vehicleExitCmd())
	cmd.AddCommand(vehiclePayCmd())
	cmd.AddCommand(vehicleParkedCmd())
	cmd.AddCommand(vehicleFeesCmd())
	return cmd
}

// timeFlag reads an optional RFC 3339 time flag.
func timeFlag(cmd *cobra.Command, name string) (*time.Time, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("--%s: %q is not an RFC 3339 time", name, raw)
	}
	t = t.UTC()
	return &t, nil
}

func vehicleEntryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entry [vehicle-number]",
		Short: "Record a vehicle entering",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := timeFlag(cmd, "at")
			if err != nil {
				return err
			}
			vehicleType, _ := cmd.Flags().GetString("type")
			transport, _ := cmd.Flags().GetString("transport")
			driver, _ := cmd.Flags().GetString("driver")

			a, err := wire.VehicleAdapterWithOutput(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			_, err = a.Entry(ctx(cmd), primary.RecordEntryRequest{
				VehicleNumber: args[0],
				VehicleType:   vehicleType,
				TransportName: transport,
				DriverName:    driver,
				EntryTime:     at,
			})
			return err
		},
	}
	cmd.Flags().String("type", "", "vehicle type: Trailer, 6 Wheeler, 4 Wheeler, 2 Wheeler (required)")
	cmd.Flags().String("transport", "", "transport company")
	cmd.Flags().String("driver", "", "driver name")
	cmd.Flags().String("at", "", "entry time (RFC 3339, default now)")
	cmd.MarkFlagRequired("type")
	return cmd
}

func vehicleExitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exit [entry-id]",
		Short: "Record a vehicle leaving and compute its fee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := timeFlag(cmd, "at")
			if err != nil {
				return err
			}
			a, err := wire.VehicleAdapterWithOutput(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			_, err = a.Exit(ctx(cmd), primary.RecordExitRequest{EntryID: args[0], ExitTime: at})
			return err
		},
	}
	cmd.Flags().String("at", "", "exit time (RFC 3339, default now)")
	return cmd
}

func vehiclePayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pay [entry-id]",
		Short: "Record a payment (defaults to the computed fee)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := moneyFlag(cmd, "amount", false)
			if err != nil {
				return err
			}
			mode, _ := cmd.Flags().GetString("mode")
			a, err := wire.VehicleAdapterWithOutput(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			_, err = a.Pay(ctx(cmd), primary.RecordPaymentRequest{EntryID: args[0], PaymentMode: mode, Amount: amount})
			return err
		},
	}
	cmd.Flags().String("mode", "Cash", "payment mode: Cash, Card or UPI")
	cmd.Flags().String("amount", "", "amount paid (default the computed fee)")
	return cmd
}

func vehicleParkedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parked",
		Short: "List vehicles currently inside",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := wire.VehicleAdapterWithOutput(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			_, err = a.Parked(ctx(cmd))
			return err
		},
	}
}

func vehicleFeesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fees",
		Short: "Show the tariff",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := wire.VehicleAdapterWithOutput(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			a.Fees()
			return nil
		},
	}
}
