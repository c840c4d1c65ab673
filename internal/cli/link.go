package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/shiftdesk/internal/ports/primary"
	"github.com/example/shiftdesk/internal/wire"
)

// LinkCmd returns the link command
func LinkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Attach sessions, payments and exits to shifts",
	}
	cmd.AddCommand(linkSessionCmd())
	cmd.AddCommand(linkPaymentCmd())
	cmd.AddCommand(linkExitCmd())
	return cmd
}

func linkSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session [entry-id]",
		Short: "Link a parking session to the active shift",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vehicleType, _ := cmd.Flags().GetString("type")
			mode, _ := cmd.Flags().GetString("mode")
			a, err := wire.VehicleAdapterWithOutput(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			_, err = a.LinkSession(ctx(cmd), primary.LinkSessionRequest{SessionID: args[0], VehicleType: vehicleType, PaymentMode: mode})
			return err
		},
	}
	cmd.Flags().String("type", "", "vehicle type override")
	cmd.Flags().String("mode", "", "payment mode")
	return cmd
}

func linkPaymentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payment [payment-id]",
		Short: "Count a payment against the active shift",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := moneyFlag(cmd, "amount", true)
			if err != nil {
				return err
			}
			mode, _ := cmd.Flags().GetString("mode")
			session, _ := cmd.Flags().GetString("session")
			a, err := wire.VehicleAdapterWithOutput(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			_, err = a.LinkPayment(ctx(cmd), primary.LinkPaymentRequest{
				PaymentID:   args[0],
				Amount:      amount,
				PaymentMode: mode,
				SessionID:   session,
			})
			return err
		},
	}
	cmd.Flags().String("amount", "", "amount paid (required)")
	cmd.Flags().String("mode", "Cash", "payment mode: Cash, Card or UPI")
	cmd.Flags().String("session", "", "ledger entry the payment settles")
	return cmd
}

func linkExitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exit [entry-id]",
		Short: "Count a vehicle exit against a shift",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shiftID, _ := cmd.Flags().GetString("shift")
			vehicleType, _ := cmd.Flags().GetString("type")
			minutes, _ := cmd.Flags().GetInt64("minutes")
			a, err := wire.VehicleAdapterWithOutput(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			_, err = a.LinkExit(ctx(cmd), primary.ExitStatsRequest{
				SessionID:       args[0],
				ShiftID:         shiftID,
				VehicleType:     vehicleType,
				DurationMinutes: minutes,
			})
			return err
		},
	}
	cmd.Flags().String("shift", "", "shift to count the exit on (required)")
	cmd.Flags().String("type", "", "vehicle type")
	cmd.Flags().Int64("minutes", 0, "stay duration in minutes")
	cmd.MarkFlagRequired("shift")
	return cmd
}

// ReconcileCmd returns the reconcile command
func ReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Assign unlinked entries to the shift whose window contains them",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := wire.VehicleAdapterWithOutput(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			_, err = a.Reconcile(ctx(cmd))
			return err
		},
	}
}
