package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/shiftdesk/internal/ports/primary"
	"github.com/example/shiftdesk/internal/wire"
)

// ShiftCmd returns the shift command
func ShiftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shift",
		Short: "Start, end and inspect shifts",
	}
	cmd.AddCommand(shiftStartCmd())
	cmd.AddCommand(shiftEndCmd())
	cmd.AddCommand(shiftEmergencyEndCmd())
	cmd.AddCommand(shiftActiveCmd())
	cmd.AddCommand(shiftListCmd())
	cmd.AddCommand(shiftShowCmd())
	cmd.AddCommand(shiftReportCmd())
	cmd.AddCommand(shiftStatsCmd())
	cmd.AddCommand(shiftValidateLinksCmd())
	return cmd
}

func shiftStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Open a shift (fails while another shift is active)",
		RunE: func(cmd *cobra.Command, args []string) error {
			employeeID, _ := cmd.Flags().GetString("employee-id")
			employeeName, _ := cmd.Flags().GetString("employee-name")
			notes, _ := cmd.Flags().GetString("notes")
			opening, err := moneyFlag(cmd, "opening-cash", false)
			if err != nil {
				return err
			}

			a, err := wire.ShiftAdapterWithOutput(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			_, err = a.Start(ctx(cmd), primary.StartShiftRequest{
				EmployeeID:   employeeID,
				EmployeeName: employeeName,
				OpeningCash:  opening,
				Notes:        notes,
			})
			return err
		},
	}
	cmd.Flags().String("employee-id", "", "employee ID (required)")
	cmd.Flags().String("employee-name", "", "employee name (required)")
	cmd.Flags().String("opening-cash", "0", "cash in the drawer")
	cmd.Flags().String("notes", "", "shift notes")
	cmd.MarkFlagRequired("employee-id")
	cmd.MarkFlagRequired("employee-name")
	return cmd
}

func shiftEndCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "end [shift-id]",
		Short: "Close the active shift",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			closing, err := moneyFlag(cmd, "closing-cash", true)
			if err != nil {
				return err
			}
			notes, _ := cmd.Flags().GetString("notes")

			a, err := wire.ShiftAdapterWithOutput(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			_, err = a.End(ctx(cmd), primary.EndShiftRequest{ShiftID: args[0], ClosingCash: closing, Notes: notes})
			return err
		},
	}
	cmd.Flags().String("closing-cash", "", "cash counted at close (required)")
	cmd.Flags().String("notes", "", "closing notes")
	return cmd
}

func shiftEmergencyEndCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emergency-end [shift-id]",
		Short: "Close the active shift without a successor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason, _ := cmd.Flags().GetString("reason")
			a, err := wire.ShiftAdapterWithOutput(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			_, err = a.EmergencyEnd(ctx(cmd), primary.EmergencyEndRequest{ShiftID: args[0], Reason: reason})
			return err
		},
	}
	cmd.Flags().String("reason", "", "why the shift ended (required)")
	cmd.MarkFlagRequired("reason")
	return cmd
}

func shiftActiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "active",
		Short: "Show the active shift",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := wire.ShiftAdapterWithOutput(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			_, err = a.Active(ctx(cmd))
			return err
		},
	}
}

func shiftListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List shifts, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")
			a, err := wire.ShiftAdapterWithOutput(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			_, err = a.List(ctx(cmd), primary.ListShiftsRequest{Status: status, Limit: limit})
			return err
		},
	}
	cmd.Flags().String("status", "", "filter by status (active, completed, emergency_ended)")
	cmd.Flags().Int("limit", 20, "most recent N shifts (0 for all)")
	return cmd
}

func shiftShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [shift-id]",
		Short: "Show shift details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := wire.ShiftAdapterWithOutput(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			_, err = a.Show(ctx(cmd), args[0])
			return err
		},
	}
}

func shiftReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report [shift-id]",
		Short: "Generate the report of a shift",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := wire.ShiftAdapterWithOutput(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			_, err = a.Report(ctx(cmd), args[0])
			return err
		},
	}
}

func shiftStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats [shift-id]",
		Short: "Show the live counters of a shift",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := wire.VehicleAdapterWithOutput(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			_, err = a.Stats(ctx(cmd), args[0])
			return err
		},
	}
}

func shiftValidateLinksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-links [shift-id]",
		Short: "Count linked and unlinked entries in a shift's window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := wire.VehicleAdapterWithOutput(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			_, err = a.ValidateLinks(ctx(cmd), args[0])
			return err
		},
	}
}
