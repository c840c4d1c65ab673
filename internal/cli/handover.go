package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/shiftdesk/internal/core/shift"
	"github.com/example/shiftdesk/internal/ports/primary"
	"github.com/example/shiftdesk/internal/wire"
)

// HandoverCmd returns the handover command
func HandoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "handover",
		Short: "Hand the active shift to the next employee",
	}
	cmd.AddCommand(handoverRunCmd())
	cmd.AddCommand(handoverResumeCmd())
	cmd.AddCommand(handoverListCmd())
	return cmd
}

func incomingFlags(cmd *cobra.Command) {
	cmd.Flags().String("employee-id", "", "incoming employee ID (required)")
	cmd.Flags().String("employee-name", "", "incoming employee name (required)")
	cmd.Flags().String("notes", "", "handover notes")
	cmd.Flags().String("pending-issues", "", "open issues for the incoming employee")
	cmd.Flags().String("type", "normal", "change type: normal, emergency, extended or overlap")
	cmd.Flags().String("supervisor", "", "approving supervisor ID")
	cmd.MarkFlagRequired("employee-id")
	cmd.MarkFlagRequired("employee-name")
}

func changeTypeFlag(cmd *cobra.Command) (shift.ChangeType, error) {
	raw, _ := cmd.Flags().GetString("type")
	ct, ok := shift.ParseChangeType(raw)
	if !ok {
		return "", fmt.Errorf("--type: unknown change type %q", raw)
	}
	return ct, nil
}

func handoverRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [current-shift-id]",
		Short: "End the current shift and start the incoming one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			closing, err := moneyFlag(cmd, "closing-cash", true)
			if err != nil {
				return err
			}
			ct, err := changeTypeFlag(cmd)
			if err != nil {
				return err
			}
			id, _ := cmd.Flags().GetString("employee-id")
			name, _ := cmd.Flags().GetString("employee-name")
			notes, _ := cmd.Flags().GetString("notes")
			issues, _ := cmd.Flags().GetString("pending-issues")
			supervisor, _ := cmd.Flags().GetString("supervisor")

			a, err := wire.ShiftAdapterWithOutput(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			_, err = a.Handover(ctx(cmd), primary.HandoverRequest{
				CurrentShiftID:       args[0],
				IncomingEmployeeID:   id,
				IncomingEmployeeName: name,
				ClosingCash:          closing,
				HandoverNotes:        notes,
				PendingIssues:        issues,
				ChangeType:           ct,
				SupervisorID:         supervisor,
			})
			return err
		},
	}
	incomingFlags(cmd)
	cmd.Flags().String("closing-cash", "", "cash counted by the outgoing employee (required)")
	return cmd
}

func handoverResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume [previous-shift-id]",
		Short: "Complete a handover that stopped after the outgoing shift ended",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, err := changeTypeFlag(cmd)
			if err != nil {
				return err
			}
			id, _ := cmd.Flags().GetString("employee-id")
			name, _ := cmd.Flags().GetString("employee-name")
			notes, _ := cmd.Flags().GetString("notes")
			issues, _ := cmd.Flags().GetString("pending-issues")
			supervisor, _ := cmd.Flags().GetString("supervisor")

			a, err := wire.ShiftAdapterWithOutput(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			_, err = a.Resume(ctx(cmd), primary.ResumeHandoverRequest{
				PreviousShiftID:      args[0],
				IncomingEmployeeID:   id,
				IncomingEmployeeName: name,
				HandoverNotes:        notes,
				PendingIssues:        issues,
				ChangeType:           ct,
				SupervisorID:         supervisor,
			})
			return err
		},
	}
	incomingFlags(cmd)
	return cmd
}

func handoverListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List handovers, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			a, err := wire.ShiftAdapterWithOutput(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			_, err = a.ListHandovers(ctx(cmd), limit)
			return err
		},
	}
	cmd.Flags().Int("limit", 20, "most recent N handovers (0 for all)")
	return cmd
}
