package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <run-id>",
		Short: "Clear a run's event log, keeping its printed identifiers",
		Long: `Clear a run's event log, keeping its printed identifiers.

Deletes every event in all four stores (vitals, medication administrations,
alert acknowledgments, notes) atomically and appends one system note
describing the reset. Run patients and barcode entries are untouched:
printed wristbands and labels keep working without reprinting.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			eng, s, err := rootOpts.openEngine()
			if err != nil {
				return err
			}
			defer s.Close()

			report, err := eng.ResetRun(cmd.Context(), rootOpts.actor(), args[0])
			if err != nil {
				return opError(formatter, err)
			}

			if formatter.Format == "json" {
				return formatter.Success(map[string]any{
					"run_id":     report.RunID,
					"deleted":    report.Deleted,
					"total":      report.Total,
					"generation": report.Generation,
					"reset_at":   report.ResetAt,
				})
			}

			fmt.Fprintf(formatter.Writer, "✓ Run reset: %d event(s) deleted\n", report.Total)
			fmt.Fprintf(formatter.Writer, "  vitals: %d, medications: %d, alerts: %d, notes: %d\n",
				report.Deleted.Vitals, report.Deleted.MedAdmin, report.Deleted.AlertAck, report.Deleted.Notes)
			formatter.VerboseLog("generation now %d", report.Generation)
			return nil
		},
	}
}
