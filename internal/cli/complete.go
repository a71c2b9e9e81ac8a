package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCompleteCommand creates the complete command.
func NewCompleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <run-id>",
		Short: "Archive a run's summary into a history record",
		Long: `Archive a run's summary into a history record.

Writes an independent, timestamped history record carrying the participant
roster and event counts, then marks the run completed. The run stays in
place: a completed run may still be reset and reused, and completing again
produces another history record.`,
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

			rec, err := eng.CompleteRun(cmd.Context(), rootOpts.actor(), args[0])
			if err != nil {
				return opError(formatter, err)
			}

			if formatter.Format == "json" {
				return formatter.Success(map[string]any{
					"history_id":   rec.ID,
					"history_name": rec.Name,
					"participants": len(rec.Participants),
					"events":       rec.EventCounts.Total(),
				})
			}

			fmt.Fprintf(formatter.Writer, "✓ Run completed: %s\n", rec.Name)
			fmt.Fprintf(formatter.Writer, "  %d participant(s), %d event(s)\n",
				len(rec.Participants), rec.EventCounts.Total())
			return nil
		},
	}
}
