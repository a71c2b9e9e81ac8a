package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRunCommand creates the run command group.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Inspect and control live runs",
	}

	cmd.AddCommand(newRunStateCommand(rootOpts))
	cmd.AddCommand(newRunTraceCommand(rootOpts))
	cmd.AddCommand(newRunHistoryCommand(rootOpts))
	cmd.AddCommand(newRunPauseCommand(rootOpts))
	cmd.AddCommand(newRunResumeCommand(rootOpts))
	cmd.AddCommand(newRunArchiveCommand(rootOpts))

	return cmd
}

func newRunStateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "state <run-id>",
		Short:         "Show a run's current state folded from its event log",
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

			state, err := eng.RunState(cmd.Context(), rootOpts.actor(), args[0])
			if err != nil {
				return opError(formatter, err)
			}

			if formatter.Format == "json" {
				return formatter.Success(state)
			}

			fmt.Fprintf(formatter.Writer, "Run %s (%s, generation %d)\n\n", state.Run.ID, state.Run.Status, state.Run.Generation)
			for _, p := range state.Patients {
				fmt.Fprintf(formatter.Writer, "%s  %s\n", p.PrintedID, p.DisplayName)
				if p.Latest != nil {
					fmt.Fprintf(formatter.Writer, "  latest: HR %d RR %d BP %d/%d SpO2 %d (%d reading(s))\n",
						p.Latest.HeartRate, p.Latest.RespRate, p.Latest.SystolicBP, p.Latest.DiastolicBP, p.Latest.SpO2, p.VitalsCount)
				} else {
					fmt.Fprintf(formatter.Writer, "  baseline: HR %d RR %d BP %d/%d SpO2 %d\n",
						p.Baseline.HeartRate, p.Baseline.RespRate, p.Baseline.SystolicBP, p.Baseline.DiastolicBP, p.Baseline.SpO2)
				}
			}
			for _, m := range state.Medications {
				fmt.Fprintf(formatter.Writer, "%s  %s: given %d time(s)\n", m.Barcode, m.Medication, m.TimesGiven)
			}
			if len(state.AcknowledgedAlerts) > 0 {
				fmt.Fprintf(formatter.Writer, "Acknowledged alerts: %v\n", state.AcknowledgedAlerts)
			}
			return nil
		},
	}
}

func newRunTraceCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "trace <run-id>",
		Short:         "Show a run's merged debrief trace in event order",
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

			trace, err := eng.Trace(cmd.Context(), rootOpts.actor(), args[0])
			if err != nil {
				return opError(formatter, err)
			}

			if formatter.Format == "json" {
				return formatter.Success(trace)
			}

			for _, ev := range trace {
				fmt.Fprintf(formatter.Writer, "%6d  %-10s  %-12s  %s\n", ev.Seq, ev.Op, ev.ActorID, ev.Summary)
			}
			return nil
		},
	}
}

func newRunHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "history <run-id>",
		Short:         "List a run's history records, newest first",
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

			recs, err := eng.RunHistory(cmd.Context(), rootOpts.actor(), args[0])
			if err != nil {
				return opError(formatter, err)
			}

			if formatter.Format == "json" {
				return formatter.Success(recs)
			}

			if len(recs) == 0 {
				fmt.Fprintln(formatter.Writer, "No history records.")
				return nil
			}
			for _, rec := range recs {
				fmt.Fprintf(formatter.Writer, "%s  %s  (%d participant(s), %d event(s))\n",
					rec.ID, rec.Name, len(rec.Participants), rec.EventCounts.Total())
			}
			return nil
		},
	}
}

func newRunPauseCommand(rootOpts *RootOptions) *cobra.Command {
	return statusCommand(rootOpts, "pause", "Pause a run, blocking event recording",
		func(cmd *cobra.Command, runID string) error {
			eng, s, err := rootOpts.openEngine()
			if err != nil {
				return err
			}
			defer s.Close()
			return eng.PauseRun(cmd.Context(), rootOpts.actor(), runID)
		})
}

func newRunResumeCommand(rootOpts *RootOptions) *cobra.Command {
	return statusCommand(rootOpts, "resume", "Reactivate a paused or completed run",
		func(cmd *cobra.Command, runID string) error {
			eng, s, err := rootOpts.openEngine()
			if err != nil {
				return err
			}
			defer s.Close()
			return eng.ResumeRun(cmd.Context(), rootOpts.actor(), runID)
		})
}

func newRunArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	return statusCommand(rootOpts, "archive", "Retire a run permanently",
		func(cmd *cobra.Command, runID string) error {
			eng, s, err := rootOpts.openEngine()
			if err != nil {
				return err
			}
			defer s.Close()
			return eng.ArchiveRun(cmd.Context(), rootOpts.actor(), runID)
		})
}

func statusCommand(rootOpts *RootOptions, verb, short string, do func(cmd *cobra.Command, runID string) error) *cobra.Command {
	return &cobra.Command{
		Use:           verb + " <run-id>",
		Short:         short,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err := do(cmd, args[0]); err != nil {
				return opError(formatter, err)
			}
			if formatter.Format == "json" {
				return formatter.Success(map[string]any{"run_id": args[0]})
			}
			fmt.Fprintf(formatter.Writer, "✓ Run %s: %s\n", args[0], verb)
			return nil
		},
	}
}
