package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haclabs/simcore/internal/sim"
)

// NewRecordCommand creates the record command group.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Append events to a run's log",
	}

	cmd.AddCommand(newRecordVitalsCommand(rootOpts))
	cmd.AddCommand(newRecordMedCommand(rootOpts))
	cmd.AddCommand(newRecordAlertCommand(rootOpts))
	cmd.AddCommand(newRecordNoteCommand(rootOpts))

	return cmd
}

// VitalsFlags holds one reading's values.
type VitalsFlags struct {
	HeartRate   int64
	RespRate    int64
	SystolicBP  int64
	DiastolicBP int64
	SpO2        int64
	TempDeciC   int64
}

func newRecordVitalsCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &VitalsFlags{}

	cmd := &cobra.Command{
		Use:           "vitals <run-id> <run-patient-id>",
		Short:         "Record one set of vital signs for a run patient",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			eng, s, err := rootOpts.openEngine()
			if err != nil {
				return err
			}
			defer s.Close()

			ev, err := eng.RecordVitals(cmd.Context(), rootOpts.actor(), args[0], args[1], sim.VitalsReading{
				HeartRate:   flags.HeartRate,
				RespRate:    flags.RespRate,
				SystolicBP:  flags.SystolicBP,
				DiastolicBP: flags.DiastolicBP,
				SpO2:        flags.SpO2,
				TempDeciC:   flags.TempDeciC,
			})
			if err != nil {
				return opError(formatter, err)
			}

			if formatter.Format == "json" {
				return formatter.Success(map[string]any{"event_id": ev.ID, "seq": ev.Seq})
			}
			fmt.Fprintf(formatter.Writer, "✓ Vitals recorded (%s)\n", ev.ID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&flags.HeartRate, "hr", 0, "heart rate (bpm)")
	cmd.Flags().Int64Var(&flags.RespRate, "rr", 0, "respiratory rate (breaths/min)")
	cmd.Flags().Int64Var(&flags.SystolicBP, "sbp", 0, "systolic blood pressure (mmHg)")
	cmd.Flags().Int64Var(&flags.DiastolicBP, "dbp", 0, "diastolic blood pressure (mmHg)")
	cmd.Flags().Int64Var(&flags.SpO2, "spo2", 0, "oxygen saturation (percent)")
	cmd.Flags().Int64Var(&flags.TempDeciC, "temp", 370, "temperature (tenths of a degree Celsius)")

	return cmd
}

func newRecordMedCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		dose  int64
		route string
		notes string
	)

	cmd := &cobra.Command{
		Use:           "med <run-id> <barcode>",
		Short:         "Record a medication administration from a scanned barcode",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			eng, s, err := rootOpts.openEngine()
			if err != nil {
				return err
			}
			defer s.Close()

			ev, err := eng.AdministerMedication(cmd.Context(), rootOpts.actor(), args[0], args[1], dose, route, notes)
			if err != nil {
				return opError(formatter, err)
			}

			if formatter.Format == "json" {
				return formatter.Success(map[string]any{"event_id": ev.ID, "seq": ev.Seq})
			}
			fmt.Fprintf(formatter.Writer, "✓ Administration recorded (%s)\n", ev.ID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&dose, "dose", 0, "dose given (micrograms)")
	cmd.Flags().StringVar(&route, "route", "", "administration route (PO, IV, IM, ...)")
	cmd.Flags().StringVar(&notes, "notes", "", "free-text notes")
	_ = cmd.MarkFlagRequired("dose")

	return cmd
}

func newRecordAlertCommand(rootOpts *RootOptions) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:           "alert <run-id> <alert-key>",
		Short:         "Acknowledge a clinical alert",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			eng, s, err := rootOpts.openEngine()
			if err != nil {
				return err
			}
			defer s.Close()

			ev, err := eng.AcknowledgeAlert(cmd.Context(), rootOpts.actor(), args[0], args[1], notes)
			if err != nil {
				return opError(formatter, err)
			}

			if formatter.Format == "json" {
				return formatter.Success(map[string]any{"event_id": ev.ID, "seq": ev.Seq})
			}
			fmt.Fprintf(formatter.Writer, "✓ Alert %s acknowledged (%s)\n", args[1], ev.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "free-text notes")

	return cmd
}

func newRecordNoteCommand(rootOpts *RootOptions) *cobra.Command {
	var patientID string

	cmd := &cobra.Command{
		Use:           "note <run-id> <content>",
		Short:         "Add a free-text note to a run",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			eng, s, err := rootOpts.openEngine()
			if err != nil {
				return err
			}
			defer s.Close()

			ev, err := eng.AddNote(cmd.Context(), rootOpts.actor(), args[0], patientID, args[1])
			if err != nil {
				return opError(formatter, err)
			}

			if formatter.Format == "json" {
				return formatter.Success(map[string]any{"event_id": ev.ID, "seq": ev.Seq})
			}
			fmt.Fprintf(formatter.Writer, "✓ Note added (%s)\n", ev.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&patientID, "patient", "", "run patient ID the note concerns")

	return cmd
}
