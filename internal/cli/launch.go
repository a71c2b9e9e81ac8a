package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haclabs/simcore/internal/engine"
)

// LaunchOptions holds flags for the launch command.
type LaunchOptions struct {
	*RootOptions
	ReuseIdentifiers bool
}

// NewLaunchCommand creates the launch command.
func NewLaunchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LaunchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "launch <snapshot-id> <run-name>",
		Short: "Launch a live run from a snapshot",
		Long: `Launch a live run from a snapshot.

Creates the run together with its stable entities: one run patient per
snapshot patient (with a printed wristband identifier) and one barcode
entry per medication order. These identifiers survive every reset.

With --reuse-identifiers, printed identifiers are copied from the most
recent run of the same template so existing physical labels keep working.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLaunch(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.ReuseIdentifiers, "reuse-identifiers", false,
		"copy printed identifiers from the template's most recent run")

	return cmd
}

func runLaunch(opts *LaunchOptions, snapshotID, runName string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	eng, s, err := opts.openEngine()
	if err != nil {
		return err
	}
	defer s.Close()

	run, err := eng.LaunchRun(cmd.Context(), opts.actor(), snapshotID, runName,
		engine.LaunchOptions{ReuseIdentifiers: opts.ReuseIdentifiers})
	if err != nil {
		return opError(formatter, err)
	}

	patients, err := eng.RunPatients(cmd.Context(), opts.actor(), run.ID)
	if err != nil {
		return opError(formatter, err)
	}
	barcodes, err := eng.BarcodeEntries(cmd.Context(), opts.actor(), run.ID)
	if err != nil {
		return opError(formatter, err)
	}

	if formatter.Format == "json" {
		type patientRow struct {
			ID        string `json:"id"`
			SourceKey string `json:"source_key"`
			PrintedID string `json:"printed_id"`
			Name      string `json:"name"`
		}
		type barcodeRow struct {
			ID         string `json:"id"`
			SourceKey  string `json:"source_key"`
			Barcode    string `json:"barcode"`
			Medication string `json:"medication"`
		}
		ps := make([]patientRow, 0, len(patients))
		for _, p := range patients {
			ps = append(ps, patientRow{p.ID, p.SourceKey, p.PrintedID, p.DisplayName})
		}
		bs := make([]barcodeRow, 0, len(barcodes))
		for _, b := range barcodes {
			bs = append(bs, barcodeRow{b.ID, b.SourceKey, b.Barcode, b.Medication})
		}
		return formatter.Success(map[string]any{
			"run_id":   run.ID,
			"name":     run.Name,
			"status":   run.Status,
			"patients": ps,
			"barcodes": bs,
		})
	}

	fmt.Fprintf(formatter.Writer, "✓ Run %s launched\n\n", run.ID)
	if len(patients) > 0 {
		fmt.Fprintln(formatter.Writer, "Patients:")
		for _, p := range patients {
			fmt.Fprintf(formatter.Writer, "  %s  %s  %s\n", p.PrintedID, p.DisplayName, p.ID)
		}
		fmt.Fprintln(formatter.Writer)
	}
	if len(barcodes) > 0 {
		fmt.Fprintln(formatter.Writer, "Barcodes:")
		for _, b := range barcodes {
			fmt.Fprintf(formatter.Writer, "  %s  %s\n", b.Barcode, b.Medication)
		}
	}
	return nil
}
