package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// NewTemplateCommand creates the template command group.
func NewTemplateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Author and inspect simulation templates",
	}

	cmd.AddCommand(newTemplateImportCommand(rootOpts))
	cmd.AddCommand(newTemplateValidateCommand(rootOpts))
	cmd.AddCommand(newTemplateListCommand(rootOpts))

	return cmd
}

func newTemplateImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "import <templates-dir>",
		Short:         "Compile CUE template definitions and store them",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplateImport(rootOpts, args[0], cmd)
		},
	}
}

func newTemplateValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "validate <templates-dir>",
		Short:         "Compile CUE template definitions without storing them",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplateValidate(rootOpts, args[0], cmd)
		},
	}
}

func newTemplateListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List the tenant's templates",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplateList(rootOpts, cmd)
		},
	}
}

func runTemplateImport(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	result, loadErrors := LoadTemplates(dir, LoadModeCollectAll)
	if len(loadErrors) > 0 {
		return outputLoadErrors(formatter, loadErrors)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", result.FileCount, dir)

	eng, s, err := opts.openEngine()
	if err != nil {
		return err
	}
	defer s.Close()

	type imported struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	var saved []imported
	for _, t := range result.Templates {
		id, err := eng.SaveTemplate(cmd.Context(), opts.actor(), t)
		if err != nil {
			return opError(formatter, err)
		}
		saved = append(saved, imported{ID: id, Name: t.Name})
	}

	if formatter.Format == "json" {
		return formatter.Success(saved)
	}
	fmt.Fprintf(formatter.Writer, "✓ Imported %d template(s)\n", len(saved))
	for _, t := range saved {
		fmt.Fprintf(formatter.Writer, "  %s  %s\n", t.ID, t.Name)
	}
	return nil
}

func runTemplateValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	result, loadErrors := LoadTemplates(dir, LoadModeCollectAll)
	if len(loadErrors) > 0 {
		return outputLoadErrors(formatter, loadErrors)
	}

	if formatter.Format == "json" {
		type summary struct {
			Name        string `json:"name"`
			Patients    int    `json:"patients"`
			Medications int    `json:"medications"`
			Alerts      int    `json:"alerts"`
		}
		out := make([]summary, 0, len(result.Templates))
		for _, t := range result.Templates {
			out = append(out, summary{
				Name:        t.Name,
				Patients:    len(t.State.Patients),
				Medications: len(t.State.Medications),
				Alerts:      len(t.State.Alerts),
			})
		}
		return formatter.Success(out)
	}

	fmt.Fprintf(formatter.Writer, "✓ Validated %d template(s)\n", len(result.Templates))
	for _, t := range result.Templates {
		fmt.Fprintf(formatter.Writer, "  %s: %d patient(s), %d medication(s), %d alert(s)\n",
			t.Name, len(t.State.Patients), len(t.State.Medications), len(t.State.Alerts))
	}
	return nil
}

func runTemplateList(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	eng, s, err := opts.openEngine()
	if err != nil {
		return err
	}
	defer s.Close()

	templates, err := eng.ListTemplates(cmd.Context(), opts.actor())
	if err != nil {
		return opError(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(templates)
	}
	if len(templates) == 0 {
		fmt.Fprintln(formatter.Writer, "No templates.")
		return nil
	}
	for _, t := range templates {
		fmt.Fprintf(formatter.Writer, "%s  %s  (%d patients)\n", t.ID, t.Name, len(t.State.Patients))
	}
	return nil
}

// outputLoadErrors prints template load failures and returns a command error.
func outputLoadErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			var loadErr *LoadError
			if errors.As(err, &loadErr) {
				cliErrors[i] = CLIError{Code: loadErr.Code, Message: loadErr.Message}
				continue
			}
			cliErrors[i] = CLIError{Code: ErrCodeGeneric, Message: err.Error()}
		}
		_ = json.NewEncoder(formatter.Writer).Encode(CLIResponse{Status: "error", Error: &cliErrors[0], Data: cliErrors})
		return NewExitError(ExitCommandError, fmt.Sprintf("template load failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Template load failed")
	for _, err := range errs {
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %v\n", err)
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("template load failed with %d error(s)", len(errs)))
}
