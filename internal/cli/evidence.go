package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"stagegate/internal/evidence"
	"stagegate/internal/output"
	"stagegate/internal/stage"
)

func newEvidenceCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evidence",
		Short: "Manage locally stored stage evidence",
		Long: `Manage the locally cached stage output that completes pipeline stages.

Stages may be named canonically (viability_assessment) or by their dashboard
alias (viabilityAssessment).`,
	}

	cmd.AddCommand(
		newEvidenceListCommand(app),
		newEvidenceShowCommand(app),
		newEvidenceSetCommand(app),
		newEvidenceClearCommand(app),
	)
	return cmd
}

func newEvidenceListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List evidence presence for every stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := app.Store.Evidence(cmd.Context())
			if err != nil {
				app.Printer.Error("Failed to read evidence: %v", err)
				return NewExitError(1)
			}

			keys := app.Catalog.Keys()
			rows := make([]output.EvidenceRow, 0, len(stage.All()))
			for _, s := range stage.All() {
				rows = append(rows, output.EvidenceRow{
					Stage:   s,
					Key:     keys.Key(s),
					Present: ev.Has(s),
				})
			}
			return app.Printer.PrintEvidence(rows, app.title())
		},
	}
}

func newEvidenceShowCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <stage>",
		Short: "Print the raw evidence stored for a stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, key, err := app.stageKey(args[0])
			if err != nil {
				return err
			}

			data, err := app.Store.Get(cmd.Context(), key)
			if errors.Is(err, evidence.ErrNotFound) {
				app.Printer.Error("No evidence stored for %s", s)
				return NewExitError(1)
			}
			if err != nil {
				app.Printer.Error("Failed to read evidence for %s: %v", s, err)
				return NewExitError(1)
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newEvidenceSetCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set <stage> [json]",
		Short: "Store evidence for a stage",
		Long: `Store JSON evidence for a stage. The document is read from stdin when
it is not given as an argument.

Empty documents (null, false, "", {} and []) are stored but do not count
as evidence.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, key, err := app.stageKey(args[0])
			if err != nil {
				return err
			}

			var data []byte
			if len(args) == 2 {
				data = []byte(args[1])
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
				if err != nil {
					app.Printer.Error("Failed to read stdin: %v", err)
					return NewExitError(1)
				}
			}

			if !gjson.ValidBytes(data) {
				app.Printer.Error("Evidence for %s is not valid JSON", s)
				return NewExitError(1)
			}

			if err := app.Store.Put(cmd.Context(), key, data); err != nil {
				app.Printer.Error("Failed to store evidence for %s: %v", s, err)
				return NewExitError(1)
			}

			if !evidence.Present(data) {
				app.Printer.Info("Stored empty evidence for %s; the stage stays incomplete", s)
				return nil
			}
			app.Printer.Success("Stored evidence for %s", s)
			return nil
		},
	}
}

func newEvidenceClearCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <stage>",
		Short: "Remove the evidence stored for a stage",
		Long: `Remove the evidence stored for a stage.

Clearing evidence never relocks a stage the backend reports as completed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, key, err := app.stageKey(args[0])
			if err != nil {
				return err
			}

			if err := app.Store.Delete(cmd.Context(), key); err != nil {
				app.Printer.Error("Failed to clear evidence for %s: %v", s, err)
				return NewExitError(1)
			}
			app.Printer.Success("Cleared evidence for %s", s)
			return nil
		},
	}
}

// stageKey parses a stage argument and returns its evidence key.
func (app *App) stageKey(arg string) (stage.Stage, string, error) {
	s, err := stage.Parse(arg)
	if err != nil {
		app.Printer.Error("Unknown stage %q", arg)
		return "", "", NewExitError(1)
	}
	return s, app.Catalog.Keys().Key(s), nil
}
