package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stagegate/internal/baseline"
)

func newStatusCommand(app *App) *cobra.Command {
	var savePath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the resolved state of every stage",
		Long: `Resolve and print the state of every pipeline stage.

Local evidence completes stages and unlocks their successors. The backend
status is used as the starting point; if it cannot be fetched every stage
after ideation starts locked.

With --save the resolved state is also written to a snapshot file, which can
serve as the baseline (backend.snapshot_path) when the backend is offline.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := app.Gate.Resolve(cmd.Context())
			if err := app.Printer.PrintState(st, app.title()); err != nil {
				return err
			}

			if savePath != "" {
				if err := baseline.WriteSnapshot(savePath, st); err != nil {
					app.Printer.Error("Failed to save snapshot: %v", err)
					return NewExitError(1)
				}
				app.Logger.Info("snapshot saved", zap.String("path", savePath))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&savePath, "save", "", "Also write the resolved state to this snapshot file")
	return cmd
}

func newNextCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Show the first stage ready to be worked on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := app.Gate.Resolve(cmd.Context())
			return app.Printer.PrintNext(st, app.title())
		},
	}
}
