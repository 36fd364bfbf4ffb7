package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/johnnohj/mu2-runtime/internal/adapters/render/report"
	"github.com/johnnohj/mu2-runtime/internal/adapters/repl"
	"github.com/johnnohj/mu2-runtime/internal/application"
	"github.com/johnnohj/mu2-runtime/internal/domain"
)

func newSyncCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Mirror the attached board's state into a device twin until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			transport, deviceID, err := app.openTransport(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = transport.Close() }()

			out := cmd.OutOrStdout()
			reconciler := application.NewReconciler(application.ReconcilerOptions{
				Interval: app.config.syncInterval,
				Clock:    app.clock,
				Logger:   app.logger,
				OnChange: func(change domain.TwinChange) {
					_, _ = fmt.Fprintln(out, report.RenderTwinChange(change))
				},
			})
			reconciler.Track(deviceID, repl.NewStateProbe(transport, app.clock))

			_, _ = fmt.Fprintf(out, "syncing %s every %s (ctrl-c to stop)\n", deviceID, app.config.syncInterval)
			reconciler.Run(ctx)

			return nil
		},
	}
}
