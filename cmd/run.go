package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/johnnohj/mu2-runtime/internal/adapters/render/report"
	"github.com/johnnohj/mu2-runtime/internal/application"
	"github.com/johnnohj/mu2-runtime/internal/domain"
)

func newRunCmd(app *app) *cobra.Command {
	var (
		target    string
		monitor   bool
		timeoutMs int64
		replMode  bool
	)

	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Execute device code on the virtual runtime, the board, or both",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			execTarget := domain.ExecutionTarget(target)
			if !execTarget.Valid() {
				return fmt.Errorf("unknown target %q (want virtual, physical or dual)", target)
			}

			code, err := readCode(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			if execTarget != domain.TargetPhysical {
				if err := app.ensureRuntime(ctx); err != nil {
					return err
				}
				defer func() { _ = app.runtime.Dispose(context.WithoutCancel(ctx)) }()
			}

			opts := application.CoordinatorOptions{
				Runtime: app.runtime,
				State:   app.state,
				Clock:   app.clock,
				Logger:  app.logger,
			}
			if execTarget != domain.TargetVirtual {
				runner, closeTransport, err := app.deviceRunner(ctx)
				if err != nil {
					return err
				}
				defer func() { _ = closeTransport() }()
				opts.Physical = runner
			}

			coordinator := application.NewCoordinator(opts)

			execOpts := application.ExecuteOptions{
				Timeout: time.Duration(timeoutMs) * time.Millisecond,
				Monitor: monitor,
				Mode:    domain.ExecModeFile,
			}
			if replMode {
				execOpts.Mode = domain.ExecModeREPL
			}

			var outcome application.Outcome
			execute := func(ctx context.Context) error {
				var execErr error
				outcome, execErr = coordinator.Execute(ctx, code, execTarget, execOpts)
				return execErr
			}

			if err := runExecuteSpinner(ctx, cmd.ErrOrStderr(), fmt.Sprintf("Executing (%s)...", execTarget), execute); err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), report.RenderOutcome(outcome))
			return err
		},
	}

	cmd.Flags().StringVar(&target, "target", string(domain.TargetVirtual), "Execution target: virtual, physical or dual")
	cmd.Flags().BoolVar(&monitor, "monitor", false, "Record a hardware event timeline during execution")
	cmd.Flags().Int64Var(&timeoutMs, "timeout", 30_000, "Per-execution timeout in milliseconds")
	cmd.Flags().BoolVar(&replMode, "repl", false, "Execute as a REPL snippet instead of a file")

	return cmd
}

func readCode(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("read code file: %w", err)
		}
		return string(data), nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read code from stdin: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("no code given: pass a file or pipe code on stdin")
	}
	return string(data), nil
}
