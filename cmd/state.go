package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/johnnohj/mu2-runtime/internal/adapters/render/report"
	"github.com/johnnohj/mu2-runtime/internal/domain"
)

func newStateCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect and change the virtual runtime's hardware state",
	}

	cmd.AddCommand(
		newStateGetCmd(app),
		newStateSetCmd(app),
		newStateResetCmd(app),
		newStateTimelineCmd(app),
	)

	return cmd
}

func newStateGetCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the current pin and sensor state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := app.ensureRuntime(ctx); err != nil {
				return err
			}
			defer func() { _ = app.runtime.Dispose(context.WithoutCancel(ctx)) }()

			snapshot, err := app.state.GetState(ctx)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), report.RenderSnapshot(snapshot))
			return err
		},
	}
}

func newStateSetCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <pin=value|sensor=value> [...]",
		Short: "Write pin or sensor values to the virtual runtime",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := parseWrites(args)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := app.ensureRuntime(ctx); err != nil {
				return err
			}
			defer func() { _ = app.runtime.Dispose(context.WithoutCancel(ctx)) }()

			applied, err := app.state.SetState(ctx, payload)
			if err != nil {
				return err
			}
			if !applied {
				return fmt.Errorf("runtime rejected the state update")
			}

			snapshot, err := app.state.GetState(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), report.RenderSnapshot(snapshot))
			return err
		},
	}
}

func newStateResetCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset the virtual runtime's state and clear the timeline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := app.ensureRuntime(ctx); err != nil {
				return err
			}
			defer func() { _ = app.runtime.Dispose(context.WithoutCancel(ctx)) }()

			if err := app.state.Reset(ctx); err != nil {
				return err
			}

			_, err := fmt.Fprintln(cmd.OutOrStdout(), "state reset")
			return err
		},
	}
}

func newStateTimelineCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "timeline",
		Short: "Print the hardware event timeline for this session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			events := app.state.Timeline()
			if len(events) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "timeline is empty")
				return err
			}

			for _, event := range events {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "+%dms\t%s\t%s\t%s\n", event.OffsetMs, event.Kind, event.Target, event.NewValue)
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// parseWrites turns D13=true / light=0.42 style arguments into a partial
// state write. Boolean values address pins, numeric values address sensors.
func parseWrites(args []string) (domain.HardwareSetPayload, error) {
	var payload domain.HardwareSetPayload

	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" || raw == "" {
			return domain.HardwareSetPayload{}, fmt.Errorf("malformed write %q (want name=value)", arg)
		}

		if value, err := strconv.ParseBool(raw); err == nil {
			payload.Pins = append(payload.Pins, domain.PinWrite{Pin: name, Value: value})
			continue
		}
		if value, err := strconv.ParseFloat(raw, 64); err == nil {
			payload.Sensors = append(payload.Sensors, domain.SensorWrite{ID: name, Value: value})
			continue
		}

		return domain.HardwareSetPayload{}, fmt.Errorf("value %q is neither boolean nor numeric", raw)
	}

	return payload, nil
}
