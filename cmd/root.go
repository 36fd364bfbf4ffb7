package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mu2",
		Short:         "Mu 2 device runtime: run device code on virtual and physical hardware",
		Long:          "mu2 executes CircuitPython-style device code against an isolated virtual hardware runtime, a physically attached board, or both at once with a comparison of the results, and keeps a live twin of each board's pin/sensor state.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(app),
		newStateCmd(app),
		newSyncCmd(app),
		newBoardsCmd(app),
	)

	return rootCmd
}
