package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sessiond",
		Short:         "Credit-metered game-server session controller",
		Long:          "sessiond rents suspended game-server instances on a control panel, metered by per-account credits: it admits sessions, runs the billing loops, estimates queue waits, and reconciles drift.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(),
		newStatusCmd(),
		newGrantCmd(),
		newPremiumCmd(),
	)

	return rootCmd
}
