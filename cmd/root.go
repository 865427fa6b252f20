package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var (
		verbose bool
		logFile string
	)

	rootCmd := &cobra.Command{
		Use:           "nf",
		Short:         "Notifications feed CLI (nf): a live inbox in the terminal",
		Long:          "nf (notifications feed) signs in to a notifications server, keeps a small live feed merged from a push stream and periodic snapshots, and lets you answer team invites from the terminal.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Append logs to this file instead of stderr")

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return app.setupLogging(cmd.ErrOrStderr(), logFile, verbose)
	}
	rootCmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		return app.closeLog()
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newLoginCmd(app),
		newLogoutCmd(app),
		newWhoamiCmd(app),
		newInboxCmd(app),
		newApproveCmd(app),
		newReadAllCmd(app),
		newWatchCmd(app),
		newSandboxCmd(app),
	)

	return rootCmd
}
