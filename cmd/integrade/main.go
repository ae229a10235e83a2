// Command integrade predicts Cloud Meter usage reports for scenario files and
// checks a live deployment against those predictions.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloudigrade/integrade/internal/version"
	"github.com/cloudigrade/integrade/pkg/env"
	"github.com/cloudigrade/integrade/pkg/log"
)

var logLevel string

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "integrade",
		Short: "Test oracle and harness for the Cloud Meter service",
		Long: `integrade synthesizes instance activity from scenario files, predicts the
usage reports Cloud Meter should produce for it, and optionally injects the
activity into a running deployment to compare the real reports.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if !cmd.Flags().Changed("log-level") {
				if cfg, err := env.Get(); err == nil && cfg.LogLevel != "" {
					logLevel = cfg.LogLevel
				}
			}
			log.InitLogging(logLevel)
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(
		newExpectCmd(),
		newCheckCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "integrade version %s (commit: %s, built: %s, %s)\n",
				info.Version, info.GitCommit, info.BuildDate, info.GoVersion)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
