package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jsh-team/nodeworker/cmd/build"
	"github.com/jsh-team/nodeworker/cmd/check"
	"github.com/jsh-team/nodeworker/cmd/initcmd"
	"github.com/jsh-team/nodeworker/internal/config"
	"github.com/jsh-team/nodeworker/internal/utils/logger"
)

var (
	// Version information
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"

	rootCmd = &cobra.Command{
		Use:   "nodeworker",
		Short: "Bundle Node.js worker_threads entries alongside your app",
		Long: `nodeworker builds JavaScript entries with esbuild and turns every
"./file.js?nodeWorker" import into a separately built worker file, imported
as a factory that starts a worker_threads Worker on it.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetOutput(cmd.ErrOrStderr())
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("nodeworker %s\n", version)
			fmt.Printf("Build time: %s\n", buildTime)
			fmt.Printf("Git commit: %s\n", gitCommit)
		},
	}
)

// SetVersion sets the version information
func SetVersion(v, bt, gc string) {
	version = v
	buildTime = bt
	gitCommit = gc
	rootCmd.Version = v
}

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVarP(&config.ConfigPath, "config", "c", "", "Config file (default ./"+config.ConfigFileName+")")
	rootCmd.PersistentFlags().BoolVarP(&config.Verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(build.BuildCmd)
	rootCmd.AddCommand(check.CheckCmd)
	rootCmd.AddCommand(initcmd.InitCmd)
	rootCmd.AddCommand(versionCmd)
}

func initLogging() {
	if config.Verbose {
		logger.SetLevel("debug")
	}
}
