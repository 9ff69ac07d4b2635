// Package commands provides the CLI commands for msggate.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	logLevel   string
	prettyLogs bool
)

var rootCmd = &cobra.Command{
	Use:   "msggate",
	Short: "msggate - messaging gateway server",
	Long: `msggate maintains a single authenticated session against a messaging
gateway and exposes a small HTTP API for sending text messages and
checking session readiness.

Run 'msggate serve' to start the server.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		// No default action; show usage.
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&prettyLogs, "pretty-logs", false, "Human-readable console log output")

	rootCmd.SetVersionTemplate(fmt.Sprintf("msggate %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(serveCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
