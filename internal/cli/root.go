// Package cli wires the management commands: engine lifecycle
// (start/stop/restart/status/logs/test), one-off queries, and the HTTP
// management surface.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "graphgate",
	Short: "Gateway and supervisor for the persistent graph answering engine",
	Long: `graphgate manages the long-running knowledge-graph answering engine and
routes queries to it over its Unix domain socket, degrading to a one-shot
engine invocation when the persistent path is unavailable.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(serveCmd)

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to graphgate.json (default: ./graphgate.json, generated if absent)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
