// Package cmd wires kolabcore's cobra command tree: serve and doctor.
// Grounded on xcawolfe-amzn/gastown's internal/cmd (package-level rootCmd,
// one *cobra.Command var per command, Execute called from a thin main.go).
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "kolabcore",
	Short: "Run and inspect a kolabcore buffer-sync broker",
	Long: `kolabcore hosts the reference broker transport for the cross-process
buffer sync manager: it accepts editor connections over WebSocket, keeps the
authoritative owner/epoch/seq ledger per document, and persists documents
between restarts when a database is configured.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a kolabcore.toml config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(doctorCmd)
}

// Execute runs the root command and returns a process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
