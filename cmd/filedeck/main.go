// Command filedeck runs the FileDeck document service.
//
// Usage:
//
//	filedeck serve [--host 0.0.0.0] [--port 8000] [--data-dir ./data]
//	filedeck csv [file] [--delimiter tab] [--strict]
//	filedeck version
//
// Every setting can also come from the environment (PORT, DATA_DIR,
// DOCUMENT_ROOTS, CLOUD_*, ...). Flags win over the environment.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=..."
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "filedeck",
	Short: "FileDeck - document service for a mobile file manager",
	Long: `FileDeck serves granted document folders to a mobile client: browsing,
text editing with undo and search, delimited text preview, and optional
sync to S3-compatible storage.

Run "filedeck serve" to start the HTTP API.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "filedeck %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, csvCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
