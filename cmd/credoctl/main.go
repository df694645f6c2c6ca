// Command credoctl runs maintenance tasks against a credo store without going
// through the HTTP API.
package main

import (
	"os"

	"github.com/Harshitk-cp/credo/internal/buildconfig"
	"github.com/spf13/cobra"
)

var (
	sqlitePath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "credoctl",
	Short: "Maintenance CLI for the credo belief and memory store",
	Long: `credoctl operates directly on the configured store.

It reads the same environment as the server (CREDO_ENV, STORE_DRIVER,
DATABASE_URL, SQLITE_PATH, INDEX_DIR). Pass --sqlite to point at a
SQLite file regardless of STORE_DRIVER.`,
	Version:      buildconfig.Version(),
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite", "", "Path to a SQLite database (overrides STORE_DRIVER)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(rebuildIndexCmd)
	rootCmd.AddCommand(showBeliefCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
