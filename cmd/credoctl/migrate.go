package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Harshitk-cp/credo/internal/config"
	"github.com/Harshitk-cp/credo/internal/store"
	"github.com/spf13/cobra"
)

var migrationsDir string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Long: `Apply the SQL files under the migrations directory that have not been
recorded in schema_migrations yet.

SQLite databases carry their schema in the binary and are brought up to
date when opened, so for --sqlite this only verifies the file opens.

Examples:
  # Migrate the database in DATABASE_URL
  credoctl migrate

  # Use a different migrations directory
  credoctl migrate --dir ./deploy/migrations`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrationsDir, "dir", "", "Migrations directory (default: MIGRATIONS_PATH)")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	out := cmd.OutOrStdout()
	if s.pool == nil {
		fmt.Fprintln(out, "sqlite schema is current")
		return nil
	}

	dir := migrationsDir
	if dir == "" {
		dir = config.MigrationsPath()
	}
	applied, err := store.Migrate(ctx, s.pool, dir, s.logger)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if len(applied) == 0 {
		fmt.Fprintln(out, "no pending migrations")
		return nil
	}
	for _, name := range applied {
		fmt.Fprintf(out, "applied %s\n", name)
	}
	return nil
}
