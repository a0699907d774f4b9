package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ai-teammate/mytube/moments/internal/database"
	"github.com/ai-teammate/mytube/moments/internal/logging"
	"github.com/ai-teammate/mytube/moments/internal/migration"
	"github.com/ai-teammate/mytube/moments/migrations"
)

var migrateDown int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `migrate applies all pending migrations to the database named by the
DB_* environment variables. With --down N it rolls back N migrations.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().IntVar(&migrateDown, "down", 0, "number of migrations to roll back")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	log := logging.New("moments.migrate")

	db, err := database.Open(cmd.Context())
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer db.Close()

	var v uint
	if migrateDown > 0 {
		v, err = migration.Down(db, migrations.FS, migrateDown, log)
	} else {
		v, err = migration.Up(db, migrations.FS, log)
	}
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
	return nil
}
