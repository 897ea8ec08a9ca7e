package main

import (
	"fmt"

	"github.com/spf13/cobra"

	gradeproof "github.com/wolfiling/gradeproof"
	"github.com/wolfiling/gradeproof/internal/submission"
)

// NewMigrateCommand builds the database migration command.
func NewMigrateCommand(loader *gradeproof.Loader) *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "migrate [up|down]",
		Short: "Apply submissions database migrations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}
			target := dsn
			if target == "" {
				cfg, err := loader.Load()
				if err != nil {
					return err
				}
				target = cfg.Database.DSN
			}
			if target == "" {
				return fmt.Errorf("database dsn is required, set --db-dsn or database.dsn")
			}
			if err := submission.Migrate(target, direction); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations %s applied\n", direction)
			return nil
		},
	}

	cmd.Flags().StringVar(&dsn, "db-dsn", "", "postgres DSN")
	return cmd
}
