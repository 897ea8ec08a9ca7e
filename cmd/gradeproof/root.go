package main

import (
	"github.com/spf13/cobra"

	gradeproof "github.com/wolfiling/gradeproof"
)

// NewRootCommand builds the root CLI command.
func NewRootCommand(loader *gradeproof.Loader) *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "gradeproof",
		Short: "GradeProof card grading submission and proof-video service",
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if configFile != "" {
				loader.SetConfigFile(configFile)
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCommand(loader))
	cmd.AddCommand(NewMigrateCommand(loader))
	cmd.AddCommand(NewOperatorsCommand(loader))
	cmd.AddCommand(NewStationCommand(loader))
	cmd.AddCommand(NewQRCommand(loader))
	cmd.AddCommand(NewConfigCommand())

	return cmd
}
