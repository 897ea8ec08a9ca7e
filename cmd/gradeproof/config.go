package main

import (
	"fmt"

	"github.com/spf13/cobra"

	gradeproof "github.com/wolfiling/gradeproof"
)

// NewConfigCommand builds the config helper command.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var path string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := path
			if target == "" {
				target = gradeproof.DefaultConfigPath()
			}
			if err := gradeproof.WriteDefaultConfig(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", target)
			return nil
		},
	}
	initCmd.Flags().StringVar(&path, "path", "", "config file path to write")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the default configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := gradeproof.ExportConfig(gradeproof.DefaultConfig())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.AddCommand(initCmd)
	cmd.AddCommand(showCmd)
	return cmd
}
