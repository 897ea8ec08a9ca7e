package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"

	gradeproof "github.com/wolfiling/gradeproof"
	"github.com/wolfiling/gradeproof/internal/qrgen"
)

// NewQRCommand builds the verification QR command. Prints the customer
// verification URL as a terminal QR for taping to the submission box, or
// writes the PNG with --out.
func NewQRCommand(loader *gradeproof.Loader) *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "qr <submission-id>",
		Short: "Render the verification QR for a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loader.Load()
			if err != nil {
				return err
			}
			publicURL := cfg.Server.PublicURL
			if publicURL == "" {
				publicURL = gradeproof.DefaultPublicURL
			}
			id := strings.TrimSpace(args[0])
			if id == "" {
				return fmt.Errorf("submission id is required")
			}

			url := qrgen.VerificationURL(publicURL, id)
			if outFile != "" {
				png, err := qrgen.PNG(publicURL, id, 0)
				if err != nil {
					return err
				}
				if err := os.WriteFile(outFile, png, 0o600); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", outFile)
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", url)
			qrterminal.GenerateHalfBlock(url, qrterminal.L, cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().StringVar(&outFile, "out", "", "write a PNG to this path instead of rendering in the terminal")
	return cmd
}
