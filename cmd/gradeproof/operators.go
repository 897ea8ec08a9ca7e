package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	gradeproof "github.com/wolfiling/gradeproof"
	"github.com/wolfiling/gradeproof/internal/operator"
	"pkt.systems/prettyx"
)

// NewOperatorsCommand builds the operator management command.
func NewOperatorsCommand(loader *gradeproof.Loader) *cobra.Command {
	var operatorsFile string

	v := loader.Viper()
	v.SetDefault("auth.operators_file", gradeproof.DefaultOperatorsPath())

	cmd := &cobra.Command{
		Use:   "operators",
		Short: "Manage operator accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&operatorsFile, "operators-file", gradeproof.DefaultOperatorsPath(), "path to operators file")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List operators",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, err := loadOperatorStore(cmd, loader, operatorsFile)
			if err != nil {
				return err
			}
			operators := store.List()
			resp := make([]operatorSummary, 0, len(operators))
			for _, op := range operators {
				resp = append(resp, operatorSummary{
					Username:  op.Username,
					CreatedAt: op.CreatedAt,
				})
			}
			data, err := json.Marshal(resp)
			if err != nil {
				return err
			}
			return prettyx.PrettyTo(cmd.OutOrStdout(), data, prettyx.DefaultOptions)
		},
	}

	var addPrompt bool
	addCmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Add an operator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, path, err := loadOperatorStore(cmd, loader, operatorsFile)
			if err != nil {
				return err
			}
			username := strings.TrimSpace(args[0])
			if username == "" {
				return fmt.Errorf("username is required")
			}
			password := ""
			if addPrompt {
				value, err := promptPassword("Password: ")
				if err != nil {
					return err
				}
				password = value
			}
			resp, err := operator.Create(store, username, password, time.Now().UTC())
			if err != nil {
				return formatOperatorError(err)
			}
			if err := store.Save(path); err != nil {
				return err
			}
			printOperatorCreate(cmd.OutOrStdout(), resp)
			return nil
		},
	}
	addCmd.Flags().BoolVar(&addPrompt, "prompt", false, "prompt for password")

	var chpasswdPrompt bool
	chpasswdCmd := &cobra.Command{
		Use:   "chpasswd <username>",
		Short: "Change an operator's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, path, err := loadOperatorStore(cmd, loader, operatorsFile)
			if err != nil {
				return err
			}
			username := strings.TrimSpace(args[0])
			if username == "" {
				return fmt.Errorf("username is required")
			}
			password := ""
			if chpasswdPrompt {
				value, err := promptPassword("Password: ")
				if err != nil {
					return err
				}
				password = value
			}
			resp, err := operator.ChangePassword(store, username, password)
			if err != nil {
				return formatOperatorError(err)
			}
			if err := store.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password: %s\n", resp.Password)
			return nil
		},
	}
	chpasswdCmd.Flags().BoolVar(&chpasswdPrompt, "prompt", false, "prompt for password")

	rotateCmd := &cobra.Command{
		Use:   "rotate-totp <username>",
		Short: "Rotate an operator's TOTP secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, path, err := loadOperatorStore(cmd, loader, operatorsFile)
			if err != nil {
				return err
			}
			username := strings.TrimSpace(args[0])
			if username == "" {
				return fmt.Errorf("username is required")
			}
			resp, err := operator.RotateTOTP(store, username)
			if err != nil {
				return formatOperatorError(err)
			}
			if err := store.Save(path); err != nil {
				return err
			}
			printOperatorTOTP(cmd.OutOrStdout(), resp)
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete an operator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, path, err := loadOperatorStore(cmd, loader, operatorsFile)
			if err != nil {
				return err
			}
			username := strings.TrimSpace(args[0])
			if username == "" {
				return fmt.Errorf("username is required")
			}
			if _, err := operator.Remove(store, username); err != nil {
				return formatOperatorError(err)
			}
			if err := store.Save(path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "operator deleted")
			return nil
		},
	}

	cmd.AddCommand(listCmd)
	cmd.AddCommand(addCmd)
	cmd.AddCommand(chpasswdCmd)
	cmd.AddCommand(rotateCmd)
	cmd.AddCommand(deleteCmd)

	return cmd
}

type operatorSummary struct {
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

func loadOperatorStore(cmd *cobra.Command, loader *gradeproof.Loader, fileFlag string) (*operator.Store, string, error) {
	cfg, err := loader.Load()
	if err != nil {
		return nil, "", err
	}
	path := fileFlag
	if !cmd.Flags().Changed("operators-file") {
		path = cfg.Auth.OperatorsFile
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, "", fmt.Errorf("operators file is required")
	}
	store, err := operator.LoadStore(path)
	if err != nil {
		return nil, "", err
	}
	return store, path, nil
}

func formatOperatorError(err error) error {
	switch {
	case errors.Is(err, operator.ErrOperatorExists):
		return fmt.Errorf("operator already exists")
	case errors.Is(err, operator.ErrOperatorNotFound):
		return fmt.Errorf("operator not found")
	case errors.Is(err, operator.ErrUsernameRequired):
		return fmt.Errorf("username is required")
	default:
		return err
	}
}

func promptPassword(label string) (string, error) {
	fmt.Fprint(os.Stdout, label)
	passwordBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stdout)
	if err != nil {
		return "", err
	}
	return string(passwordBytes), nil
}

func printOperatorCreate(w io.Writer, resp operator.CreateResult) {
	_, _ = fmt.Fprintf(w, "username: %s\n", resp.Operator.Username)
	_, _ = fmt.Fprintf(w, "password: %s\n", resp.Password)
	if resp.TOTPSecret != "" {
		_, _ = fmt.Fprintf(w, "totp_secret: %s\n", resp.TOTPSecret)
	}
	if resp.TOTPURL != "" {
		_, _ = fmt.Fprintf(w, "otpauth_url: %s\n", resp.TOTPURL)
		printTerminalQR(w, resp.TOTPURL)
	}
}

func printOperatorTOTP(w io.Writer, resp operator.TOTPResult) {
	_, _ = fmt.Fprintf(w, "username: %s\n", resp.Operator.Username)
	if resp.TOTPSecret != "" {
		_, _ = fmt.Fprintf(w, "totp_secret: %s\n", resp.TOTPSecret)
	}
	if resp.TOTPURL != "" {
		_, _ = fmt.Fprintf(w, "otpauth_url: %s\n", resp.TOTPURL)
		printTerminalQR(w, resp.TOTPURL)
	}
}

func printTerminalQR(w io.Writer, url string) {
	if strings.TrimSpace(url) == "" {
		return
	}
	_, _ = fmt.Fprintln(w, "totp_qr:")
	qrterminal.GenerateHalfBlock(url, qrterminal.L, w)
}
