package main

import (
	"github.com/spf13/cobra"

	gradeproof "github.com/wolfiling/gradeproof"
	"pkt.systems/pslog"
)

// NewServeCommand builds the server command.
func NewServeCommand(loader *gradeproof.Loader) *cobra.Command {
	v := loader.Viper()
	v.SetDefault("server.listen", gradeproof.DefaultListenAddr)
	v.SetDefault("server.base", gradeproof.DefaultBasePath)
	v.SetDefault("server.data_dir", gradeproof.DefaultConfigDir())
	v.SetDefault("server.public_url", gradeproof.DefaultPublicURL)
	v.SetDefault("auth.operators_file", gradeproof.DefaultOperatorsPath())

	defaults := gradeproof.DefaultConfig()
	v.SetDefault("auth.token_ttl", defaults.Auth.TokenTTL)
	v.SetDefault("auth.sweep_interval", defaults.Auth.SweepInterval)
	v.SetDefault("auth.max_attempts", defaults.Auth.MaxAttempts)
	v.SetDefault("auth.block_duration", defaults.Auth.BlockDuration)
	v.SetDefault("auth.jwt_ttl", defaults.Auth.JWTTTL)
	v.SetDefault("capture.max_duration", defaults.Capture.MaxDuration)
	v.SetDefault("capture.max_upload_bytes", defaults.Capture.MaxUploadBytes)
	v.SetDefault("capture.chunk_interval", defaults.Capture.ChunkInterval)
	v.SetDefault("capture.qr_timeout", defaults.Capture.QRTimeout)
	v.SetDefault("mail.port", defaults.Mail.Port)

	var bindErr error

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the GradeProof server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if bindErr != nil {
				return bindErr
			}
			cfg, err := loader.Load()
			if err != nil {
				return err
			}

			logger := pslog.Ctx(cmd.Context()).With("component", "serve")
			return gradeproof.Serve(cmd.Context(), gradeproof.ServeOptions{
				Config: cfg,
				Logger: logger,
			})
		},
	}

	flags := cmd.Flags()
	flags.String("listen", gradeproof.DefaultListenAddr, "listen address for the HTTP server")
	flags.String("base", gradeproof.DefaultBasePath, "base path prefix for all HTTP routes")
	flags.String("data-dir", gradeproof.DefaultConfigDir(), "path to data directory")
	flags.String("public-url", gradeproof.DefaultPublicURL, "public base URL used in QR codes and mails")
	flags.String("tls-cert", "", "path to TLS certificate file")
	flags.String("tls-key", "", "path to TLS key file")
	flags.String("db-dsn", "", "postgres DSN; empty runs without a database")
	flags.String("operators-file", gradeproof.DefaultOperatorsPath(), "path to operators file")
	flags.String("token-key", "", "HMAC key for client access tokens")
	flags.String("jwt-secret", "", "secret for operator session tokens")

	bind := func(key, name string) {
		if bindErr != nil {
			return
		}
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			bindErr = err
		}
	}

	bind("server.listen", "listen")
	bind("server.base", "base")
	bind("server.data_dir", "data-dir")
	bind("server.public_url", "public-url")
	bind("server.tls_cert_file", "tls-cert")
	bind("server.tls_key_file", "tls-key")
	bind("database.dsn", "db-dsn")
	bind("auth.operators_file", "operators-file")
	bind("auth.token_key", "token-key")
	bind("auth.jwt_secret", "jwt-secret")

	return cmd
}
