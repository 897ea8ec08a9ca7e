// Package gradeproof bundles the grading-proof service: submission CRUD,
// customer verification with short-lived access tokens, proof-video capture
// and upload, and the admin dashboard API.
package gradeproof

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/wolfiling/gradeproof/internal/api"
	"github.com/wolfiling/gradeproof/internal/clientauth"
	"github.com/wolfiling/gradeproof/internal/config"
	"github.com/wolfiling/gradeproof/internal/mailer"
	"github.com/wolfiling/gradeproof/internal/operator"
	"github.com/wolfiling/gradeproof/internal/server"
	"github.com/wolfiling/gradeproof/internal/submission"
	"github.com/wolfiling/gradeproof/internal/video"
	"pkt.systems/pslog"
)

// ServeOptions configures the service run.
type ServeOptions struct {
	Config Config
	Logger pslog.Logger
}

// Serve runs the GradeProof server until the context is canceled or the
// listener fails.
func Serve(ctx context.Context, opts ServeOptions) error {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = pslog.LoggerFromEnv()
	}

	base, err := server.NormalizeBasePath(cfg.Server.BasePath)
	if err != nil {
		return err
	}

	var repo submission.Repository
	if cfg.Database.DSN != "" {
		pool, err := submission.Connect(ctx, cfg.Database.DSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		repo = submission.NewPostgresRepository(pool)
	} else {
		logger.Warn("no database configured, submissions are held in memory")
		repo = submission.NewMemoryRepository()
	}

	videos, err := video.NewStore(config.VideoDir(cfg.Server.DataDir), cfg.Capture.MaxUploadBytes)
	if err != nil {
		return err
	}

	tokenKey := []byte(cfg.Auth.TokenKey)
	if len(tokenKey) == 0 {
		tokenKey, err = randomKey()
		if err != nil {
			return err
		}
		logger.Warn("no token key configured, using an ephemeral key; client tokens will not survive a restart")
	}
	tokens, err := clientauth.NewTokenStore(clientauth.TokenStoreConfig{
		Key:    tokenKey,
		TTL:    cfg.Auth.TokenTTL,
		Logger: logger.With("component", "tokens"),
	})
	if err != nil {
		return err
	}
	limiter := clientauth.NewLimiter(clientauth.LimiterConfig{
		MaxAttempts:   cfg.Auth.MaxAttempts,
		BlockDuration: cfg.Auth.BlockDuration,
		Logger:        logger.With("component", "ratelimit"),
	})
	if err := clientauth.StartSweepLoop(ctx, cfg.Auth.SweepInterval,
		logger.With("component", "sweep"), tokens, limiter); err != nil {
		return err
	}

	operators, err := operator.LoadStore(cfg.Auth.OperatorsFile)
	if err != nil {
		return err
	}
	if err := operator.StartReloadLoop(ctx, cfg.Auth.OperatorsFile, operators,
		logger.With("component", "operator-watch")); err != nil {
		logger.Warn("operator reload loop disabled", "err", err)
	}

	jwtSecret := []byte(cfg.Auth.JWTSecret)
	if len(jwtSecret) == 0 {
		jwtSecret, err = randomKey()
		if err != nil {
			return err
		}
		logger.Warn("no jwt secret configured, using an ephemeral secret; operator sessions will not survive a restart")
	}
	sessions, err := operator.NewTokenIssuer(jwtSecret, cfg.Auth.JWTTTL)
	if err != nil {
		return err
	}

	sender, err := mailer.New(mailer.Config{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
		Logger:   logger.With("component", "mail"),
	})
	if err != nil {
		return err
	}

	apiServer := api.NewHTTPServer(api.HTTPServer{
		Repo:           repo,
		Videos:         videos,
		Tokens:         tokens,
		Limiter:        limiter,
		Authenticator:  operator.NewAuthenticator(operators),
		Sessions:       sessions,
		Mailer:         sender,
		Hub:            api.NewHub(logger.With("component", "hub")),
		Logger:         logger.With("component", "api"),
		PublicURL:      cfg.Server.PublicURL,
		MaxUploadBytes: cfg.Capture.MaxUploadBytes,
	})

	handler := server.WrapBasePath(base, apiServer.Handler())
	handler = server.AccessLog(logger.With("component", "access"), handler)
	srv := server.NewServer(server.Config{
		ListenAddr: cfg.Server.Listen,
		Logger:     logger.With("component", "http"),
		// No ReadTimeout/WriteTimeout: uploads and the event websocket are
		// long-lived.
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}, handler)

	logger.Info("starting server",
		"listen", cfg.Server.Listen, "base", base, "public_url", cfg.Server.PublicURL)
	if cfg.Server.TLSCertFile != "" && cfg.Server.TLSKeyFile != "" {
		return srv.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
	}
	return srv.ListenAndServe()
}

func randomKey() ([]byte, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return []byte(hex.EncodeToString(buf)), nil
}
