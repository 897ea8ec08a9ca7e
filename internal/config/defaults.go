package config

import "time"

// Duration defaults for token, rate-limit and capture bookkeeping.
const (
	// DefaultTokenTTL is how long a client access token stays valid.
	DefaultTokenTTL = time.Hour
	// DefaultSweepInterval is how often expired sessions are purged.
	DefaultSweepInterval = 10 * time.Minute
	// DefaultBlockDuration is how long an IP stays blocked after too many failures.
	DefaultBlockDuration = time.Hour
	// DefaultJWTTTL is how long an operator token stays valid.
	DefaultJWTTTL = 12 * time.Hour
	// DefaultMaxRecording is the recording ceiling before auto-stop.
	DefaultMaxRecording = 2 * time.Minute
	// DefaultChunkInterval is the recorder chunk interval.
	DefaultChunkInterval = time.Second
	// DefaultQRTimeout bounds the QR image fetch during capture.
	DefaultQRTimeout = 5 * time.Second
)

// DefaultConfig returns the default configuration values.
func DefaultConfig() Config {
	cfgDir := DefaultConfigDir()

	return Config{
		Server: ServerConfig{
			Listen:    DefaultListenAddr,
			BasePath:  DefaultBasePath,
			DataDir:   cfgDir,
			PublicURL: DefaultPublicURL,
		},
		Auth: AuthConfig{
			TokenTTL:      DefaultTokenTTL,
			SweepInterval: DefaultSweepInterval,
			MaxAttempts:   DefaultMaxAttempts,
			BlockDuration: DefaultBlockDuration,
			JWTTTL:        DefaultJWTTTL,
			OperatorsFile: DefaultOperatorsPath(),
		},
		Capture: CaptureConfig{
			MaxDuration:    DefaultMaxRecording,
			MaxUploadBytes: DefaultMaxUploadBytes,
			ChunkInterval:  DefaultChunkInterval,
			QRTimeout:      DefaultQRTimeout,
		},
		Mail: MailConfig{
			Port: DefaultMailPort,
		},
	}
}
