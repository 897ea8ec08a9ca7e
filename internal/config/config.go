package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for GradeProof.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth"`
	Capture  CaptureConfig  `mapstructure:"capture" yaml:"capture"`
	Mail     MailConfig     `mapstructure:"mail" yaml:"mail"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Listen      string `mapstructure:"listen" yaml:"listen"`
	BasePath    string `mapstructure:"base" yaml:"base"`
	DataDir     string `mapstructure:"data_dir" yaml:"data_dir"`
	PublicURL   string `mapstructure:"public_url" yaml:"public_url"`
	TLSCertFile string `mapstructure:"tls_cert_file" yaml:"tls_cert_file"`
	TLSKeyFile  string `mapstructure:"tls_key_file" yaml:"tls_key_file"`
}

// DatabaseConfig configures the submissions database.
// An empty DSN selects the in-memory repository (demo mode).
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// AuthConfig configures client access tokens, rate limiting and operator auth.
type AuthConfig struct {
	TokenKey      string        `mapstructure:"token_key" yaml:"token_key"`
	TokenTTL      time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
	MaxAttempts   int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	BlockDuration time.Duration `mapstructure:"block_duration" yaml:"block_duration"`
	JWTSecret     string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTTTL        time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`
	OperatorsFile string        `mapstructure:"operators_file" yaml:"operators_file"`
}

// CaptureConfig configures proof-video capture and upload ceilings.
type CaptureConfig struct {
	MaxDuration    time.Duration `mapstructure:"max_duration" yaml:"max_duration"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
	ChunkInterval  time.Duration `mapstructure:"chunk_interval" yaml:"chunk_interval"`
	QRTimeout      time.Duration `mapstructure:"qr_timeout" yaml:"qr_timeout"`
}

// MailConfig configures the transactional mail sender.
// An empty host disables SMTP and selects the log-only sender.
type MailConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	From     string `mapstructure:"from" yaml:"from"`
}

// Loader wraps Viper configuration loading for GradeProof.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader initializes a Loader with standard defaults.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix("GRADEPROOF")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/gradeproof")
	v.AddConfigPath("$HOME/.gradeproof")

	return &Loader{v: v}
}

// Viper exposes the underlying Viper instance for flag binding and defaults.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// SetConfigFile sets an explicit config file path.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = strings.TrimSpace(path)
}

// ReadInConfig reads configuration from file if available.
func (l *Loader) ReadInConfig() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

// Load reads configuration and unmarshals it into a Config struct.
func (l *Loader) Load() (Config, error) {
	if err := l.ReadInConfig(); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
