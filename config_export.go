package gradeproof

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/wolfiling/gradeproof/internal/config"
	"go.yaml.in/yaml/v3"
)

// Config mirrors the GradeProof configuration.
type Config = config.Config

// ServerConfig configures the HTTP server.
type ServerConfig = config.ServerConfig

// DatabaseConfig configures the submissions database.
type DatabaseConfig = config.DatabaseConfig

// AuthConfig configures tokens, rate limiting and operator auth.
type AuthConfig = config.AuthConfig

// CaptureConfig configures proof-video capture ceilings.
type CaptureConfig = config.CaptureConfig

// MailConfig configures the transactional mail sender.
type MailConfig = config.MailConfig

// Loader wraps configuration loading via Viper.
type Loader = config.Loader

const (
	// DefaultConfigDirName is the directory name under the home directory.
	DefaultConfigDirName = config.DefaultConfigDirName
	// DefaultConfigFileName is the default config file name.
	DefaultConfigFileName = config.DefaultConfigFileName
	// DefaultOperatorsFileName is the default operators file name.
	DefaultOperatorsFileName = config.DefaultOperatorsFileName

	// DefaultListenAddr is the default server listen address.
	DefaultListenAddr = config.DefaultListenAddr
	// DefaultBasePath is the default HTTP base path.
	DefaultBasePath = config.DefaultBasePath
	// DefaultPublicURL is the default public base URL.
	DefaultPublicURL = config.DefaultPublicURL
)

// NewLoader returns a config loader with defaults wired.
func NewLoader() *config.Loader {
	return config.NewLoader()
}

// DefaultConfig returns the default GradeProof configuration.
func DefaultConfig() Config {
	return config.DefaultConfig()
}

// DefaultConfigDir returns the default config directory.
func DefaultConfigDir() string {
	return config.DefaultConfigDir()
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return config.DefaultConfigPath()
}

// DefaultOperatorsPath returns the default operators file path.
func DefaultOperatorsPath() string {
	return config.DefaultOperatorsPath()
}

// VideoDir returns the proof-video directory under the data directory.
func VideoDir(dataDir string) string {
	return config.VideoDir(dataDir)
}

// ExportConfig renders a configuration as YAML.
func ExportConfig(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// WriteDefaultConfig writes the default configuration to path, refusing to
// overwrite an existing file.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	data, err := ExportConfig(DefaultConfig())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
