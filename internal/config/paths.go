package config

import (
	"os"
	"path/filepath"
)

// DefaultConfigDir returns the default GradeProof config directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return DefaultConfigDirName
	}
	return filepath.Join(home, DefaultConfigDirName)
}

// DefaultConfigPath returns the default GradeProof config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), DefaultConfigFileName)
}

// DefaultOperatorsPath returns the default operators file path.
func DefaultOperatorsPath() string {
	return filepath.Join(DefaultConfigDir(), DefaultOperatorsFileName)
}

// VideoDir returns the proof-video directory under the given data directory.
func VideoDir(dataDir string) string {
	return filepath.Join(dataDir, DefaultVideoDirName)
}
