package config

const (
	// DefaultConfigDirName is the directory name under the home directory.
	DefaultConfigDirName = ".gradeproof"
	// DefaultConfigFileName is the default config file name.
	DefaultConfigFileName = "config.yaml"
	// DefaultOperatorsFileName is the default operators file name.
	DefaultOperatorsFileName = "operators.json"
	// DefaultVideoDirName is the proof-video directory name under the data directory.
	DefaultVideoDirName = "videos"

	// DefaultListenAddr is the default server listen address.
	DefaultListenAddr = "127.0.0.1:8410"
	// DefaultBasePath is the default HTTP base path.
	DefaultBasePath = ""
	// DefaultPublicURL is the default public base URL used in QR codes and mails.
	DefaultPublicURL = "http://localhost:8410"

	// DefaultMaxAttempts is the failed-verification ceiling per client IP.
	DefaultMaxAttempts = 5
	// DefaultMaxUploadBytes is the proof-video upload size ceiling.
	DefaultMaxUploadBytes = 50 << 20

	// DefaultMailPort is the default SMTP submission port.
	DefaultMailPort = 587
)
