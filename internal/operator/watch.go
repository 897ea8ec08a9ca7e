package operator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pkt.systems/pslog"
)

const reloadInterval = 1 * time.Second

// StartReloadLoop watches the operators file and reloads it on change, so
// accounts added with the CLI reach a running server without a restart.
func StartReloadLoop(ctx context.Context, path string, store *Store, logger pslog.Logger) error {
	return startReloadLoop(ctx, path, store, logger, reloadInterval)
}

func startReloadLoop(ctx context.Context, path string, store *Store, logger pslog.Logger, interval time.Duration) error {
	if store == nil {
		return fmt.Errorf("operator store is nil")
	}
	if path == "" {
		return fmt.Errorf("operators file is required")
	}
	if logger == nil {
		logger = pslog.LoggerFromEnv()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	path = filepath.Clean(path)
	lastHash := ""
	if data, err := os.ReadFile(path); err == nil {
		lastHash = hashBytes(data)
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				data, err := os.ReadFile(path)
				if err != nil {
					continue
				}
				hash := hashBytes(data)
				if hash == lastHash {
					continue
				}
				loaded, err := LoadStoreFromBytes(data)
				if err != nil {
					logger.Warn("failed to parse operators for reload", "err", err)
					continue
				}
				store.ReplaceOperators(loaded.Operators)
				lastHash = hash
			}
		}
	}()
	return nil
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
