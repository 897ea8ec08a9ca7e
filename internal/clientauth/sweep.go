package clientauth

import (
	"context"
	"fmt"
	"time"

	"pkt.systems/pslog"
)

// DefaultSweepInterval is how often the sweep loop purges expired state.
const DefaultSweepInterval = 10 * time.Minute

// Sweepable purges entries that are expired at the given time.
type Sweepable interface {
	Sweep(now time.Time) int
}

// StartSweepLoop purges expired sessions and rate-limit records on a fixed
// interval until the context is cancelled. It bounds memory growth of the
// in-process stores; eviction on access handles correctness either way.
func StartSweepLoop(ctx context.Context, interval time.Duration, logger pslog.Logger, targets ...Sweepable) error {
	if len(targets) == 0 {
		return fmt.Errorf("at least one sweep target is required")
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = pslog.LoggerFromEnv()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := time.Now()
				removed := 0
				for _, target := range targets {
					removed += target.Sweep(now)
				}
				if removed > 0 {
					logger.Debug("swept expired client auth state", "removed", removed)
				}
			}
		}
	}()
	return nil
}
