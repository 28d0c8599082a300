package tasks

import (
	"context"
	"time"

	"github.com/decentraminds/osmosis-streaming-driver/internal/logging"
)

const EvictionTaskName = "evict-expired-tokens"

// Evicter removes expired tokens and returns how many were removed.
type Evicter interface {
	EvictExpired() int
}

// EvictionTask purges expired tokens every interval.
func EvictionTask(e Evicter, interval time.Duration) TaskDefinition {
	return TaskDefinition{
		Name:     EvictionTaskName,
		Interval: interval,
		Timeout:  10 * time.Second,
		Handler: func(_ context.Context, logger logging.InternalLogger) error {
			if n := e.EvictExpired(); n > 0 {
				logger.Info("evicted %d expired token(s)", n)
			} else {
				logger.Debug("no expired tokens")
			}
			return nil
		},
	}
}
