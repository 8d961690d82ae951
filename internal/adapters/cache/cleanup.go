package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// runCleanup calls cleanup every freq until stopCh is closed. A non-positive
// freq disables the task.
func runCleanup(freq time.Duration, stopCh <-chan struct{}, cleanup func(context.Context) error, logger *zap.Logger) {
	if freq <= 0 {
		return
	}

	ticker := time.NewTicker(freq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := cleanup(context.Background()); err != nil {
				logger.Error("Failed to clean up cache", zap.Error(err))
			}
		case <-stopCh:
			return
		}
	}
}
