package job

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// loop calls tick every interval until ctx is cancelled or stop is closed.
func loop(ctx context.Context, stop <-chan struct{}, name string, interval time.Duration, logger *zap.Logger, tick func(context.Context)) {
	logger.Info("job started", zap.String("job", name), zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("job stopped by context", zap.String("job", name))
			return
		case <-stop:
			logger.Info("job stopped", zap.String("job", name))
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}
