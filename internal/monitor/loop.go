package monitor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const defaultInterval = 30 * time.Second

// RunLoop invokes tick once immediately and then on every interval boundary
// until ctx is cancelled. Tick failures are logged and do not stop the loop;
// cancellation exits cleanly. Ticks never overlap: the next wait begins only
// after the previous tick returns.
func RunLoop(ctx context.Context, interval time.Duration, tick func(ctx context.Context) error) {
	if interval <= 0 {
		interval = defaultInterval
	}

	log := zap.L().With(zap.String("component", "monitor.loop"))
	log.Info("starting polling loop", zap.Duration("interval", interval))

	// First tick runs before any wait so starting the monitor does not sit
	// idle for a full interval.
	runTick(ctx, tick, log)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("polling loop stopped", zap.Error(ctx.Err()))
			return
		case <-ticker.C:
			runTick(ctx, tick, log)
		}
	}
}

func runTick(ctx context.Context, tick func(ctx context.Context) error, log *zap.Logger) {
	if ctx.Err() != nil {
		return
	}
	if err := tick(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.Info("tick cancelled", zap.Error(err))
			return
		}
		log.Warn("tick failed", zap.Error(err))
	}
}
