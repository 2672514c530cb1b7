package job

import (
	"context"
	"time"

	"crmbilling/internal/service"

	"go.uber.org/zap"
)

// SubscriptionRunner is the part of SubscriptionService the scheduled jobs drive.
type SubscriptionRunner interface {
	Sweep(ctx context.Context) (*service.SweepResult, error)
	ExpiryCheck(ctx context.Context) (*service.ExpiryResult, error)
}

// SubscriptionSweepJob renews, reminds or deactivates subscriptions that are
// about to end.
type SubscriptionSweepJob struct {
	subs     SubscriptionRunner
	logger   *zap.Logger
	stopCh   chan struct{}
	interval time.Duration
}

func NewSubscriptionSweepJob(subs SubscriptionRunner, interval time.Duration, logger *zap.Logger) *SubscriptionSweepJob {
	return &SubscriptionSweepJob{
		subs:     subs,
		logger:   logger,
		stopCh:   make(chan struct{}),
		interval: interval,
	}
}

func (j *SubscriptionSweepJob) Start(ctx context.Context) {
	loop(ctx, j.stopCh, "subscription_sweep", j.interval, j.logger, j.run)
}

func (j *SubscriptionSweepJob) Stop() {
	close(j.stopCh)
}

func (j *SubscriptionSweepJob) run(ctx context.Context) {
	res, err := j.subs.Sweep(ctx)
	if err != nil {
		j.logger.Error("subscription sweep aborted", zap.Error(err))
		return
	}
	if res.Failed > 0 {
		j.logger.Warn("subscription sweep finished with failures",
			zap.Int("failed", res.Failed),
			zap.Int("processed", res.Processed))
	}
}

// ExpiryCheckJob downgrades lapsed subscriptions with auto-renew off.
type ExpiryCheckJob struct {
	subs     SubscriptionRunner
	logger   *zap.Logger
	stopCh   chan struct{}
	interval time.Duration
}

func NewExpiryCheckJob(subs SubscriptionRunner, interval time.Duration, logger *zap.Logger) *ExpiryCheckJob {
	return &ExpiryCheckJob{
		subs:     subs,
		logger:   logger,
		stopCh:   make(chan struct{}),
		interval: interval,
	}
}

func (j *ExpiryCheckJob) Start(ctx context.Context) {
	loop(ctx, j.stopCh, "expiry_check", j.interval, j.logger, j.run)
}

func (j *ExpiryCheckJob) Stop() {
	close(j.stopCh)
}

func (j *ExpiryCheckJob) run(ctx context.Context) {
	if _, err := j.subs.ExpiryCheck(ctx); err != nil {
		j.logger.Error("expiry check aborted", zap.Error(err))
	}
}
