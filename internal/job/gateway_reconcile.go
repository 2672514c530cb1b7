package job

import (
	"context"
	"time"

	"crmbilling/internal/model"
	"crmbilling/internal/service"

	"go.uber.org/zap"
)

// PaymentSyncer is the part of PaymentService used to settle stale gateway payments.
type PaymentSyncer interface {
	ListStaleKaspiPayments(ctx context.Context, before time.Time, afterID int64, limit int) ([]*model.Payment, error)
	SyncExternalStatus(ctx context.Context, payment *model.Payment) (*service.ReconcileResult, error)
}

// GatewayReconcileJob polls Kaspi for processing payments whose webhook never
// arrived and feeds the answer through the webhook reconciliation path.
type GatewayReconcileJob struct {
	payments  PaymentSyncer
	logger    *zap.Logger
	stopCh    chan struct{}
	interval  time.Duration
	after     time.Duration
	batchSize int
	now       func() time.Time
}

func NewGatewayReconcileJob(payments PaymentSyncer, interval, after time.Duration, batchSize int, logger *zap.Logger) *GatewayReconcileJob {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &GatewayReconcileJob{
		payments:  payments,
		logger:    logger,
		stopCh:    make(chan struct{}),
		interval:  interval,
		after:     after,
		batchSize: batchSize,
		now:       time.Now,
	}
}

func (j *GatewayReconcileJob) Start(ctx context.Context) {
	loop(ctx, j.stopCh, "gateway_reconcile", j.interval, j.logger, func(ctx context.Context) {
		j.reconcileStalePayments(ctx)
	})
}

func (j *GatewayReconcileJob) Stop() {
	close(j.stopCh)
}

// reconcileStalePayments walks every stale payment in id order, batchSize at a
// time, and returns how many reached a terminal state. Payments the gateway
// still reports as open do not block the ones behind them.
func (j *GatewayReconcileJob) reconcileStalePayments(ctx context.Context) int {
	before := j.now().Add(-j.after)
	var afterID int64
	polled, settled := 0, 0

	for ctx.Err() == nil {
		payments, err := j.payments.ListStaleKaspiPayments(ctx, before, afterID, j.batchSize)
		if err != nil {
			j.logger.Error("list stale kaspi payments failed", zap.Int64("after_id", afterID), zap.Error(err))
			break
		}

		for _, p := range payments {
			if ctx.Err() != nil {
				break
			}
			afterID = p.ID
			polled++
			res, err := j.payments.SyncExternalStatus(ctx, p)
			if err != nil {
				j.logger.Warn("kaspi status sync failed",
					zap.Int64("payment_id", p.ID),
					zap.Error(err))
				continue
			}
			if res.Changed {
				settled++
			}
		}

		if len(payments) < j.batchSize {
			break
		}
	}

	if polled > 0 {
		j.logger.Info("stale kaspi payments reconciled", zap.Int("polled", polled), zap.Int("settled", settled))
	}
	return settled
}
