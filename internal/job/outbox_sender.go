package job

import (
	"context"
	"time"

	"crmbilling/internal/model"
	"crmbilling/internal/repository"

	"go.uber.org/zap"
)

// Publisher delivers one outbox payload to the broker.
type Publisher interface {
	Publish(ctx context.Context, topic, key, value string) error
}

// OutboxSender relays PENDING outbox rows to Kafka. A row that keeps failing
// is marked FAILED after maxRetry attempts.
type OutboxSender struct {
	outbox    repository.OutboxRepository
	publisher Publisher
	logger    *zap.Logger
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
	maxRetry  int
}

func NewOutboxSender(outbox repository.OutboxRepository, publisher Publisher, interval time.Duration, batchSize, maxRetry int, logger *zap.Logger) *OutboxSender {
	return &OutboxSender{
		outbox:    outbox,
		publisher: publisher,
		logger:    logger,
		stopCh:    make(chan struct{}),
		interval:  interval,
		batchSize: batchSize,
		maxRetry:  maxRetry,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	loop(ctx, s.stopCh, "outbox_sender", s.interval, s.logger, s.processPendingMessages)
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

func (s *OutboxSender) processPendingMessages(ctx context.Context) {
	messages, err := s.outbox.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("load pending outbox messages failed", zap.Error(err))
		return
	}

	for _, msg := range messages {
		s.sendMessage(ctx, msg)
	}
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) {
	err := s.publisher.Publish(ctx, msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if err := s.outbox.MarkAsSent(ctx, msg.ID); err != nil {
			s.logger.Error("mark outbox message sent failed", zap.Int64("id", msg.ID), zap.Error(err))
			return
		}
		s.logger.Debug("outbox message sent",
			zap.Int64("id", msg.ID),
			zap.String("topic", msg.Topic),
			zap.String("key", msg.MessageKey))
		return
	}

	s.logger.Warn("outbox publish failed",
		zap.Int64("id", msg.ID),
		zap.Int("retry_count", msg.RetryCount),
		zap.Error(err))

	if msg.RetryCount+1 >= s.maxRetry {
		if err := s.outbox.MarkAsFailed(ctx, msg.ID); err != nil {
			s.logger.Error("mark outbox message failed", zap.Int64("id", msg.ID), zap.Error(err))
			return
		}
		s.logger.Error("outbox message gave up after max retries",
			zap.Int64("id", msg.ID),
			zap.String("topic", msg.Topic))
		return
	}

	if err := s.outbox.IncrementRetryCount(ctx, msg.ID); err != nil {
		s.logger.Error("increment outbox retry failed", zap.Int64("id", msg.ID), zap.Error(err))
	}
}
