package job

import (
	"context"
	"time"

	"crmbilling/internal/model"
	"crmbilling/internal/service"

	"github.com/stretchr/testify/mock"
)

type mockOutbox struct{ mock.Mock }

func (m *mockOutbox) Create(ctx context.Context, msg *model.OutboxMessage) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *mockOutbox) GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	args := m.Called(ctx, limit)
	msgs, _ := args.Get(0).([]*model.OutboxMessage)
	return msgs, args.Error(1)
}

func (m *mockOutbox) MarkAsSent(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockOutbox) IncrementRetryCount(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockOutbox) MarkAsFailed(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, topic, key, value string) error {
	return m.Called(ctx, topic, key, value).Error(0)
}

type mockSubscriptions struct{ mock.Mock }

func (m *mockSubscriptions) Sweep(ctx context.Context) (*service.SweepResult, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).(*service.SweepResult)
	return res, args.Error(1)
}

func (m *mockSubscriptions) ExpiryCheck(ctx context.Context) (*service.ExpiryResult, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).(*service.ExpiryResult)
	return res, args.Error(1)
}

type mockSyncer struct{ mock.Mock }

func (m *mockSyncer) ListStaleKaspiPayments(ctx context.Context, before time.Time, afterID int64, limit int) ([]*model.Payment, error) {
	args := m.Called(ctx, before, afterID, limit)
	list, _ := args.Get(0).([]*model.Payment)
	return list, args.Error(1)
}

func (m *mockSyncer) SyncExternalStatus(ctx context.Context, p *model.Payment) (*service.ReconcileResult, error) {
	args := m.Called(ctx, p)
	res, _ := args.Get(0).(*service.ReconcileResult)
	return res, args.Error(1)
}
