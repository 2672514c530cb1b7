package handler

import (
	"context"

	"crmbilling/internal/model"
	"crmbilling/internal/service"

	"github.com/stretchr/testify/mock"
)

type mockPayments struct{ mock.Mock }

func (m *mockPayments) Subscribe(ctx context.Context, cmd service.SubscribeCommand) (*service.SubscribeResult, error) {
	args := m.Called(ctx, cmd)
	res, _ := args.Get(0).(*service.SubscribeResult)
	return res, args.Error(1)
}

func (m *mockPayments) CreateKaspiOrder(ctx context.Context, cmd service.CreateOrderCommand) (*service.ExternalPaymentResult, error) {
	args := m.Called(ctx, cmd)
	res, _ := args.Get(0).(*service.ExternalPaymentResult)
	return res, args.Error(1)
}

func (m *mockPayments) ReconcileWebhook(ctx context.Context, cmd service.ReconcileCommand) (*service.ReconcileResult, error) {
	args := m.Called(ctx, cmd)
	res, _ := args.Get(0).(*service.ReconcileResult)
	return res, args.Error(1)
}

func (m *mockPayments) ListPayments(ctx context.Context, userID int64, limit, offset int) ([]*model.Payment, int64, error) {
	args := m.Called(ctx, userID, limit, offset)
	list, _ := args.Get(0).([]*model.Payment)
	return list, args.Get(1).(int64), args.Error(2)
}

func (m *mockPayments) GetPayment(ctx context.Context, paymentID, userID int64) (*model.Payment, error) {
	args := m.Called(ctx, paymentID, userID)
	p, _ := args.Get(0).(*model.Payment)
	return p, args.Error(1)
}

type mockWallets struct{ mock.Mock }

func (m *mockWallets) Get(ctx context.Context, userID int64) (*model.Wallet, error) {
	args := m.Called(ctx, userID)
	w, _ := args.Get(0).(*model.Wallet)
	return w, args.Error(1)
}

func (m *mockWallets) TopUp(ctx context.Context, cmd service.WalletAmountCommand) (*service.WalletOperationResult, error) {
	args := m.Called(ctx, cmd)
	res, _ := args.Get(0).(*service.WalletOperationResult)
	return res, args.Error(1)
}

func (m *mockWallets) Withdraw(ctx context.Context, cmd service.WalletAmountCommand) (*service.WalletOperationResult, error) {
	args := m.Called(ctx, cmd)
	res, _ := args.Get(0).(*service.WalletOperationResult)
	return res, args.Error(1)
}

func (m *mockWallets) UpdateCurrency(ctx context.Context, userID int64, label string) (*model.Wallet, error) {
	args := m.Called(ctx, userID, label)
	w, _ := args.Get(0).(*model.Wallet)
	return w, args.Error(1)
}

func (m *mockWallets) ListTransactions(ctx context.Context, userID int64, limit, offset int) ([]*model.WalletTransaction, int64, error) {
	args := m.Called(ctx, userID, limit, offset)
	list, _ := args.Get(0).([]*model.WalletTransaction)
	return list, args.Get(1).(int64), args.Error(2)
}

type mockSubscriptions struct{ mock.Mock }

func (m *mockSubscriptions) Info(ctx context.Context, userID int64) (*service.SubscriptionInfo, error) {
	args := m.Called(ctx, userID)
	info, _ := args.Get(0).(*service.SubscriptionInfo)
	return info, args.Error(1)
}

func (m *mockSubscriptions) SetAutoRenew(ctx context.Context, userID int64, enabled bool) error {
	return m.Called(ctx, userID, enabled).Error(0)
}

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

type resolverFunc func(ctx context.Context, email string) (*model.User, error)

func (f resolverFunc) Resolve(ctx context.Context, email string) (*model.User, error) {
	return f(ctx, email)
}
