package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"crmbilling/internal/gateway/kaspi"
	"crmbilling/internal/model"

	"go.uber.org/zap"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testSettings(clock *testClock) Settings {
	return Settings{
		Prices:             model.PriceList{"pro": 9900, "business": 24900},
		CurrencyLabel:      "₸",
		SubscriptionPeriod: 30 * 24 * time.Hour,
		ReminderWindow:     3 * 24 * time.Hour,
		PaymentTopic:       "billing.payment-events",
		SubscriptionTopic:  "billing.subscription-events",
		ReturnURL:          "http://app/subscription?status=success",
		CancelURL:          "http://app/subscription?status=cancelled",
		BatchSize:          100,
		Now:                clock.Now,
	}
}

type fakeGateway struct {
	mu         sync.Mutex
	createErr  error
	paymentURL string
	status     *kaspi.OrderStatus
	statuses   map[string]*kaspi.OrderStatus
	statusErr  error
	created    []kaspi.OrderRequest
	polled     []string
}

func (g *fakeGateway) CreateOrder(_ context.Context, req kaspi.OrderRequest) (*kaspi.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, req)
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &kaspi.Order{OrderID: req.OrderID, PaymentURL: g.paymentURL + req.OrderID, Status: "pending"}, nil
}

func (g *fakeGateway) OrderStatus(_ context.Context, orderID string) (*kaspi.OrderStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.polled = append(g.polled, orderID)
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	if st, ok := g.statuses[orderID]; ok {
		return st, nil
	}
	return g.status, nil
}

type fakeLocker struct {
	mu       sync.Mutex
	err      error
	acquired []int64
	released int
}

func (l *fakeLocker) Acquire(_ context.Context, userID int64, _ string) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.acquired = append(l.acquired, userID)
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.released++
		return nil
	}, nil
}

var errGatewayDown = errors.New("dial tcp: connection refused")

type fixture struct {
	uow      *memUoW
	clock    *testClock
	gateway  *fakeGateway
	payments *PaymentService
	subs     *SubscriptionService
	wallets  *WalletService
}

func newFixture() *fixture {
	clock := &testClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	uow := newMemUoW()
	gw := &fakeGateway{paymentURL: "https://pay.kaspi.kz/"}
	settings := testSettings(clock)
	payments := NewPaymentService(uow, gw, nil, settings, zap.NewNop())
	return &fixture{
		uow:      uow,
		clock:    clock,
		gateway:  gw,
		payments: payments,
		subs:     NewSubscriptionService(uow, payments, settings, zap.NewNop()),
		wallets:  NewWalletService(uow, settings, zap.NewNop()),
	}
}

func ptr[T any](v T) *T {
	return &v
}
