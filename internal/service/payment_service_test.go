package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"crmbilling/internal/gateway/kaspi"
	"crmbilling/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestChargeWallet_InsufficientFundsWritesNothing(t *testing.T) {
	f := newFixture()
	user := f.uow.seedUser("a@shop.kz", model.PlanFree, nil, false)
	f.uow.seedWallet(user.ID, 0)

	_, err := f.payments.ChargeWallet(context.Background(), ChargeWalletCommand{
		UserID: user.ID, Plan: model.PlanPro, Amount: 9900,
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	st := f.uow.snapshot()
	w, _ := st.walletOf(user.ID)
	assert.Equal(t, int64(0), w.Balance)
	assert.Empty(t, st.payments)
	assert.Empty(t, st.txns)
	assert.Empty(t, st.outbox)
	assert.Equal(t, model.PlanFree, st.users[user.ID].Plan)
}

func TestChargeWallet_Success(t *testing.T) {
	f := newFixture()
	user := f.uow.seedUser("a@shop.kz", model.PlanFree, nil, false)
	f.uow.seedWallet(user.ID, 15000)

	res, err := f.payments.ChargeWallet(context.Background(), ChargeWalletCommand{
		UserID: user.ID, Plan: model.PlanPro, Amount: 9900,
	})
	require.NoError(t, err)

	assert.Equal(t, model.PaymentStatusCompleted, res.Payment.Status)
	assert.Equal(t, int64(5100), res.NewBalance)
	require.NotNil(t, res.Payment.PaidAt)
	require.NotNil(t, res.Payment.WalletTransactionID)
	assert.Equal(t, res.Transaction.ID, *res.Payment.WalletTransactionID)

	st := f.uow.snapshot()
	w, _ := st.walletOf(user.ID)
	assert.Equal(t, int64(5100), w.Balance)

	require.Len(t, st.txns, 1)
	tx := st.txns[0]
	assert.Equal(t, int64(9900), tx.Amount)
	assert.Equal(t, int64(15000), tx.BalanceBefore)
	assert.Equal(t, int64(5100), tx.BalanceAfter)
	assert.Equal(t, tx.BalanceBefore-tx.Amount, tx.BalanceAfter)
	assert.Equal(t, model.TransactionTypeSubscription, tx.Type)
	require.NotNil(t, tx.PaymentID)
	assert.Equal(t, res.Payment.ID, *tx.PaymentID)

	stored := st.payments[res.Payment.ID]
	assert.Equal(t, model.PaymentStatusCompleted, stored.Status)
	assert.Equal(t, model.PaymentMethodWallet, stored.PaymentMethod)
	assert.Equal(t, "₸", stored.Currency)

	u := st.users[user.ID]
	assert.Equal(t, model.PlanPro, u.Plan)
	assert.True(t, u.SubscriptionAutoRenew)
	require.NotNil(t, u.SubscriptionExpiresAt)
	assert.Equal(t, f.clock.Now().Add(30*24*time.Hour), *u.SubscriptionExpiresAt)

	assert.Equal(t, 1, st.outboxOfType(model.EventPaymentCompleted))
	assert.Equal(t, "billing.payment-events", st.outbox[0].Topic)
}

func TestChargeWallet_LateFailureRollsBack(t *testing.T) {
	f := newFixture()
	user := f.uow.seedUser("a@shop.kz", model.PlanFree, nil, false)
	f.uow.seedWallet(user.ID, 15000)
	f.uow.hooks.outboxErr = errors.New("disk full")

	_, err := f.payments.ChargeWallet(context.Background(), ChargeWalletCommand{
		UserID: user.ID, Plan: model.PlanPro, Amount: 9900,
	})
	require.Error(t, err)

	st := f.uow.snapshot()
	w, _ := st.walletOf(user.ID)
	assert.Equal(t, int64(15000), w.Balance)
	assert.Empty(t, st.payments)
	assert.Empty(t, st.txns)
	assert.Equal(t, model.PlanFree, st.users[user.ID].Plan)
	assert.Nil(t, st.users[user.ID].SubscriptionExpiresAt)
}

func TestChargeWallet_ConcurrentChargesNeverOverdraw(t *testing.T) {
	f := newFixture()
	user := f.uow.seedUser("a@shop.kz", model.PlanFree, nil, false)
	f.uow.seedWallet(user.ID, 9900)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		declined  int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.payments.ChargeWallet(context.Background(), ChargeWalletCommand{
				UserID: user.ID, Plan: model.PlanPro, Amount: 9900,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrInsufficientFunds):
				declined++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, declined)

	st := f.uow.snapshot()
	w, _ := st.walletOf(user.ID)
	assert.Equal(t, int64(0), w.Balance)
	assert.Len(t, st.txns, 1)
}

func TestChargeWallet_EmptyWalletAndZeroAmount(t *testing.T) {
	f := newFixture()
	user := f.uow.seedUser("a@shop.kz", model.PlanFree, nil, false)

	_, err := f.payments.ChargeWallet(context.Background(), ChargeWalletCommand{
		UserID: user.ID, Plan: model.PlanPro, Amount: 9900,
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = f.payments.ChargeWallet(context.Background(), ChargeWalletCommand{
		UserID: user.ID, Plan: model.PlanPro, Amount: 0,
	})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestSubscribe_RejectsBadPlanOrMethod(t *testing.T) {
	f := newFixture()
	user := f.uow.seedUser("a@shop.kz", model.PlanFree, nil, false)
	ctx := context.Background()

	_, err := f.payments.Subscribe(ctx, SubscribeCommand{UserID: user.ID, Plan: model.PlanFree, PaymentMethod: "wallet"})
	assert.ErrorIs(t, err, ErrInvalidPlanOrMethod)

	_, err = f.payments.Subscribe(ctx, SubscribeCommand{UserID: user.ID, Plan: model.PlanPro, PaymentMethod: "card"})
	assert.ErrorIs(t, err, ErrInvalidPlanOrMethod)

	assert.Empty(t, f.uow.snapshot().payments)
}

func TestSubscribe_WalletAtListPrice(t *testing.T) {
	f := newFixture()
	user := f.uow.seedUser("a@shop.kz", model.PlanFree, nil, false)
	f.uow.seedWallet(user.ID, 30000)

	res, err := f.payments.Subscribe(context.Background(), SubscribeCommand{
		UserID: user.ID, Plan: model.PlanBusiness, PaymentMethod: model.PaymentMethodWallet,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Wallet)
	assert.Nil(t, res.External)
	assert.Equal(t, int64(24900), res.Payment.Amount)
	assert.Equal(t, int64(5100), res.Wallet.NewBalance)
}

func TestSubscribe_RequestIDReplaysEarlierPayment(t *testing.T) {
	f := newFixture()
	user := f.uow.seedUser("a@shop.kz", model.PlanFree, nil, false)
	f.uow.seedWallet(user.ID, 30000)
	cmd := SubscribeCommand{UserID: user.ID, Plan: model.PlanPro, PaymentMethod: "wallet", RequestID: "req-1"}

	first, err := f.payments.Subscribe(context.Background(), cmd)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := f.payments.Subscribe(context.Background(), cmd)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Payment.ID, second.Payment.ID)

	st := f.uow.snapshot()
	w, _ := st.walletOf(user.ID)
	assert.Equal(t, int64(20100), w.Balance)
	assert.Len(t, st.payments, 1)
}

func TestSubscribe_TakesChargeLock(t *testing.T) {
	f := newFixture()
	user := f.uow.seedUser("a@shop.kz", model.PlanFree, nil, false)
	f.uow.seedWallet(user.ID, 9900)
	locker := &fakeLocker{}
	svc := NewPaymentService(f.uow, f.gateway, locker, testSettings(f.clock), zap.NewNop())

	_, err := svc.Subscribe(context.Background(), SubscribeCommand{UserID: user.ID, Plan: model.PlanPro, PaymentMethod: "wallet"})
	require.NoError(t, err)
	assert.Equal(t, []int64{user.ID}, locker.acquired)
	assert.Equal(t, 1, locker.released)

	locker.err = fmt.Errorf("%w: lock held", ErrBusy)
	_, err = svc.Subscribe(context.Background(), SubscribeCommand{UserID: user.ID, Plan: model.PlanPro, PaymentMethod: "wallet"})
	assert.ErrorIs(t, err, ErrBusy)
}

func TestSubscribe_LockBackendDownFallsBackToRowLock(t *testing.T) {
	f := newFixture()
	user := f.uow.seedUser("a@shop.kz", model.PlanFree, nil, false)
	f.uow.seedWallet(user.ID, 9900)
	locker := &fakeLocker{err: errors.New("dial tcp 127.0.0.1:6379: connection refused")}
	svc := NewPaymentService(f.uow, f.gateway, locker, testSettings(f.clock), zap.NewNop())

	res, err := svc.Subscribe(context.Background(), SubscribeCommand{UserID: user.ID, Plan: model.PlanPro, PaymentMethod: "wallet"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Wallet.NewBalance)
	assert.Equal(t, 0, locker.released)

	_, err = svc.Subscribe(context.Background(), SubscribeCommand{UserID: user.ID, Plan: model.PlanPro, PaymentMethod: "wallet"})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestSubscribe_RequestIDIsScopedToUser(t *testing.T) {
	f := newFixture()
	a := f.uow.seedUser("a@shop.kz", model.PlanFree, nil, false)
	b := f.uow.seedUser("b@shop.kz", model.PlanFree, nil, false)
	f.uow.seedWallet(a.ID, 9900)
	f.uow.seedWallet(b.ID, 9900)

	first, err := f.payments.Subscribe(context.Background(), SubscribeCommand{UserID: a.ID, Plan: model.PlanPro, PaymentMethod: "wallet", RequestID: "checkout-1"})
	require.NoError(t, err)

	second, err := f.payments.Subscribe(context.Background(), SubscribeCommand{UserID: b.ID, Plan: model.PlanPro, PaymentMethod: "wallet", RequestID: "checkout-1"})
	require.NoError(t, err)
	assert.False(t, second.Replayed)
	assert.NotEqual(t, first.Payment.ID, second.Payment.ID)
	assert.Equal(t, b.ID, second.Payment.UserID)

	st := f.uow.snapshot()
	assert.Len(t, st.payments, 2)
	wb, _ := st.walletOf(b.ID)
	assert.Equal(t, int64(0), wb.Balance)
}

func TestSubscribe_RetryAfterGatewayFailureReopensOrder(t *testing.T) {
	f := newFixture()
	user := f.uow.seedUser("a@shop.kz", model.PlanFree, nil, false)
	cmd := SubscribeCommand{UserID: user.ID, Plan: model.PlanPro, PaymentMethod: "kaspi", RequestID: "req-k"}

	f.gateway.createErr = errGatewayDown
	_, err := f.payments.Subscribe(context.Background(), cmd)
	require.ErrorIs(t, err, ErrGatewayUnavailable)

	f.gateway.createErr = nil
	res, err := f.payments.Subscribe(context.Background(), cmd)
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	require.NotNil(t, res.External)
	assert.NotEmpty(t, res.External.PaymentURL)
	assert.Equal(t, model.PaymentStatusProcessing, res.Payment.Status)
	assert.Len(t, f.gateway.created, 2)

	st := f.uow.snapshot()
	require.Len(t, st.payments, 1)
	stored := st.payments[res.Payment.ID]
	assert.Equal(t, model.PaymentStatusProcessing, stored.Status)
	require.NotNil(t, stored.KaspiOrderID)
	assert.Equal(t, res.External.OrderID, *stored.KaspiOrderID)

	again, err := f.payments.Subscribe(context.Background(), cmd)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Len(t, f.gateway.created, 2)
}

func TestSubscribe_Kaspi(t *testing.T) {
	f := newFixture()
	user := f.uow.seedUser("a@shop.kz", model.PlanFree, nil, false)

	res, err := f.payments.Subscribe(context.Background(), SubscribeCommand{
		UserID: user.ID, Plan: model.PlanPro, PaymentMethod: model.PaymentMethodKaspi,
	})
	require.NoError(t, err)
	require.NotNil(t, res.External)

	assert.Equal(t, model.PaymentStatusProcessing, res.Payment.Status)
	require.NotNil(t, res.Payment.KaspiOrderID)
	assert.Equal(t, res.External.OrderID, *res.Payment.KaspiOrderID)
	assert.True(t, strings.HasPrefix(res.External.OrderID, "sub_1_"), res.External.OrderID)
	assert.Equal(t, "https://pay.kaspi.kz/"+res.External.OrderID, res.External.PaymentURL)

	require.Len(t, f.gateway.created, 1)
	req := f.gateway.created[0]
	assert.Equal(t, int64(9900), req.Amount)
	assert.Equal(t, "http://app/subscription?status=success", req.ReturnURL)
	assert.Equal(t, "http://app/subscription?status=cancelled", req.CancelURL)

	st := f.uow.snapshot()
	assert.Equal(t, model.PaymentStatusProcessing, st.payments[res.Payment.ID].Status)
	assert.Equal(t, model.PlanFree, st.users[user.ID].Plan)
}

func TestInitiateExternalPayment_GatewayFailureLeavesPending(t *testing.T) {
	f := newFixture()
	user := f.uow.seedUser("a@shop.kz", model.PlanFree, nil, false)
	f.gateway.createErr = errGatewayDown

	_, err := f.payments.InitiateExternalPayment(context.Background(), ExternalPaymentCommand{
		UserID: user.ID, Plan: model.PlanPro, Amount: 9900,
	})
	require.ErrorIs(t, err, ErrGatewayUnavailable)

	st := f.uow.snapshot()
	require.Len(t, st.payments, 1)
	for _, p := range st.payments {
		assert.Equal(t, model.PaymentStatusPending, p.Status)
		assert.Nil(t, p.KaspiOrderID)
	}
}

func TestInitiateExternalPayment_OrderIDsAreUnique(t *testing.T) {
	f := newFixture()
	user := f.uow.seedUser("a@shop.kz", model.PlanFree, nil, false)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		res, err := f.payments.InitiateExternalPayment(context.Background(), ExternalPaymentCommand{
			UserID: user.ID, Plan: model.PlanPro, Amount: 9900,
		})
		require.NoError(t, err)
		assert.False(t, seen[res.OrderID], res.OrderID)
		seen[res.OrderID] = true
	}
}

func TestCreateKaspiOrder_AmountOverride(t *testing.T) {
	f := newFixture()
	user := f.uow.seedUser("a@shop.kz", model.PlanFree, nil, false)

	res, err := f.payments.CreateKaspiOrder(context.Background(), CreateOrderCommand{UserID: user.ID, Plan: model.PlanPro})
	require.NoError(t, err)
	assert.Equal(t, int64(9900), res.Payment.Amount)

	res, err = f.payments.CreateKaspiOrder(context.Background(), CreateOrderCommand{UserID: user.ID, Plan: model.PlanBusiness, Amount: 30000})
	require.NoError(t, err)
	assert.Equal(t, int64(30000), res.Payment.Amount)

	_, err = f.payments.CreateKaspiOrder(context.Background(), CreateOrderCommand{UserID: user.ID, Plan: model.PlanBusiness, Amount: 1})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.payments.CreateKaspiOrder(context.Background(), CreateOrderCommand{UserID: user.ID, Plan: model.PlanPro, Amount: -5})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func seedKaspiPayment(f *fixture, userID int64, orderID string, status model.PaymentStatus) model.Payment {
	return f.uow.seedPayment(model.Payment{
		UserID:        userID,
		Plan:          model.PlanPro,
		Amount:        9900,
		Currency:      "₸",
		PaymentMethod: model.PaymentMethodKaspi,
		Status:        status,
		KaspiOrderID:  ptr(orderID),
	})
}

func TestReconcileWebhook_SuccessIsIdempotent(t *testing.T) {
	f := newFixture()
	user := f.uow.seedUser("a@shop.kz", model.PlanFree, nil, false)
	p := seedKaspiPayment(f, user.ID, "KSP-1", model.PaymentStatusProcessing)
	ctx := context.Background()

	first, err := f.payments.ReconcileWebhook(ctx, ReconcileCommand{OrderID: "KSP-1", Status: "paid", ExternalPaymentID: "kp-9"})
	require.NoError(t, err)
	assert.True(t, first.Changed)
	assert.Equal(t, kaspi.StatusSuccess, first.Outcome)
	assert.Equal(t, model.PaymentStatusCompleted, first.Payment.Status)

	st := f.uow.snapshot()
	expires := *st.users[user.ID].SubscriptionExpiresAt
	assert.Equal(t, model.PlanPro, st.users[user.ID].Plan)
	assert.Equal(t, "kp-9", *st.payments[p.ID].KaspiPaymentID)
	assert.Nil(t, st.payments[p.ID].WalletTransactionID)

	f.clock.Advance(time.Hour)
	second, err := f.payments.ReconcileWebhook(ctx, ReconcileCommand{OrderID: "KSP-1", Status: "PAID"})
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Equal(t, model.PaymentStatusCompleted, second.Payment.Status)

	st = f.uow.snapshot()
	assert.Equal(t, expires, *st.users[user.ID].SubscriptionExpiresAt)
	assert.Equal(t, 1, st.outboxOfType(model.EventPaymentCompleted))
	assert.Empty(t, st.txns)
}

func TestReconcileWebhook_TerminalStatesStayTerminal(t *testing.T) {
	f := newFixture()
	user := f.uow.seedUser("a@shop.kz", model.PlanFree, nil, false)
	p := seedKaspiPayment(f, user.ID, "KSP-2", model.PaymentStatusProcessing)
	ctx := context.Background()

	res, err := f.payments.ReconcileWebhook(ctx, ReconcileCommand{OrderID: "KSP-2", Status: "CANCELLED"})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusFailed, res.Payment.Status)

	for _, status := range []string{"PAID", "COMPLETED", "EXPIRED", "pending"} {
		res, err = f.payments.ReconcileWebhook(ctx, ReconcileCommand{OrderID: "KSP-2", Status: status})
		require.NoError(t, err)
		assert.False(t, res.Changed)
	}

	st := f.uow.snapshot()
	assert.Equal(t, model.PaymentStatusFailed, st.payments[p.ID].Status)
	assert.Equal(t, model.PlanFree, st.users[user.ID].Plan)
	assert.Equal(t, 1, st.outboxOfType(model.EventPaymentFailed))
}

func TestReconcileWebhook_UnknownStatusLeavesPayment(t *testing.T) {
	f := newFixture()
	user := f.uow.seedUser("a@shop.kz", model.PlanFree, nil, false)
	p := seedKaspiPayment(f, user.ID, "KSP-3", model.PaymentStatusProcessing)

	res, err := f.payments.ReconcileWebhook(context.Background(), ReconcileCommand{OrderID: "KSP-3", Status: "AWAITING_CONFIRMATION"})
	require.NoError(t, err)
	assert.Equal(t, kaspi.StatusUnknown, res.Outcome)
	assert.False(t, res.Changed)
	assert.Equal(t, model.PaymentStatusProcessing, f.uow.snapshot().payments[p.ID].Status)
}

func TestReconcileWebhook_PendingPaymentCompletes(t *testing.T) {
	f := newFixture()
	user := f.uow.seedUser("a@shop.kz", model.PlanFree, nil, false)
	p := seedKaspiPayment(f, user.ID, "KSP-4", model.PaymentStatusPending)

	res, err := f.payments.ReconcileWebhook(context.Background(), ReconcileCommand{OrderID: "KSP-4", Status: "SUCCESS"})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, model.PaymentStatusCompleted, f.uow.snapshot().payments[p.ID].Status)
}

func TestReconcileWebhook_UnknownOrder(t *testing.T) {
	f := newFixture()
	_, err := f.payments.ReconcileWebhook(context.Background(), ReconcileCommand{OrderID: "nope", Status: "PAID"})
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestSyncExternalStatus(t *testing.T) {
	f := newFixture()
	user := f.uow.seedUser("a@shop.kz", model.PlanFree, nil, false)
	p := seedKaspiPayment(f, user.ID, "KSP-5", model.PaymentStatusProcessing)
	ctx := context.Background()

	f.gateway.statusErr = errGatewayDown
	_, err := f.payments.SyncExternalStatus(ctx, &p)
	assert.ErrorIs(t, err, ErrGatewayUnavailable)

	f.gateway.statusErr = nil
	f.gateway.status = &kaspi.OrderStatus{Status: kaspi.StatusSuccess, RawStatus: "PAID", PaymentID: "kp-1"}
	res, err := f.payments.SyncExternalStatus(ctx, &p)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, model.PlanPro, f.uow.snapshot().users[user.ID].Plan)

	done := f.uow.snapshot().payments[p.ID]
	res, err = f.payments.SyncExternalStatus(ctx, &done)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, []string{"KSP-5", "KSP-5"}, f.gateway.polled)
}

func TestGetPayment_OwnershipScoped(t *testing.T) {
	f := newFixture()
	owner := f.uow.seedUser("a@shop.kz", model.PlanFree, nil, false)
	other := f.uow.seedUser("b@shop.kz", model.PlanFree, nil, false)
	p := seedKaspiPayment(f, owner.ID, "KSP-6", model.PaymentStatusProcessing)

	got, err := f.payments.GetPayment(context.Background(), p.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = f.payments.GetPayment(context.Background(), p.ID, other.ID)
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestListPayments_NewestFirst(t *testing.T) {
	f := newFixture()
	user := f.uow.seedUser("a@shop.kz", model.PlanFree, nil, false)
	other := f.uow.seedUser("b@shop.kz", model.PlanFree, nil, false)
	a := seedKaspiPayment(f, user.ID, "o-a", model.PaymentStatusProcessing)
	b := seedKaspiPayment(f, user.ID, "o-b", model.PaymentStatusProcessing)
	seedKaspiPayment(f, other.ID, "o-c", model.PaymentStatusProcessing)

	list, total, err := f.payments.ListPayments(context.Background(), user.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, a.ID, list[1].ID)
}

func TestListStaleKaspiPayments(t *testing.T) {
	f := newFixture()
	user := f.uow.seedUser("a@shop.kz", model.PlanFree, nil, false)
	stale := seedKaspiPayment(f, user.ID, "old", model.PaymentStatusProcessing)
	seedKaspiPayment(f, user.ID, "done", model.PaymentStatusCompleted)

	list, err := f.payments.ListStaleKaspiPayments(context.Background(), time.Now().Add(time.Minute), 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, stale.ID, list[0].ID)

	list, err = f.payments.ListStaleKaspiPayments(context.Background(), time.Now().Add(time.Minute), stale.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}
