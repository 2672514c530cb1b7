package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crmbilling/internal/gateway/kaspi"
	"crmbilling/internal/metrics"
	"crmbilling/internal/model"
	"crmbilling/internal/repository"
	"crmbilling/pkg/idgen"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPaymentLimit = 50
	maxPaymentLimit     = 200
)

// Gateway is the external payment provider.
type Gateway interface {
	CreateOrder(ctx context.Context, req kaspi.OrderRequest) (*kaspi.Order, error)
	OrderStatus(ctx context.Context, orderID string) (*kaspi.OrderStatus, error)
}

// ChargeLocker serialises purchase attempts of one user across processes.
// Acquire fails with ErrBusy when another attempt holds the lock; any other
// error means the lock backend is unavailable.
type ChargeLocker interface {
	Acquire(ctx context.Context, userID int64, owner string) (func(context.Context) error, error)
}

type ChargeWalletCommand struct {
	UserID    int64
	Plan      model.Plan
	Amount    int64
	RequestID string
}

type ChargeResult struct {
	Payment     *model.Payment
	Transaction *model.WalletTransaction
	NewBalance  int64
	ExpiresAt   time.Time
}

type ExternalPaymentCommand struct {
	UserID    int64
	Plan      model.Plan
	Amount    int64
	ReturnURL string
	CancelURL string
	RequestID string
}

type ExternalPaymentResult struct {
	Payment    *model.Payment
	PaymentURL string
	OrderID    string
}

type SubscribeCommand struct {
	UserID        int64
	Plan          model.Plan
	PaymentMethod string
	RequestID     string
}

// SubscribeResult carries either the wallet or the gateway outcome.
// Replayed is set when RequestID matched an earlier payment.
type SubscribeResult struct {
	Payment  *model.Payment
	Wallet   *ChargeResult
	External *ExternalPaymentResult
	Replayed bool
}

type CreateOrderCommand struct {
	UserID int64
	Plan   model.Plan
	Amount int64
}

type ReconcileCommand struct {
	OrderID           string
	Status            string
	ExternalPaymentID string
}

type ReconcileResult struct {
	Payment *model.Payment
	Outcome kaspi.Status
	Changed bool
}

type PaymentService struct {
	uow      repository.UnitOfWork
	gateway  Gateway
	locker   ChargeLocker
	settings Settings
	logger   *zap.Logger
}

// NewPaymentService wires the payment flows. locker may be nil, in which case
// the database row lock alone serialises charges.
func NewPaymentService(uow repository.UnitOfWork, gateway Gateway, locker ChargeLocker, settings Settings, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		uow:      uow,
		gateway:  gateway,
		locker:   locker,
		settings: settings,
		logger:   logger,
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ChargeWallet debits the wallet, records the ledger line, completes the
// payment and activates the subscription in one transaction.
func (s *PaymentService) ChargeWallet(ctx context.Context, cmd ChargeWalletCommand) (*ChargeResult, error) {
	if cmd.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !cmd.Plan.IsPaid() {
		return nil, ErrInvalidPlanOrMethod
	}

	var result ChargeResult
	err := s.uow.Do(ctx, func(r *repository.Repos) error {
		if _, err := r.Wallets.GetOrCreate(ctx, cmd.UserID, s.settings.currency()); err != nil {
			return fmt.Errorf("get wallet: %w", err)
		}
		wallet, err := r.Wallets.GetByUserIDForUpdate(ctx, cmd.UserID)
		if err != nil {
			return fmt.Errorf("lock wallet: %w", err)
		}
		if wallet.Balance < cmd.Amount {
			return ErrInsufficientFunds
		}

		payment := &model.Payment{
			UserID:        cmd.UserID,
			Plan:          cmd.Plan,
			Amount:        cmd.Amount,
			Currency:      s.settings.currency(),
			PaymentMethod: model.PaymentMethodWallet,
			Status:        model.PaymentStatusProcessing,
			RequestID:     optionalString(cmd.RequestID),
		}
		if err := r.Payments.Create(ctx, payment); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		if err := r.Wallets.Debit(ctx, wallet.ID, cmd.Amount); err != nil {
			if errors.Is(err, repository.ErrInsufficientBalance) {
				return ErrInsufficientFunds
			}
			return fmt.Errorf("debit wallet: %w", err)
		}

		trans := &model.WalletTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			WalletID:      wallet.ID,
			UserID:        cmd.UserID,
			PaymentID:     &payment.ID,
			Type:          model.TransactionTypeSubscription,
			Amount:        cmd.Amount,
			BalanceBefore: wallet.Balance,
			BalanceAfter:  wallet.Balance - cmd.Amount,
			Description:   fmt.Sprintf("Subscription %s", cmd.Plan),
		}
		if err := r.Transactions.Create(ctx, trans); err != nil {
			return fmt.Errorf("record transaction: %w", err)
		}

		now := s.settings.now()
		err = r.Payments.UpdateStatus(ctx, payment.ID, model.PaymentStatusProcessing, model.PaymentStatusCompleted,
			repository.PaymentChanges{WalletTransactionID: &trans.ID, PaidAt: &now})
		if err != nil {
			return fmt.Errorf("complete payment: %w", err)
		}
		payment.Status = model.PaymentStatusCompleted
		payment.WalletTransactionID = &trans.ID
		payment.PaidAt = &now

		expiresAt, err := activateSubscription(ctx, r, cmd.UserID, cmd.Plan, now, s.settings.SubscriptionPeriod)
		if err != nil {
			return err
		}

		msg, err := newOutboxMessage(s.settings.PaymentTopic, paymentKey(payment), model.EventPaymentCompleted, now,
			paymentEvent(payment, &expiresAt))
		if err != nil {
			return err
		}
		if err := r.Outbox.Create(ctx, msg); err != nil {
			return fmt.Errorf("write outbox: %w", err)
		}

		result = ChargeResult{
			Payment:     payment,
			Transaction: trans,
			NewBalance:  trans.BalanceAfter,
			ExpiresAt:   expiresAt,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			metrics.RecordPayment(model.PaymentMethodWallet, "insufficient_funds")
		} else {
			metrics.RecordPayment(model.PaymentMethodWallet, "error")
		}
		return nil, err
	}

	metrics.RecordPayment(model.PaymentMethodWallet, string(model.PaymentStatusCompleted))
	s.logger.Info("wallet payment completed",
		zap.Int64("user_id", cmd.UserID),
		zap.Int64("payment_id", result.Payment.ID),
		zap.String("plan", string(cmd.Plan)),
		zap.Int64("amount", cmd.Amount),
		zap.Int64("balance_after", result.NewBalance))
	return &result, nil
}

// InitiateExternalPayment creates a pending payment and a gateway order. When
// the gateway fails the payment stays pending.
func (s *PaymentService) InitiateExternalPayment(ctx context.Context, cmd ExternalPaymentCommand) (*ExternalPaymentResult, error) {
	if cmd.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !cmd.Plan.IsPaid() {
		return nil, ErrInvalidPlanOrMethod
	}

	payments := s.uow.Repos().Payments
	payment := &model.Payment{
		UserID:        cmd.UserID,
		Plan:          cmd.Plan,
		Amount:        cmd.Amount,
		Currency:      s.settings.currency(),
		PaymentMethod: model.PaymentMethodKaspi,
		Status:        model.PaymentStatusPending,
		RequestID:     optionalString(cmd.RequestID),
	}
	if err := payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	return s.openGatewayOrder(ctx, payment, cmd.ReturnURL, cmd.CancelURL)
}

// openGatewayOrder creates the Kaspi order for a pending payment and moves the
// payment to processing. It is also used to retry a payment whose earlier
// order creation failed.
func (s *PaymentService) openGatewayOrder(ctx context.Context, payment *model.Payment, returnURL, cancelURL string) (*ExternalPaymentResult, error) {
	order, err := s.gateway.CreateOrder(ctx, kaspi.OrderRequest{
		OrderID:   idgen.GenerateOrderID(payment.UserID),
		Amount:    payment.Amount,
		ItemName:  fmt.Sprintf("Subscription %s", payment.Plan),
		ReturnURL: returnURL,
		CancelURL: cancelURL,
	})
	if err != nil {
		metrics.RecordPayment(model.PaymentMethodKaspi, "gateway_error")
		s.logger.Error("kaspi order creation failed, payment left pending",
			zap.Int64("user_id", payment.UserID),
			zap.Int64("payment_id", payment.ID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	err = s.uow.Repos().Payments.UpdateStatus(ctx, payment.ID, model.PaymentStatusPending, model.PaymentStatusProcessing,
		repository.PaymentChanges{KaspiOrderID: &order.OrderID})
	if err != nil {
		return nil, fmt.Errorf("attach kaspi order: %w", err)
	}
	payment.Status = model.PaymentStatusProcessing
	payment.KaspiOrderID = &order.OrderID

	metrics.RecordPayment(model.PaymentMethodKaspi, string(model.PaymentStatusProcessing))
	s.logger.Info("kaspi payment initiated",
		zap.Int64("user_id", payment.UserID),
		zap.Int64("payment_id", payment.ID),
		zap.String("order_id", order.OrderID),
		zap.Int64("amount", payment.Amount))

	return &ExternalPaymentResult{
		Payment:    payment,
		PaymentURL: order.PaymentURL,
		OrderID:    order.OrderID,
	}, nil
}

// Subscribe buys plan at its list price with the chosen method.
func (s *PaymentService) Subscribe(ctx context.Context, cmd SubscribeCommand) (*SubscribeResult, error) {
	price, err := s.settings.price(cmd.Plan)
	if err != nil {
		return nil, err
	}
	if !model.IsValidPaymentMethod(cmd.PaymentMethod) {
		return nil, ErrInvalidPlanOrMethod
	}

	if replay, err := s.replay(ctx, cmd, true); replay != nil || err != nil {
		return replay, err
	}

	if s.locker != nil {
		owner := cmd.RequestID
		if owner == "" {
			owner = uuid.NewString()
		}
		release, err := s.locker.Acquire(ctx, cmd.UserID, owner)
		switch {
		case errors.Is(err, ErrBusy):
			return nil, err
		case err != nil:
			// row locks and the conditional debit still keep the wallet consistent
			s.logger.Warn("charge lock unavailable, continuing without it",
				zap.Int64("user_id", cmd.UserID), zap.Error(err))
		default:
			defer func() {
				if err := release(context.Background()); err != nil {
					s.logger.Warn("release charge lock failed", zap.Int64("user_id", cmd.UserID), zap.Error(err))
				}
			}()

			if replay, err := s.replay(ctx, cmd, true); replay != nil || err != nil {
				return replay, err
			}
		}
	}

	result, err := s.dispatch(ctx, cmd, price)
	if err != nil && cmd.RequestID != "" && !errors.Is(err, ErrInsufficientFunds) && !errors.Is(err, ErrGatewayUnavailable) {
		// a concurrent request with the same key may have won the unique index
		if replay, rerr := s.replay(ctx, cmd, false); rerr == nil && replay != nil {
			return replay, nil
		}
	}
	return result, err
}

func (s *PaymentService) dispatch(ctx context.Context, cmd SubscribeCommand, price int64) (*SubscribeResult, error) {
	if cmd.PaymentMethod == model.PaymentMethodWallet {
		charge, err := s.ChargeWallet(ctx, ChargeWalletCommand{
			UserID:    cmd.UserID,
			Plan:      cmd.Plan,
			Amount:    price,
			RequestID: cmd.RequestID,
		})
		if err != nil {
			return nil, err
		}
		return &SubscribeResult{Payment: charge.Payment, Wallet: charge}, nil
	}

	ext, err := s.InitiateExternalPayment(ctx, ExternalPaymentCommand{
		UserID:    cmd.UserID,
		Plan:      cmd.Plan,
		Amount:    price,
		ReturnURL: s.settings.ReturnURL,
		CancelURL: s.settings.CancelURL,
		RequestID: cmd.RequestID,
	})
	if err != nil {
		return nil, err
	}
	return &SubscribeResult{Payment: ext.Payment, External: ext}, nil
}

// replay returns the outcome of an earlier request with the same key. A Kaspi
// payment left pending by a gateway failure is retried when resume is set and
// otherwise treated as unseen.
func (s *PaymentService) replay(ctx context.Context, cmd SubscribeCommand, resume bool) (*SubscribeResult, error) {
	if cmd.RequestID == "" {
		return nil, nil
	}
	existing, err := s.uow.Repos().Payments.GetByRequestID(ctx, cmd.UserID, cmd.RequestID)
	if err != nil {
		return nil, fmt.Errorf("lookup request id: %w", err)
	}
	if existing == nil {
		return nil, nil
	}
	if existing.Status == model.PaymentStatusPending && existing.PaymentMethod == model.PaymentMethodKaspi && existing.KaspiOrderID == nil {
		if !resume {
			return nil, nil
		}
		s.logger.Info("retrying kaspi order for pending payment",
			zap.Int64("user_id", cmd.UserID),
			zap.String("request_id", cmd.RequestID),
			zap.Int64("payment_id", existing.ID))
		ext, err := s.openGatewayOrder(ctx, existing, s.settings.ReturnURL, s.settings.CancelURL)
		if err != nil {
			return nil, err
		}
		return &SubscribeResult{Payment: ext.Payment, External: ext}, nil
	}
	s.logger.Info("subscribe request replayed",
		zap.Int64("user_id", cmd.UserID),
		zap.String("request_id", cmd.RequestID),
		zap.Int64("payment_id", existing.ID))
	return &SubscribeResult{Payment: existing, Replayed: true}, nil
}

// CreateKaspiOrder starts a gateway payment; a zero Amount means the plan's
// list price. Amounts below the list price are rejected, since a completed
// payment activates the plan.
func (s *PaymentService) CreateKaspiOrder(ctx context.Context, cmd CreateOrderCommand) (*ExternalPaymentResult, error) {
	price, err := s.settings.price(cmd.Plan)
	if err != nil {
		return nil, err
	}
	amount := cmd.Amount
	switch {
	case amount == 0:
		amount = price
	case amount < price:
		return nil, ErrInvalidAmount
	}
	return s.InitiateExternalPayment(ctx, ExternalPaymentCommand{
		UserID:    cmd.UserID,
		Plan:      cmd.Plan,
		Amount:    amount,
		ReturnURL: s.settings.ReturnURL,
		CancelURL: s.settings.CancelURL,
	})
}

// ReconcileWebhook applies a gateway status to the payment behind orderID.
// Payments already completed or failed are returned unchanged, so repeated
// deliveries are harmless.
func (s *PaymentService) ReconcileWebhook(ctx context.Context, cmd ReconcileCommand) (*ReconcileResult, error) {
	outcome := kaspi.ParseStatus(cmd.Status)
	result := ReconcileResult{Outcome: outcome}

	err := s.uow.Do(ctx, func(r *repository.Repos) error {
		payment, err := r.Payments.GetByKaspiOrderIDForUpdate(ctx, cmd.OrderID)
		if err != nil {
			if errors.Is(err, repository.ErrPaymentNotFound) {
				return ErrPaymentNotFound
			}
			return fmt.Errorf("load payment: %w", err)
		}
		result.Payment = payment

		if payment.Status.IsTerminal() || outcome == kaspi.StatusUnknown {
			return nil
		}

		now := s.settings.now()
		if payment.Status == model.PaymentStatusPending {
			err := r.Payments.UpdateStatus(ctx, payment.ID, model.PaymentStatusPending, model.PaymentStatusProcessing,
				repository.PaymentChanges{})
			if err != nil {
				return fmt.Errorf("advance payment: %w", err)
			}
			payment.Status = model.PaymentStatusProcessing
		}

		changes := repository.PaymentChanges{KaspiPaymentID: optionalString(cmd.ExternalPaymentID)}
		var expiresAt *time.Time
		eventType := model.EventPaymentFailed
		target := model.PaymentStatusFailed
		if outcome == kaspi.StatusSuccess {
			eventType = model.EventPaymentCompleted
			target = model.PaymentStatusCompleted
			changes.PaidAt = &now
		}

		if err := r.Payments.UpdateStatus(ctx, payment.ID, payment.Status, target, changes); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		payment.Status = target
		if changes.KaspiPaymentID != nil {
			payment.KaspiPaymentID = changes.KaspiPaymentID
		}
		if changes.PaidAt != nil {
			payment.PaidAt = changes.PaidAt
		}

		if target == model.PaymentStatusCompleted {
			exp, err := activateSubscription(ctx, r, payment.UserID, payment.Plan, now, s.settings.SubscriptionPeriod)
			if err != nil {
				return err
			}
			expiresAt = &exp
		}

		msg, err := newOutboxMessage(s.settings.PaymentTopic, paymentKey(payment), eventType, now,
			paymentEvent(payment, expiresAt))
		if err != nil {
			return err
		}
		if err := r.Outbox.Create(ctx, msg); err != nil {
			return fmt.Errorf("write outbox: %w", err)
		}

		result.Changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Changed {
		metrics.RecordPayment(model.PaymentMethodKaspi, string(result.Payment.Status))
		s.logger.Info("kaspi payment reconciled",
			zap.String("order_id", cmd.OrderID),
			zap.Int64("payment_id", result.Payment.ID),
			zap.Int64("user_id", result.Payment.UserID),
			zap.String("status", string(result.Payment.Status)))
	} else if outcome == kaspi.StatusUnknown {
		s.logger.Warn("kaspi status not recognised, payment left unchanged",
			zap.String("order_id", cmd.OrderID),
			zap.String("status", cmd.Status))
	}
	return &result, nil
}

// SyncExternalStatus polls the gateway for a processing Kaspi payment and
// reconciles whatever it reports.
func (s *PaymentService) SyncExternalStatus(ctx context.Context, payment *model.Payment) (*ReconcileResult, error) {
	if payment.PaymentMethod != model.PaymentMethodKaspi || payment.KaspiOrderID == nil || payment.Status.IsTerminal() {
		return &ReconcileResult{Payment: payment, Outcome: kaspi.StatusUnknown}, nil
	}

	st, err := s.gateway.OrderStatus(ctx, *payment.KaspiOrderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return s.ReconcileWebhook(ctx, ReconcileCommand{
		OrderID:           *payment.KaspiOrderID,
		Status:            st.RawStatus,
		ExternalPaymentID: st.PaymentID,
	})
}

// ListPayments returns the user's payments, newest first.
func (s *PaymentService) ListPayments(ctx context.Context, userID int64, limit, offset int) ([]*model.Payment, int64, error) {
	if limit <= 0 {
		limit = defaultPaymentLimit
	}
	if limit > maxPaymentLimit {
		limit = maxPaymentLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.uow.Repos().Payments.ListByUserID(ctx, userID, limit, offset)
}

// GetPayment fails with ErrPaymentNotFound unless userID owns the payment.
func (s *PaymentService) GetPayment(ctx context.Context, paymentID, userID int64) (*model.Payment, error) {
	payment, err := s.uow.Repos().Payments.GetByIDAndUser(ctx, paymentID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

// ListStaleKaspiPayments returns processing gateway payments untouched since
// before with ids above afterID, in id order.
func (s *PaymentService) ListStaleKaspiPayments(ctx context.Context, before time.Time, afterID int64, limit int) ([]*model.Payment, error) {
	return s.uow.Repos().Payments.ListStale(ctx, model.PaymentMethodKaspi, model.PaymentStatusProcessing, before, afterID, limit)
}
