package handler

import (
	"context"
	"time"

	"crmbilling/internal/model"
	"crmbilling/internal/service"

	"go.uber.org/zap"
)

// PaymentAPI is the payment surface the HTTP layer needs.
type PaymentAPI interface {
	Subscribe(ctx context.Context, cmd service.SubscribeCommand) (*service.SubscribeResult, error)
	CreateKaspiOrder(ctx context.Context, cmd service.CreateOrderCommand) (*service.ExternalPaymentResult, error)
	ReconcileWebhook(ctx context.Context, cmd service.ReconcileCommand) (*service.ReconcileResult, error)
	ListPayments(ctx context.Context, userID int64, limit, offset int) ([]*model.Payment, int64, error)
	GetPayment(ctx context.Context, paymentID, userID int64) (*model.Payment, error)
}

type WalletAPI interface {
	Get(ctx context.Context, userID int64) (*model.Wallet, error)
	TopUp(ctx context.Context, cmd service.WalletAmountCommand) (*service.WalletOperationResult, error)
	Withdraw(ctx context.Context, cmd service.WalletAmountCommand) (*service.WalletOperationResult, error)
	UpdateCurrency(ctx context.Context, userID int64, label string) (*model.Wallet, error)
	ListTransactions(ctx context.Context, userID int64, limit, offset int) ([]*model.WalletTransaction, int64, error)
}

type SubscriptionAPI interface {
	Info(ctx context.Context, userID int64) (*service.SubscriptionInfo, error)
	SetAutoRenew(ctx context.Context, userID int64, enabled bool) error
	Sweep(ctx context.Context) (*service.SweepResult, error)
	ExpiryCheck(ctx context.Context) (*service.ExpiryResult, error)
}

// WebhookVerifier authenticates gateway callbacks.
type WebhookVerifier interface {
	Verify(message []byte, signature string) error
}

type Handler struct {
	payments      PaymentAPI
	wallets       WalletAPI
	subscriptions SubscriptionAPI
	verifier      WebhookVerifier
	logger        *zap.Logger
	// exposeErrors adds internal error text to 500 responses (debug mode only).
	exposeErrors bool
}

func NewHandler(payments PaymentAPI, wallets WalletAPI, subscriptions SubscriptionAPI, verifier WebhookVerifier, logger *zap.Logger, exposeErrors bool) *Handler {
	return &Handler{
		payments:      payments,
		wallets:       wallets,
		subscriptions: subscriptions,
		verifier:      verifier,
		logger:        logger,
		exposeErrors:  exposeErrors,
	}
}

// WalletResponse is the wallet as the frontend reads it.
type WalletResponse struct {
	ID          int64                    `json:"id"`
	UserID      int64                    `json:"userId"`
	Balance     int64                    `json:"balance"`
	Currency    string                   `json:"currency"`
	Message     string                   `json:"message,omitempty"`
	Transaction *model.WalletTransaction `json:"transaction,omitempty"`
	CreatedAt   time.Time                `json:"createdAt"`
	UpdatedAt   time.Time                `json:"updatedAt"`
}

func walletResponse(w *model.Wallet) WalletResponse {
	return WalletResponse{
		ID:        w.ID,
		UserID:    w.UserID,
		Balance:   w.Balance,
		Currency:  w.Currency,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}
