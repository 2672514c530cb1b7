package service

import "errors"

var (
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInvalidPlanOrMethod = errors.New("invalid plan or payment method")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidCurrency     = errors.New("currency label must be 1-10 characters")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrBusy                = errors.New("another payment for this user is in progress")
)
