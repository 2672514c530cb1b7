package repository

import "errors"

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrStatusTransition    = errors.New("payment status transition not allowed")
)
