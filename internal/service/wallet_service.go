package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"crmbilling/internal/metrics"
	"crmbilling/internal/model"
	"crmbilling/internal/repository"
	"crmbilling/pkg/idgen"

	"go.uber.org/zap"
)

const (
	defaultTransactionLimit = 20
	maxTransactionLimit     = 100
)

type WalletAmountCommand struct {
	UserID int64
	Amount int64
}

type WalletOperationResult struct {
	Wallet      *model.Wallet
	Transaction *model.WalletTransaction
}

type WalletService struct {
	uow      repository.UnitOfWork
	settings Settings
	logger   *zap.Logger
}

func NewWalletService(uow repository.UnitOfWork, settings Settings, logger *zap.Logger) *WalletService {
	return &WalletService{uow: uow, settings: settings, logger: logger}
}

func (s *WalletService) Get(ctx context.Context, userID int64) (*model.Wallet, error) {
	wallet, err := s.uow.Repos().Wallets.GetOrCreate(ctx, userID, s.settings.currency())
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return wallet, nil
}

func (s *WalletService) TopUp(ctx context.Context, cmd WalletAmountCommand) (*WalletOperationResult, error) {
	if cmd.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var result WalletOperationResult
	err := s.uow.Do(ctx, func(r *repository.Repos) error {
		if _, err := r.Wallets.GetOrCreate(ctx, cmd.UserID, s.settings.currency()); err != nil {
			return fmt.Errorf("get wallet: %w", err)
		}
		wallet, err := r.Wallets.GetByUserIDForUpdate(ctx, cmd.UserID)
		if err != nil {
			return fmt.Errorf("lock wallet: %w", err)
		}
		if err := r.Wallets.Credit(ctx, wallet.ID, cmd.Amount); err != nil {
			return fmt.Errorf("credit wallet: %w", err)
		}

		trans := &model.WalletTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			WalletID:      wallet.ID,
			UserID:        cmd.UserID,
			Type:          model.TransactionTypeTopUp,
			Amount:        cmd.Amount,
			BalanceBefore: wallet.Balance,
			BalanceAfter:  wallet.Balance + cmd.Amount,
			Description:   fmt.Sprintf("Top up %d %s", cmd.Amount, wallet.Currency),
		}
		if err := r.Transactions.Create(ctx, trans); err != nil {
			return fmt.Errorf("record transaction: %w", err)
		}

		wallet.Balance = trans.BalanceAfter
		result = WalletOperationResult{Wallet: wallet, Transaction: trans}
		return nil
	})
	if err != nil {
		metrics.RecordWalletOperation(model.TransactionTypeTopUp, "error")
		return nil, err
	}

	metrics.RecordWalletOperation(model.TransactionTypeTopUp, "ok")
	s.logger.Info("wallet topped up",
		zap.Int64("user_id", cmd.UserID),
		zap.Int64("amount", cmd.Amount),
		zap.Int64("balance_after", result.Wallet.Balance))
	return &result, nil
}

func (s *WalletService) Withdraw(ctx context.Context, cmd WalletAmountCommand) (*WalletOperationResult, error) {
	if cmd.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var result WalletOperationResult
	err := s.uow.Do(ctx, func(r *repository.Repos) error {
		wallet, err := r.Wallets.GetByUserIDForUpdate(ctx, cmd.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrWalletNotFound) {
				return ErrWalletNotFound
			}
			return fmt.Errorf("lock wallet: %w", err)
		}
		if wallet.Balance < cmd.Amount {
			return ErrInsufficientFunds
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
			Type:          model.TransactionTypeWithdrawal,
			Amount:        cmd.Amount,
			BalanceBefore: wallet.Balance,
			BalanceAfter:  wallet.Balance - cmd.Amount,
			Description:   fmt.Sprintf("Withdrawal %d %s", cmd.Amount, wallet.Currency),
		}
		if err := r.Transactions.Create(ctx, trans); err != nil {
			return fmt.Errorf("record transaction: %w", err)
		}

		wallet.Balance = trans.BalanceAfter
		result = WalletOperationResult{Wallet: wallet, Transaction: trans}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			metrics.RecordWalletOperation(model.TransactionTypeWithdrawal, "insufficient_funds")
		} else {
			metrics.RecordWalletOperation(model.TransactionTypeWithdrawal, "error")
		}
		return nil, err
	}

	metrics.RecordWalletOperation(model.TransactionTypeWithdrawal, "ok")
	s.logger.Info("wallet withdrawal",
		zap.Int64("user_id", cmd.UserID),
		zap.Int64("amount", cmd.Amount),
		zap.Int64("balance_after", result.Wallet.Balance))
	return &result, nil
}

// UpdateCurrency changes the display label only; balances are not converted.
func (s *WalletService) UpdateCurrency(ctx context.Context, userID int64, label string) (*model.Wallet, error) {
	label = strings.TrimSpace(label)
	if n := utf8.RuneCountInString(label); n == 0 || n > 10 {
		return nil, ErrInvalidCurrency
	}

	repos := s.uow.Repos()
	wallet, err := repos.Wallets.GetOrCreate(ctx, userID, label)
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	if wallet.Currency == label {
		return wallet, nil
	}
	if err := repos.Wallets.UpdateCurrency(ctx, wallet.ID, label); err != nil {
		return nil, fmt.Errorf("update currency: %w", err)
	}
	wallet.Currency = label
	return wallet, nil
}

func (s *WalletService) ListTransactions(ctx context.Context, userID int64, limit, offset int) ([]*model.WalletTransaction, int64, error) {
	if limit <= 0 {
		limit = defaultTransactionLimit
	}
	if limit > maxTransactionLimit {
		limit = maxTransactionLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.uow.Repos().Transactions.ListByUserID(ctx, userID, limit, offset)
}
