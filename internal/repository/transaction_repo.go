package repository

import (
	"context"

	"crmbilling/internal/model"

	"gorm.io/gorm"
)

type TransactionRepository interface {
	Create(ctx context.Context, trans *model.WalletTransaction) error
	GetByTransactionNo(ctx context.Context, transactionNo string) (*model.WalletTransaction, error)
	ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*model.WalletTransaction, int64, error)
}

type TransactionRepo struct {
	db *gorm.DB
}

func NewTransactionRepo(db *gorm.DB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

func (r *TransactionRepo) Create(ctx context.Context, trans *model.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(trans).Error
}

// GetByTransactionNo returns nil, nil when no row matches.
func (r *TransactionRepo) GetByTransactionNo(ctx context.Context, transactionNo string) (*model.WalletTransaction, error) {
	var trans model.WalletTransaction
	err := r.db.WithContext(ctx).Where("transaction_no = ?", transactionNo).First(&trans).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

func (r *TransactionRepo) ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*model.WalletTransaction, int64, error) {
	var transactions []*model.WalletTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.WalletTransaction{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&transactions).Error

	return transactions, total, err
}
