package repository

import (
	"context"
	"errors"
	"time"

	"crmbilling/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentChanges are the optional columns written alongside a status change.
type PaymentChanges struct {
	KaspiOrderID        *string
	KaspiPaymentID      *string
	WalletTransactionID *int64
	PaidAt              *time.Time
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	GetByID(ctx context.Context, id int64) (*model.Payment, error)
	GetByIDAndUser(ctx context.Context, id, userID int64) (*model.Payment, error)
	GetByKaspiOrderID(ctx context.Context, orderID string) (*model.Payment, error)
	GetByKaspiOrderIDForUpdate(ctx context.Context, orderID string) (*model.Payment, error)
	GetByRequestID(ctx context.Context, userID int64, requestID string) (*model.Payment, error)
	UpdateStatus(ctx context.Context, id int64, from, to model.PaymentStatus, changes PaymentChanges) error
	ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*model.Payment, int64, error)
	ListStale(ctx context.Context, method string, status model.PaymentStatus, before time.Time, afterID int64, limit int) ([]*model.Payment, error)
}

type PaymentRepo struct {
	db *gorm.DB
}

func NewPaymentRepo(db *gorm.DB) *PaymentRepo {
	return &PaymentRepo{db: db}
}

func (r *PaymentRepo) Create(ctx context.Context, payment *model.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *PaymentRepo) GetByID(ctx context.Context, id int64) (*model.Payment, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

// GetByIDAndUser filters on both columns so another user's id reads as not found.
func (r *PaymentRepo) GetByIDAndUser(ctx context.Context, id, userID int64) (*model.Payment, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID))
}

func (r *PaymentRepo) GetByKaspiOrderID(ctx context.Context, orderID string) (*model.Payment, error) {
	return r.first(r.db.WithContext(ctx).Where("kaspi_order_id = ?", orderID))
}

func (r *PaymentRepo) GetByKaspiOrderIDForUpdate(ctx context.Context, orderID string) (*model.Payment, error) {
	return r.first(r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("kaspi_order_id = ?", orderID))
}

// GetByRequestID returns nil, nil when the key has not been seen.
func (r *PaymentRepo) GetByRequestID(ctx context.Context, userID int64, requestID string) (*model.Payment, error) {
	payment, err := r.first(r.db.WithContext(ctx).Where("user_id = ? AND request_id = ?", userID, requestID))
	if errors.Is(err, ErrPaymentNotFound) {
		return nil, nil
	}
	return payment, err
}

func (r *PaymentRepo) first(query *gorm.DB) (*model.Payment, error) {
	var payment model.Payment
	err := query.First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// UpdateStatus applies from -> to only if the row is still in from.
func (r *PaymentRepo) UpdateStatus(ctx context.Context, id int64, from, to model.PaymentStatus, changes PaymentChanges) error {
	if !model.CanTransitionTo(from, to) {
		return ErrStatusTransition
	}

	updates := map[string]interface{}{
		"status": to,
	}
	if changes.KaspiOrderID != nil {
		updates["kaspi_order_id"] = *changes.KaspiOrderID
	}
	if changes.KaspiPaymentID != nil {
		updates["kaspi_payment_id"] = *changes.KaspiPaymentID
	}
	if changes.WalletTransactionID != nil {
		updates["wallet_transaction_id"] = *changes.WalletTransactionID
	}
	if changes.PaidAt != nil {
		updates["paid_at"] = *changes.PaidAt
	}

	result := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusTransition
	}
	return nil
}

func (r *PaymentRepo) ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*model.Payment, int64, error) {
	var payments []*model.Payment
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Payment{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&payments).Error

	return payments, total, err
}

// ListStale pages by id through payments in status untouched since before.
// Pass the last id of the previous page as afterID, 0 for the first page.
func (r *PaymentRepo) ListStale(ctx context.Context, method string, status model.PaymentStatus, before time.Time, afterID int64, limit int) ([]*model.Payment, error) {
	var payments []*model.Payment
	err := r.db.WithContext(ctx).
		Where("payment_method = ? AND status = ? AND updated_at < ? AND id > ?", method, status, before, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}
