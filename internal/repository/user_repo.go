package repository

import (
	"context"
	"errors"
	"time"

	"crmbilling/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetOrCreateByEmail(ctx context.Context, email string) (*model.User, error)
	ActivateSubscription(ctx context.Context, userID int64, plan model.Plan, expiresAt time.Time) error
	SetAutoRenew(ctx context.Context, userID int64, enabled bool) error
	DowngradeExpired(ctx context.Context, userID int64, now time.Time) (bool, error)
	ListRenewalCandidates(ctx context.Context, deadline time.Time, afterID int64, limit int) ([]*model.User, error)
	ListExpiredWithoutRenewal(ctx context.Context, now time.Time, afterID int64, limit int) ([]*model.User, error)
}

type UserRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetOrCreateByEmail tolerates two first requests racing on the unique email.
func (r *UserRepo) GetOrCreateByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := r.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	newUser := &model.User{
		Email: email,
		Plan:  model.PlanFree,
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoNothing: true,
		}).
		Create(newUser).Error
	if err != nil {
		return nil, err
	}

	return r.GetByEmail(ctx, email)
}

func (r *UserRepo) ActivateSubscription(ctx context.Context, userID int64, plan model.Plan, expiresAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"plan":                    plan,
			"subscription_expires_at": expiresAt,
			"subscription_auto_renew": true,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepo) SetAutoRenew(ctx context.Context, userID int64, enabled bool) error {
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Update("subscription_auto_renew", enabled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DowngradeExpired moves the user to Free only if the subscription is still
// expired at now; false means a concurrent renewal won.
func (r *UserRepo) DowngradeExpired(ctx context.Context, userID int64, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND plan <> ? AND subscription_expires_at IS NOT NULL AND subscription_expires_at <= ?",
			userID, model.PlanFree, now).
		Updates(map[string]interface{}{
			"plan":                    model.PlanFree,
			"subscription_expires_at": gorm.Expr("NULL"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListRenewalCandidates returns paid auto-renewing users expiring at or before
// deadline, keyset-paged by id.
func (r *UserRepo) ListRenewalCandidates(ctx context.Context, deadline time.Time, afterID int64, limit int) ([]*model.User, error) {
	var users []*model.User
	err := r.db.WithContext(ctx).
		Where("id > ? AND plan IN ? AND subscription_auto_renew = ? AND subscription_expires_at IS NOT NULL AND subscription_expires_at <= ?",
			afterID, model.PaidPlans, true, deadline).
		Order("id ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}

func (r *UserRepo) ListExpiredWithoutRenewal(ctx context.Context, now time.Time, afterID int64, limit int) ([]*model.User, error) {
	var users []*model.User
	err := r.db.WithContext(ctx).
		Where("id > ? AND plan IN ? AND subscription_auto_renew = ? AND subscription_expires_at IS NOT NULL AND subscription_expires_at <= ?",
			afterID, model.PaidPlans, false, now).
		Order("id ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}
