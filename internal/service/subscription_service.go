package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"crmbilling/internal/metrics"
	"crmbilling/internal/model"
	"crmbilling/internal/repository"

	"go.uber.org/zap"
)

// WalletCharger is the wallet purchase path reused by renewals.
type WalletCharger interface {
	ChargeWallet(ctx context.Context, cmd ChargeWalletCommand) (*ChargeResult, error)
}

type SweepResult struct {
	Processed   int `json:"processed"`
	Renewed     int `json:"renewed"`
	Deactivated int `json:"deactivated"`
	Reminded    int `json:"reminded"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
}

type ExpiryResult struct {
	Deactivated int `json:"deactivated"`
	Failed      int `json:"failed"`
}

type SubscriptionInfo struct {
	Plan          model.Plan `json:"plan"`
	IsActive      bool       `json:"isActive"`
	ExpiresAt     *time.Time `json:"expiresAt"`
	DaysRemaining *int       `json:"daysRemaining"`
	AutoRenew     bool       `json:"autoRenew"`
}

type sweepOutcome int

const (
	outcomeRenewed sweepOutcome = iota
	outcomeDeactivated
	outcomeReminded
	outcomeSkipped
)

type SubscriptionService struct {
	uow      repository.UnitOfWork
	charger  WalletCharger
	settings Settings
	logger   *zap.Logger
}

func NewSubscriptionService(uow repository.UnitOfWork, charger WalletCharger, settings Settings, logger *zap.Logger) *SubscriptionService {
	return &SubscriptionService{
		uow:      uow,
		charger:  charger,
		settings: settings,
		logger:   logger,
	}
}

// activateSubscription sets plan, a fresh window from now and auto-renew on,
// using the caller's transaction. Repeating it restarts the window.
func activateSubscription(ctx context.Context, r *repository.Repos, userID int64, plan model.Plan, now time.Time, period time.Duration) (time.Time, error) {
	if !plan.IsPaid() {
		return time.Time{}, ErrInvalidPlanOrMethod
	}
	expiresAt := now.Add(period)
	if err := r.Users.ActivateSubscription(ctx, userID, plan, expiresAt); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return time.Time{}, ErrUserNotFound
		}
		return time.Time{}, fmt.Errorf("activate subscription: %w", err)
	}
	return expiresAt, nil
}

func (s *SubscriptionService) Activate(ctx context.Context, userID int64, plan model.Plan) (time.Time, error) {
	var expiresAt time.Time
	err := s.uow.Do(ctx, func(r *repository.Repos) error {
		var err error
		expiresAt, err = activateSubscription(ctx, r, userID, plan, s.settings.now(), s.settings.SubscriptionPeriod)
		return err
	})
	return expiresAt, err
}

// Sweep renews, reminds or deactivates every auto-renewing paid user whose
// subscription ends within the reminder window. A failure for one user is
// counted and the sweep moves on.
func (s *SubscriptionService) Sweep(ctx context.Context) (*SweepResult, error) {
	now := s.settings.now()
	deadline := now.Add(s.settings.ReminderWindow)
	batch := s.settings.batchSize()
	users := s.uow.Repos().Users

	result := &SweepResult{}
	var afterID int64
	for {
		candidates, err := users.ListRenewalCandidates(ctx, deadline, afterID, batch)
		if err != nil {
			return result, fmt.Errorf("list renewal candidates: %w", err)
		}

		for _, u := range candidates {
			afterID = u.ID
			if err := ctx.Err(); err != nil {
				return result, err
			}
			result.Processed++

			outcome, err := s.sweepUser(ctx, u, now)
			if err != nil {
				result.Failed++
				s.logger.Error("subscription sweep failed for user",
					zap.Int64("user_id", u.ID),
					zap.String("plan", string(u.Plan)),
					zap.Error(err))
				continue
			}
			switch outcome {
			case outcomeRenewed:
				result.Renewed++
			case outcomeDeactivated:
				result.Deactivated++
			case outcomeReminded:
				result.Reminded++
			case outcomeSkipped:
				result.Skipped++
			}
		}

		if len(candidates) < batch {
			break
		}
	}

	metrics.RecordSweep("renewed", result.Renewed)
	metrics.RecordSweep("deactivated", result.Deactivated)
	metrics.RecordSweep("reminded", result.Reminded)
	metrics.RecordSweep("skipped", result.Skipped)
	metrics.RecordSweep("failed", result.Failed)
	s.logger.Info("subscription sweep finished",
		zap.Int("processed", result.Processed),
		zap.Int("renewed", result.Renewed),
		zap.Int("deactivated", result.Deactivated),
		zap.Int("reminded", result.Reminded),
		zap.Int("failed", result.Failed))
	return result, nil
}

func (s *SubscriptionService) sweepUser(ctx context.Context, u *model.User, now time.Time) (sweepOutcome, error) {
	price, err := s.settings.price(u.Plan)
	if err != nil {
		return 0, fmt.Errorf("price for plan %s: %w", u.Plan, err)
	}

	wallet, err := s.uow.Repos().Wallets.GetOrCreate(ctx, u.ID, s.settings.currency())
	if err != nil {
		return 0, fmt.Errorf("get wallet: %w", err)
	}

	if wallet.Balance >= price {
		_, err := s.charger.ChargeWallet(ctx, ChargeWalletCommand{
			UserID: u.ID,
			Plan:   u.Plan,
			Amount: price,
		})
		if err == nil {
			return outcomeRenewed, nil
		}
		if !errors.Is(err, ErrInsufficientFunds) {
			return 0, fmt.Errorf("renew: %w", err)
		}
		// balance dropped between the read and the charge
		if fresh, err := s.uow.Repos().Wallets.GetByUserID(ctx, u.ID); err == nil {
			wallet = fresh
		}
	}

	expired := u.SubscriptionExpiresAt != nil && !u.SubscriptionExpiresAt.After(now)
	if expired {
		downgraded, err := s.deactivate(ctx, u, wallet.Balance, now)
		if err != nil {
			return 0, err
		}
		if !downgraded {
			return outcomeSkipped, nil
		}
		return outcomeDeactivated, nil
	}

	msg, err := newOutboxMessage(s.settings.SubscriptionTopic, userKey(u.ID), model.EventSubscriptionRenewalReminder, now,
		SubscriptionEventData{
			UserID:    u.ID,
			Email:     u.Email,
			Plan:      u.Plan,
			ExpiresAt: u.SubscriptionExpiresAt,
			Price:     price,
			Balance:   wallet.Balance,
		})
	if err != nil {
		return 0, err
	}
	if err := s.uow.Repos().Outbox.Create(ctx, msg); err != nil {
		return 0, fmt.Errorf("write reminder: %w", err)
	}
	s.logger.Info("renewal reminder queued",
		zap.Int64("user_id", u.ID),
		zap.Int64("balance", wallet.Balance),
		zap.Int64("price", price))
	return outcomeReminded, nil
}

// deactivate downgrades u to Free if it is still expired at now. False means a
// concurrent renewal got there first.
func (s *SubscriptionService) deactivate(ctx context.Context, u *model.User, balance int64, now time.Time) (bool, error) {
	var downgraded bool
	err := s.uow.Do(ctx, func(r *repository.Repos) error {
		ok, err := r.Users.DowngradeExpired(ctx, u.ID, now)
		if err != nil {
			return fmt.Errorf("downgrade: %w", err)
		}
		if !ok {
			return nil
		}
		downgraded = true

		msg, err := newOutboxMessage(s.settings.SubscriptionTopic, userKey(u.ID), model.EventSubscriptionDeactivated, now,
			SubscriptionEventData{
				UserID:    u.ID,
				Email:     u.Email,
				Plan:      u.Plan,
				ExpiresAt: u.SubscriptionExpiresAt,
				Balance:   balance,
			})
		if err != nil {
			return err
		}
		return r.Outbox.Create(ctx, msg)
	})
	if err != nil {
		return false, err
	}
	if downgraded {
		s.logger.Info("subscription deactivated",
			zap.Int64("user_id", u.ID),
			zap.String("plan", string(u.Plan)))
	}
	return downgraded, nil
}

// ExpiryCheck downgrades expired paid users that have auto-renew turned off.
func (s *SubscriptionService) ExpiryCheck(ctx context.Context) (*ExpiryResult, error) {
	now := s.settings.now()
	batch := s.settings.batchSize()
	users := s.uow.Repos().Users

	result := &ExpiryResult{}
	var afterID int64
	for {
		expired, err := users.ListExpiredWithoutRenewal(ctx, now, afterID, batch)
		if err != nil {
			return result, fmt.Errorf("list expired subscriptions: %w", err)
		}

		for _, u := range expired {
			afterID = u.ID
			if err := ctx.Err(); err != nil {
				return result, err
			}
			downgraded, err := s.deactivate(ctx, u, 0, now)
			if err != nil {
				result.Failed++
				s.logger.Error("expiry check failed for user", zap.Int64("user_id", u.ID), zap.Error(err))
				continue
			}
			if downgraded {
				result.Deactivated++
			}
		}

		if len(expired) < batch {
			break
		}
	}

	metrics.RecordSweep("expired", result.Deactivated)
	s.logger.Info("subscription expiry check finished",
		zap.Int("deactivated", result.Deactivated),
		zap.Int("failed", result.Failed))
	return result, nil
}

func (s *SubscriptionService) Info(ctx context.Context, userID int64) (*SubscriptionInfo, error) {
	user, err := s.uow.Repos().Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	now := s.settings.now()
	info := &SubscriptionInfo{
		Plan:      user.Plan,
		ExpiresAt: user.SubscriptionExpiresAt,
		AutoRenew: user.SubscriptionAutoRenew,
	}
	if user.SubscriptionExpiresAt != nil {
		info.IsActive = user.SubscriptionExpiresAt.After(now)
		days := int(math.Ceil(user.SubscriptionExpiresAt.Sub(now).Hours() / 24))
		info.DaysRemaining = &days
	}
	return info, nil
}

func (s *SubscriptionService) SetAutoRenew(ctx context.Context, userID int64, enabled bool) error {
	if err := s.uow.Repos().Users.SetAutoRenew(ctx, userID, enabled); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	s.logger.Info("subscription auto-renew changed",
		zap.Int64("user_id", userID),
		zap.Bool("enabled", enabled))
	return nil
}
