package service

import (
	"strings"
	"time"

	"crmbilling/internal/config"
	"crmbilling/internal/model"
)

// Settings carries the billing parameters every service needs.
type Settings struct {
	Prices             model.PriceList
	CurrencyLabel      string
	SubscriptionPeriod time.Duration
	ReminderWindow     time.Duration
	PaymentTopic       string
	SubscriptionTopic  string
	ReturnURL          string
	CancelURL          string
	BatchSize          int
	Now                func() time.Time
}

func SettingsFromConfig(cfg *config.Config) Settings {
	frontend := strings.TrimRight(cfg.Server.FrontendURL, "/")
	return Settings{
		Prices:             model.PriceList(cfg.Billing.Prices),
		CurrencyLabel:      cfg.Billing.CurrencyLabel,
		SubscriptionPeriod: time.Duration(cfg.Billing.SubscriptionDays) * 24 * time.Hour,
		ReminderWindow:     time.Duration(cfg.Billing.ReminderDays) * 24 * time.Hour,
		PaymentTopic:       cfg.Kafka.Topic.PaymentEvents,
		SubscriptionTopic:  cfg.Kafka.Topic.SubscriptionEvents,
		ReturnURL:          frontend + "/subscription?status=success",
		CancelURL:          frontend + "/subscription?status=cancelled",
		BatchSize:          cfg.Jobs.BatchSize,
		Now:                time.Now,
	}
}

func (s Settings) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s Settings) currency() string {
	if s.CurrencyLabel == "" {
		return model.DefaultCurrencyLabel
	}
	return s.CurrencyLabel
}

func (s Settings) batchSize() int {
	if s.BatchSize <= 0 {
		return 100
	}
	return s.BatchSize
}

func (s Settings) price(plan model.Plan) (int64, error) {
	price, ok := s.Prices.Price(plan)
	if !ok {
		return 0, ErrInvalidPlanOrMethod
	}
	return price, nil
}
