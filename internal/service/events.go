package service

import (
	"encoding/json"
	"fmt"
	"time"

	"crmbilling/internal/model"

	"github.com/google/uuid"
)

// Event is the envelope published through the outbox.
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

type PaymentEventData struct {
	PaymentID    int64               `json:"payment_id"`
	UserID       int64               `json:"user_id"`
	Plan         model.Plan          `json:"plan"`
	Amount       int64               `json:"amount"`
	Currency     string              `json:"currency"`
	Method       string              `json:"payment_method"`
	Status       model.PaymentStatus `json:"status"`
	KaspiOrderID *string             `json:"kaspi_order_id,omitempty"`
	PaidAt       *time.Time          `json:"paid_at,omitempty"`
	ExpiresAt    *time.Time          `json:"subscription_expires_at,omitempty"`
}

type SubscriptionEventData struct {
	UserID    int64      `json:"user_id"`
	Email     string     `json:"email"`
	Plan      model.Plan `json:"plan"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Price     int64      `json:"price,omitempty"`
	Balance   int64      `json:"balance"`
}

func newOutboxMessage(topic, key, eventType string, at time.Time, data interface{}) (*model.OutboxMessage, error) {
	payload, err := json.Marshal(Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: at.UTC(),
		Data:       data,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return &model.OutboxMessage{
		EventType:  eventType,
		MessageKey: key,
		Topic:      topic,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}, nil
}

func paymentEvent(p *model.Payment, expiresAt *time.Time) PaymentEventData {
	return PaymentEventData{
		PaymentID:    p.ID,
		UserID:       p.UserID,
		Plan:         p.Plan,
		Amount:       p.Amount,
		Currency:     p.Currency,
		Method:       p.PaymentMethod,
		Status:       p.Status,
		KaspiOrderID: p.KaspiOrderID,
		PaidAt:       p.PaidAt,
		ExpiresAt:    expiresAt,
	}
}

func paymentKey(p *model.Payment) string {
	return fmt.Sprintf("user:%d", p.UserID)
}

func userKey(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}
