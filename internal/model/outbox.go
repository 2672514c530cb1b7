package model

import "time"

type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "PENDING"
	OutboxStatusSent    OutboxStatus = "SENT"
	OutboxStatusFailed  OutboxStatus = "FAILED"
)

// Billing events relayed to Kafka.
const (
	EventPaymentCompleted            = "payment.completed"
	EventPaymentFailed               = "payment.failed"
	EventSubscriptionRenewalReminder = "subscription.renewal_reminder"
	EventSubscriptionDeactivated     = "subscription.deactivated"
)

// OutboxMessage is a billing event stored in the transaction that caused it.
// The outbox sender publishes PENDING rows in id order; MessageKey selects the
// Kafka partition so events of one payment or user stay ordered.
type OutboxMessage struct {
	ID         int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	EventType  string       `gorm:"type:varchar(64);not null" json:"event_type"`
	Topic      string       `gorm:"type:varchar(128);not null" json:"topic"`
	MessageKey string       `gorm:"type:varchar(64);not null" json:"message_key"`
	Payload    string       `gorm:"type:text;not null" json:"payload"`
	Status     OutboxStatus `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int          `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "billing_outbox"
}
