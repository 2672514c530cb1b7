package model

import (
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
)

const (
	PaymentMethodWallet = "wallet"
	PaymentMethodKaspi  = "kaspi"
)

// ValidStatusTransitions: completed and failed are terminal.
var ValidStatusTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusFailed},
	PaymentStatusProcessing: {PaymentStatusCompleted, PaymentStatusFailed},
}

func CanTransitionTo(current, target PaymentStatus) bool {
	allowed, exists := ValidStatusTransitions[current]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

func IsValidPaymentMethod(m string) bool {
	return m == PaymentMethodWallet || m == PaymentMethodKaspi
}

type Payment struct {
	ID                  int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID              int64         `gorm:"index;uniqueIndex:idx_payments_user_request,priority:1;not null" json:"user_id"`
	Plan                Plan          `gorm:"type:varchar(20);not null" json:"plan"`
	Amount              int64         `gorm:"not null" json:"amount"`
	Currency            string        `gorm:"type:varchar(10);not null" json:"currency"`
	PaymentMethod       string        `gorm:"type:varchar(20);not null" json:"payment_method"`
	Status              PaymentStatus `gorm:"type:varchar(20);index;not null" json:"status"`
	RequestID           *string       `gorm:"type:varchar(64);uniqueIndex:idx_payments_user_request,priority:2" json:"request_id,omitempty"`
	KaspiOrderID        *string       `gorm:"type:varchar(128);uniqueIndex" json:"kaspi_order_id,omitempty"`
	KaspiPaymentID      *string       `gorm:"type:varchar(128)" json:"kaspi_payment_id,omitempty"`
	WalletTransactionID *int64        `json:"wallet_transaction_id,omitempty"`
	PaidAt              *time.Time    `json:"paid_at,omitempty"`
	CreatedAt           time.Time     `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt           time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}
