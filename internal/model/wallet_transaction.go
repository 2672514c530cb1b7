package model

import (
	"time"
)

const (
	TransactionTypeTopUp        = "topup"
	TransactionTypeWithdrawal   = "withdrawal"
	TransactionTypeSubscription = "subscription"
)

// WalletTransaction is one ledger line. Rows are only ever inserted.
// Amount is the magnitude of the change; the direction follows from Type and
// from BalanceBefore/BalanceAfter.
type WalletTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	WalletID      int64     `gorm:"index;not null" json:"wallet_id"`
	UserID        int64     `gorm:"index;not null" json:"user_id"`
	PaymentID     *int64    `gorm:"index" json:"payment_id,omitempty"`
	Type          string    `gorm:"type:varchar(20);not null" json:"type"`
	Amount        int64     `gorm:"not null" json:"amount"`
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`
	Description   string    `gorm:"type:varchar(256)" json:"description"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}
