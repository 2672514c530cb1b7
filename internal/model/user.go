package model

import (
	"strings"
	"time"
)

type Plan string

const (
	PlanFree     Plan = "Free"
	PlanPro      Plan = "Pro"
	PlanBusiness Plan = "Business"
)

// PaidPlans lists the plans that carry a subscription window.
var PaidPlans = []Plan{PlanPro, PlanBusiness}

// ParsePlan accepts a plan name in any letter case.
func ParsePlan(s string) (Plan, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "free":
		return PlanFree, true
	case "pro":
		return PlanPro, true
	case "business":
		return PlanBusiness, true
	}
	return "", false
}

func (p Plan) IsPaid() bool {
	return p == PlanPro || p == PlanBusiness
}

// PriceList maps a paid plan to its monthly price in whole currency units.
type PriceList map[string]int64

func (l PriceList) Price(p Plan) (int64, bool) {
	if !p.IsPaid() {
		return 0, false
	}
	price, ok := l[strings.ToLower(string(p))]
	return price, ok && price > 0
}

type User struct {
	ID                    int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email                 string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Name                  string     `gorm:"type:varchar(255)" json:"name"`
	Plan                  Plan       `gorm:"type:varchar(20);index;not null;default:Free" json:"plan"`
	SubscriptionExpiresAt *time.Time `gorm:"index" json:"subscription_expires_at"`
	SubscriptionAutoRenew bool       `gorm:"not null;default:false" json:"subscription_auto_renew"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
