package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Subscription is a recurring premium charge funded by one of the user's
// cards. At most one active subscription per card (checked, not enforced by
// a unique constraint). A renewal shortfall deactivates the subscription and
// drops the owner back to the standard tier.
type Subscription struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        int64           `gorm:"index;not null" json:"user_id"`
	CardID        int64           `gorm:"index;not null" json:"card_id"`
	Price         decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	NextPaymentAt time.Time       `gorm:"type:date;not null;index" json:"next_payment_at"`
	IsActive      bool            `gorm:"index;not null;default:true" json:"is_active"`
}

func (Subscription) TableName() string {
	return "subscription"
}
