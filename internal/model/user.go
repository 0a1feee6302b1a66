package model

import (
	"time"
)

// Actor tiers. The user's role doubles as the fee/limit tier: the platform
// tier is reserved for admin operators and the platform card itself.
const (
	TierStandard = "standard"
	TierPremium  = "premium"
	TierPlatform = "platform"
)

// ValidTier reports whether s is one of the three known tiers.
func ValidTier(s string) bool {
	return s == TierStandard || s == TierPremium || s == TierPlatform
}

type User struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	FullName    string    `gorm:"type:varchar(100);not null" json:"full_name"`
	PhoneNumber string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"phone_number"`
	Role        string    `gorm:"type:varchar(10);not null;default:standard" json:"role"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (User) TableName() string {
	return "user"
}
