package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CardStatusActive  = "active"
	CardStatusFrozen  = "frozen"
	CardStatusExpired = "expired"
	CardStatusClosed  = "closed"
)

// ValidCardTransitions is the card status state machine. CLOSED is terminal:
// it has no entry here, so every transition out of it is rejected.
var ValidCardTransitions = map[string][]string{
	CardStatusActive:  {CardStatusFrozen, CardStatusExpired, CardStatusClosed},
	CardStatusFrozen:  {CardStatusActive, CardStatusExpired, CardStatusClosed},
	CardStatusExpired: {CardStatusActive, CardStatusClosed},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidCardTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// Card is a balance-holding account owned by a user. Cards are never
// deleted, only closed. Balance must never go below zero; the transfer
// engine checks the debit against the locked row before mutating it.
type Card struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64           `gorm:"index;not null" json:"user_id"`
	Number    string          `gorm:"type:varchar(16);uniqueIndex;not null" json:"number"`
	Balance   decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"balance"`
	Status    string          `gorm:"type:varchar(10);not null;default:frozen" json:"status"`
	ExpiresAt time.Time       `gorm:"type:date;not null" json:"expires_at"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (Card) TableName() string {
	return "card"
}

// Overdue reports whether the card should be swept into EXPIRED: its expiry
// date has passed and it is not already in a state the sweep must not touch.
func (c *Card) Overdue(now time.Time) bool {
	if c.Status == CardStatusClosed || c.Status == CardStatusExpired {
		return false
	}
	return now.After(c.ExpiresAt)
}
