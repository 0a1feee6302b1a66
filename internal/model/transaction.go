package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionTypeTransfer = "TRANSFER"
	TransactionTypeDeposit  = "DEPOSIT"
)

const (
	TransactionStatusPending = "PENDING"
	TransactionStatusSuccess = "SUCCESS"
	TransactionStatusFailed  = "FAILED"
)

// Transaction is one row of the money-movement log.
//
// The log is append-only: rows are written already terminal inside the same
// database transaction that moved the balances, amount and commission are
// never mutated afterwards, and a failed attempt leaves no row at all.
// Reconciliation relies on this: for every card,
// balance == sum(SUCCESS incoming amount) - sum(SUCCESS outgoing amount+commission).
type Transaction struct {
	ID          string          `gorm:"type:varchar(26);primaryKey" json:"id"` // PBC-<22 hex>, generated before persistence
	FromCardID  *int64          `gorm:"index" json:"from_card_id"`             // nil = platform-originated deposit
	ToCardID    int64           `gorm:"index;not null" json:"to_card_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Commission  decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"commission"`
	Type        string          `gorm:"type:varchar(10);not null" json:"type"`
	Status      string          `gorm:"type:varchar(10);not null" json:"status"`
	Description string          `gorm:"type:varchar(256)" json:"description"`
	CreatedAt   time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at"`
}

func (Transaction) TableName() string {
	return "transaction"
}
