package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/haniyfdev/Chontak-wallet/internal/model"
)

// Store contracts consumed by the services. The gorm-backed implementations
// live in internal/repository; tests substitute in-memory fakes. The
// tx parameter mirrors the repository convention: nil means "outside any
// transaction", non-nil scopes the write to the enclosing atomic operation.

type TxRunner interface {
	Transaction(fn func(tx *gorm.DB) error, opts ...*sql.TxOptions) error
}

type CardStore interface {
	Create(ctx context.Context, tx *gorm.DB, card *model.Card) error
	GetByID(ctx context.Context, id int64) (*model.Card, error)
	GetByIDForUser(ctx context.Context, id, userID int64) (*model.Card, error)
	GetByNumber(ctx context.Context, number string) (*model.Card, error)
	ListByUser(ctx context.Context, userID int64) ([]*model.Card, error)
	ListAll(ctx context.Context) ([]*model.Card, error)
	CountByUser(ctx context.Context, userID int64) (int64, error)
	LockCards(ctx context.Context, tx *gorm.DB, ids ...int64) (map[int64]*model.Card, error)
	AdjustBalance(ctx context.Context, tx *gorm.DB, id int64, delta decimal.Decimal) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, fromStatus, toStatus string) error
	Renew(ctx context.Context, tx *gorm.DB, id int64, expiresAt time.Time) error
}

type TransactionStore interface {
	Create(ctx context.Context, tx *gorm.DB, trans *model.Transaction) error
	GetByIDForCards(ctx context.Context, id string, cardIDs []int64) (*model.Transaction, error)
	ListByCards(ctx context.Context, cardIDs []int64, page, pageSize int) ([]*model.Transaction, int64, error)
	SumIncoming(ctx context.Context, cardID int64) (decimal.Decimal, error)
	SumOutgoing(ctx context.Context, cardID int64) (decimal.Decimal, error)
}

type SubscriptionStore interface {
	Create(ctx context.Context, tx *gorm.DB, sub *model.Subscription) error
	GetActiveByCardID(ctx context.Context, cardID int64) (*model.Subscription, error)
	GetActive(ctx context.Context, userID, cardID int64) (*model.Subscription, error)
	ListDue(ctx context.Context, dueBy time.Time, limit int) ([]*model.Subscription, error)
	Advance(ctx context.Context, tx *gorm.DB, id int64, nextPaymentAt time.Time) error
	Deactivate(ctx context.Context, tx *gorm.DB, id int64) error
}

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	UpdateRole(ctx context.Context, tx *gorm.DB, id int64, role string) error
}

type OutboxStore interface {
	Create(ctx context.Context, tx *gorm.DB, msg *model.OutboxMessage) error
}

// OutboxAdminStore is the dead-letter side of the outbox: messages that
// exhausted their delivery retries, and the way back onto the queue.
type OutboxAdminStore interface {
	GetFailedMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error)
	Requeue(ctx context.Context, id int64) error
}

// RequestGuard gates entry into the transfer engine.
type RequestGuard interface {
	Reserve(ctx context.Context, key, owner string) error
	Release(ctx context.Context, key, owner string) error
	Allow(ctx context.Context, actorID int64) error
}
