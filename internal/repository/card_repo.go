package repository

import (
	"context"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/haniyfdev/Chontak-wallet/internal/model"
)

var (
	ErrCardNotFound      = errors.New("card not found")
	ErrInvalidCardStatus = errors.New("card status does not allow this action")
	ErrLockTimeout       = errors.New("timed out waiting for a card lock")
)

type CardRepository struct {
	db *gorm.DB
}

func NewCardRepository(db *gorm.DB) *CardRepository {
	return &CardRepository{db: db}
}

func (r *CardRepository) Create(ctx context.Context, tx *gorm.DB, card *model.Card) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(card).Error
}

func (r *CardRepository) GetByID(ctx context.Context, id int64) (*model.Card, error) {
	var card model.Card
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return &card, nil
}

// GetByIDForUser resolves a card only if it belongs to userID. Ownership
// mismatches are indistinguishable from absence on purpose.
func (r *CardRepository) GetByIDForUser(ctx context.Context, id, userID int64) (*model.Card, error) {
	var card model.Card
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return &card, nil
}

func (r *CardRepository) GetByNumber(ctx context.Context, number string) (*model.Card, error) {
	var card model.Card
	err := r.db.WithContext(ctx).Where("number = ?", number).First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return &card, nil
}

func (r *CardRepository) ListByUser(ctx context.Context, userID int64) ([]*model.Card, error) {
	var cards []*model.Card
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC").Find(&cards).Error
	return cards, err
}

func (r *CardRepository) ListAll(ctx context.Context) ([]*model.Card, error) {
	var cards []*model.Card
	err := r.db.WithContext(ctx).Order("id ASC").Find(&cards).Error
	return cards, err
}

func (r *CardRepository) CountByUser(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Card{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// LockCards takes an exclusive row lock on every id, one row at a time, in
// the order given. Callers must pass ids already in canonical ascending
// order (see the service lock helper); that ordering is the only thing
// standing between two opposite transfers on the same pair and a deadlock.
func (r *CardRepository) LockCards(ctx context.Context, tx *gorm.DB, ids ...int64) (map[int64]*model.Card, error) {
	if tx == nil {
		tx = r.db
	}

	cards := make(map[int64]*model.Card, len(ids))
	for _, id := range ids {
		var card model.Card
		err := tx.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&card).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrCardNotFound
			}
			return nil, asLockTimeout(err)
		}
		cards[card.ID] = &card
	}
	return cards, nil
}

// AdjustBalance applies a relative balance change. Relative, not absolute:
// two adjustments to the same row inside one transaction must compose (a
// transfer whose destination is the platform card credits that row twice).
func (r *CardRepository) AdjustBalance(ctx context.Context, tx *gorm.DB, id int64, delta decimal.Decimal) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Card{}).
		Where("id = ?", id).
		UpdateColumn("balance", gorm.Expr("balance + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCardNotFound
	}
	return nil
}

// UpdateStatus moves a card through the status state machine. The WHERE
// clause re-checks the expected current status, so a concurrent transition
// loses cleanly instead of overwriting.
func (r *CardRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, fromStatus, toStatus string) error {
	if !model.CanTransitionTo(fromStatus, toStatus) {
		return ErrInvalidCardStatus
	}

	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Card{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Update("status", toStatus)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvalidCardStatus
	}
	return nil
}

// Renew reactivates an expired card and pushes its expiry date out.
func (r *CardRepository) Renew(ctx context.Context, tx *gorm.DB, id int64, expiresAt time.Time) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Card{}).
		Where("id = ? AND status = ?", id, model.CardStatusExpired).
		Updates(map[string]interface{}{
			"status":     model.CardStatusActive,
			"expires_at": expiresAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvalidCardStatus
	}
	return nil
}

// asLockTimeout maps MySQL lock-wait failures to the transient ErrLockTimeout
// so callers can tell a retryable lock contention apart from a hard failure.
func asLockTimeout(err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		// 1205: lock wait timeout exceeded, 3572: NOWAIT lock rejected
		if mysqlErr.Number == 1205 || mysqlErr.Number == 3572 {
			return ErrLockTimeout
		}
	}
	return err
}
