package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/haniyfdev/Chontak-wallet/internal/model"
)

var ErrSubscriptionNotFound = errors.New("subscription not found")

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Create(ctx context.Context, tx *gorm.DB, sub *model.Subscription) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(sub).Error
}

// GetActiveByCardID returns nil, nil when the card has no active
// subscription; callers use it as an existence check.
func (r *SubscriptionRepository) GetActiveByCardID(ctx context.Context, cardID int64) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).
		Where("card_id = ? AND is_active = ?", cardID, true).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepository) GetActive(ctx context.Context, userID, cardID int64) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND card_id = ? AND is_active = ?", userID, cardID, true).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepository) ListDue(ctx context.Context, dueBy time.Time, limit int) ([]*model.Subscription, error) {
	var subs []*model.Subscription
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND next_payment_at <= ?", true, dueBy).
		Order("next_payment_at ASC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}

func (r *SubscriptionRepository) Advance(ctx context.Context, tx *gorm.DB, id int64, nextPaymentAt time.Time) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("next_payment_at", nextPaymentAt)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (r *SubscriptionRepository) Deactivate(ctx context.Context, tx *gorm.DB, id int64) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("id = ?", id).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}
