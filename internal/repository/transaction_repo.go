package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/haniyfdev/Chontak-wallet/internal/model"
)

var ErrTransactionNotFound = errors.New("transaction not found")

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.Transaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

// GetByIDForCards returns the transaction only if one of cardIDs is a party
// to it, which is how per-user visibility is enforced.
func (r *TransactionRepository) GetByIDForCards(ctx context.Context, id string, cardIDs []int64) (*model.Transaction, error) {
	if len(cardIDs) == 0 {
		return nil, ErrTransactionNotFound
	}

	var trans model.Transaction
	err := r.db.WithContext(ctx).
		Where("id = ? AND (from_card_id IN ? OR to_card_id IN ?)", id, cardIDs, cardIDs).
		First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &trans, nil
}

func (r *TransactionRepository) ListByCards(ctx context.Context, cardIDs []int64, page, pageSize int) ([]*model.Transaction, int64, error) {
	if len(cardIDs) == 0 {
		return nil, 0, nil
	}

	var transactions []*model.Transaction
	var total int64

	query := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("from_card_id IN ? OR to_card_id IN ?", cardIDs, cardIDs)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}

// SumIncoming totals SUCCESS credits into the card.
func (r *TransactionRepository) SumIncoming(ctx context.Context, cardID int64) (decimal.Decimal, error) {
	row := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("to_card_id = ? AND status = ?", cardID, model.TransactionStatusSuccess).
		Row()

	var total decimal.Decimal
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// SumOutgoing totals SUCCESS debits from the card, commission included.
func (r *TransactionRepository) SumOutgoing(ctx context.Context, cardID int64) (decimal.Decimal, error) {
	row := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Select("COALESCE(SUM(amount + commission), 0)").
		Where("from_card_id = ? AND status = ?", cardID, model.TransactionStatusSuccess).
		Row()

	var total decimal.Decimal
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}
