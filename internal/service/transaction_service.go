package service

import (
	"context"

	"gorm.io/gorm"

	"github.com/haniyfdev/Chontak-wallet/internal/model"
	"github.com/haniyfdev/Chontak-wallet/internal/repository"
)

// TransactionService is the read side of the ledger: history and lookup,
// always scoped to the cards the actor owns.
type TransactionService struct {
	cards        CardStore
	transactions TransactionStore
}

func NewTransactionService(db *gorm.DB) *TransactionService {
	return newTransactionService(repository.NewCardRepository(db), repository.NewTransactionRepository(db))
}

func newTransactionService(cards CardStore, transactions TransactionStore) *TransactionService {
	return &TransactionService{cards: cards, transactions: transactions}
}

// List pages through the actor's history, newest first. A transaction shows
// up if any card the actor owns is on either side of it.
func (s *TransactionService) List(ctx context.Context, actor Actor, page, pageSize int) ([]*model.Transaction, int64, error) {
	cardIDs, err := s.ownedCardIDs(ctx, actor)
	if err != nil {
		return nil, 0, err
	}
	if len(cardIDs) == 0 {
		return []*model.Transaction{}, 0, nil
	}

	return s.transactions.ListByCards(ctx, cardIDs, page, pageSize)
}

// Get resolves one transaction, visible only if the actor owns a card on
// either side of it. Anything else reads as not found.
func (s *TransactionService) Get(ctx context.Context, actor Actor, id string) (*model.Transaction, error) {
	cardIDs, err := s.ownedCardIDs(ctx, actor)
	if err != nil {
		return nil, err
	}
	if len(cardIDs) == 0 {
		return nil, repository.ErrTransactionNotFound
	}

	return s.transactions.GetByIDForCards(ctx, id, cardIDs)
}

func (s *TransactionService) ownedCardIDs(ctx context.Context, actor Actor) ([]int64, error) {
	cards, err := s.cards.ListByUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(cards))
	for _, card := range cards {
		ids = append(ids, card.ID)
	}
	return ids, nil
}
