package service

import (
	"context"
	"log"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/haniyfdev/Chontak-wallet/internal/model"
	"github.com/haniyfdev/Chontak-wallet/internal/repository"
)

// AuditService recomputes card balances from the transaction ledger and
// flags drift. A card is consistent when its stored balance equals the sum
// of everything credited to it minus everything debited from it.
type AuditService struct {
	cards        CardStore
	transactions TransactionStore
}

func NewAuditService(db *gorm.DB) *AuditService {
	return newAuditService(repository.NewCardRepository(db), repository.NewTransactionRepository(db))
}

func newAuditService(cards CardStore, transactions TransactionStore) *AuditService {
	return &AuditService{cards: cards, transactions: transactions}
}

// CardAudit is one card's reconciliation result.
type CardAudit struct {
	CardID     int64           `json:"card_id"`
	Number     string          `json:"number"`
	Stored     decimal.Decimal `json:"stored_balance"`
	Computed   decimal.Decimal `json:"computed_balance"`
	Consistent bool            `json:"consistent"`
}

// VerifyCard reconciles a single card against the ledger.
func (s *AuditService) VerifyCard(ctx context.Context, cardID int64) (*CardAudit, error) {
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	return s.audit(ctx, card)
}

// VerifyAll reconciles every card. Drift does not stop the sweep: the full
// report comes back so the operator sees every inconsistent card at once.
func (s *AuditService) VerifyAll(ctx context.Context) ([]*CardAudit, error) {
	cards, err := s.cards.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]*CardAudit, 0, len(cards))
	for _, card := range cards {
		report, err := s.audit(ctx, card)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (s *AuditService) audit(ctx context.Context, card *model.Card) (*CardAudit, error) {
	incoming, err := s.transactions.SumIncoming(ctx, card.ID)
	if err != nil {
		return nil, err
	}
	outgoing, err := s.transactions.SumOutgoing(ctx, card.ID)
	if err != nil {
		return nil, err
	}

	computed := incoming.Sub(outgoing)
	report := &CardAudit{
		CardID:     card.ID,
		Number:     card.Number,
		Stored:     card.Balance,
		Computed:   computed,
		Consistent: card.Balance.Equal(computed),
	}
	if !report.Consistent {
		log.Printf("[Audit] balance drift: card=%d, stored=%s, computed=%s", card.ID, card.Balance, computed)
	}
	return report, nil
}
