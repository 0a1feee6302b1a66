package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/haniyfdev/Chontak-wallet/internal/config"
	"github.com/haniyfdev/Chontak-wallet/internal/guard"
	"github.com/haniyfdev/Chontak-wallet/internal/model"
	"github.com/haniyfdev/Chontak-wallet/internal/policy"
	"github.com/haniyfdev/Chontak-wallet/internal/repository"
	"github.com/haniyfdev/Chontak-wallet/pkg/idgen"
)

// Actor is the resolved identity handed in by the auth collaborator. The
// engine trusts it as already authenticated.
type Actor struct {
	UserID int64
	Tier   string
}

// TransferService is the transactional money-movement core. Every balance
// mutation in the system goes through one of its operations, each a single
// atomic scope: locks, validation, fee computation, balance writes and the
// transaction record commit or roll back together.
type TransferService struct {
	runner       TxRunner
	guard        RequestGuard
	policy       *policy.Policy
	cards        CardStore
	transactions TransactionStore
	outbox       OutboxStore
	cfg          *config.Config
}

func NewTransferService(db *gorm.DB, g *guard.Guard, cfg *config.Config) *TransferService {
	return newTransferService(
		db,
		g,
		policy.New(policy.DefaultSchedule()),
		repository.NewCardRepository(db),
		repository.NewTransactionRepository(db),
		repository.NewOutboxRepository(db),
		cfg,
	)
}

func newTransferService(runner TxRunner, g RequestGuard, p *policy.Policy, cards CardStore, transactions TransactionStore, outbox OutboxStore, cfg *config.Config) *TransferService {
	return &TransferService{
		runner:       runner,
		guard:        g,
		policy:       p,
		cards:        cards,
		transactions: transactions,
		outbox:       outbox,
		cfg:          cfg,
	}
}

type TransferRequest struct {
	Actor          Actor
	FromCardID     int64
	ToCardNumber   string
	Amount         decimal.Decimal
	Description    string
	IdempotencyKey string
}

// Transfer moves money between two cards.
//
// The idempotency reservation is taken before any work and released only if
// the atomic scope fails, so a key that survives marks exactly one applied
// transfer. The pre-generated transaction id doubles as the reservation
// owner, which keeps the release from evicting a racing request's key.
func (s *TransferService) Transfer(ctx context.Context, req *TransferRequest) (*model.Transaction, error) {
	if req.IdempotencyKey == "" {
		return nil, guard.ErrMissingIdempotencyKey
	}

	txnID := idgen.TransactionID()
	if err := s.guard.Reserve(ctx, req.IdempotencyKey, txnID); err != nil {
		return nil, err
	}
	if err := s.guard.Allow(ctx, req.Actor.UserID); err != nil {
		s.guard.Release(ctx, req.IdempotencyKey, txnID)
		return nil, err
	}

	var txn *model.Transaction
	err := s.runner.Transaction(func(tx *gorm.DB) error {
		from, err := s.cards.GetByIDForUser(ctx, req.FromCardID, req.Actor.UserID)
		if err != nil {
			return err
		}
		to, err := s.cards.GetByNumber(ctx, req.ToCardNumber)
		if err != nil {
			return err
		}
		if from.ID == to.ID {
			return ErrSelfTransfer
		}

		quote, err := s.policy.Compute(req.Amount, req.Actor.Tier)
		if err != nil {
			return err
		}

		ids := []int64{from.ID, to.ID}
		var platformID int64
		if quote.Commission.IsPositive() {
			platform, err := s.cards.GetByNumber(ctx, s.cfg.Business.PlatformCard)
			if err != nil {
				return fmt.Errorf("resolve platform card: %w", err)
			}
			platformID = platform.ID
			ids = append(ids, platformID)
		}

		locked, err := lockCardsOrdered(ctx, tx, s.cards, ids...)
		if err != nil {
			return err
		}
		from, to = locked[from.ID], locked[to.ID]

		for _, card := range []*model.Card{from, to} {
			if card.Status != model.CardStatusActive {
				return fmt.Errorf("%w: card %s is %s", ErrCardNotActive, card.Number, card.Status)
			}
		}
		if quote.TotalDebit.GreaterThan(from.Balance) {
			return ErrInsufficientFunds
		}

		fromCardID := from.ID
		if err := moveFunds(ctx, tx, s.cards, &fromCardID, to.ID, req.Amount, quote.Commission, platformID); err != nil {
			return err
		}

		now := time.Now()
		txn = &model.Transaction{
			ID:          txnID,
			FromCardID:  &fromCardID,
			ToCardID:    to.ID,
			Amount:      req.Amount,
			Commission:  quote.Commission,
			Type:        model.TransactionTypeTransfer,
			Status:      model.TransactionStatusSuccess,
			Description: req.Description,
			CompletedAt: &now,
		}
		if err := s.transactions.Create(ctx, tx, txn); err != nil {
			return err
		}

		return enqueueEvent(ctx, tx, s.outbox, s.cfg.Kafka.Topic.TransactionCompleted, txn.ID, transactionEventPayload(txn))
	})
	if err != nil {
		// A failed attempt must not burn the key for a day; release lets the
		// client retry fixable failures with the same key.
		if releaseErr := s.guard.Release(ctx, req.IdempotencyKey, txnID); releaseErr != nil {
			log.Printf("[Transfer] release idempotency key failed: key=%s, err=%v", req.IdempotencyKey, releaseErr)
		}
		return nil, err
	}

	log.Printf("[Transfer] completed: id=%s, from=%d, to=%d, amount=%s, commission=%s",
		txn.ID, req.FromCardID, txn.ToCardID, txn.Amount, txn.Commission)
	return txn, nil
}

type DepositRequest struct {
	Actor        Actor
	ToCardNumber string
	Amount       decimal.Decimal
	Description  string
}

// Deposit credits a card from the platform. There is no source row: nothing
// is locked or debited on the platform side, and the record carries a null
// source to mark it as platform-originated. The actor's tier is forced to
// platform regardless of who the operator is, which is what grants the
// widest ceiling and zero commission.
func (s *TransferService) Deposit(ctx context.Context, req *DepositRequest) (*model.Transaction, error) {
	quote, err := s.policy.Compute(req.Amount, model.TierPlatform)
	if err != nil {
		return nil, err
	}

	var txn *model.Transaction
	err = s.runner.Transaction(func(tx *gorm.DB) error {
		to, err := s.cards.GetByNumber(ctx, req.ToCardNumber)
		if err != nil {
			return err
		}

		locked, err := lockCardsOrdered(ctx, tx, s.cards, to.ID)
		if err != nil {
			return err
		}
		to = locked[to.ID]
		if to.Status != model.CardStatusActive {
			return fmt.Errorf("%w: card %s is %s", ErrCardNotActive, to.Number, to.Status)
		}

		if err := moveFunds(ctx, tx, s.cards, nil, to.ID, req.Amount, decimal.Zero, 0); err != nil {
			return err
		}

		now := time.Now()
		txn = &model.Transaction{
			ID:          idgen.TransactionID(),
			FromCardID:  nil,
			ToCardID:    to.ID,
			Amount:      req.Amount,
			Commission:  quote.Commission,
			Type:        model.TransactionTypeDeposit,
			Status:      model.TransactionStatusSuccess,
			Description: req.Description,
			CompletedAt: &now,
		}
		if err := s.transactions.Create(ctx, tx, txn); err != nil {
			return err
		}

		return enqueueEvent(ctx, tx, s.outbox, s.cfg.Kafka.Topic.TransactionCompleted, txn.ID, transactionEventPayload(txn))
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Deposit] completed: id=%s, to=%d, amount=%s, by=%d", txn.ID, txn.ToCardID, txn.Amount, req.Actor.UserID)
	return txn, nil
}
