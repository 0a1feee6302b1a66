package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/haniyfdev/Chontak-wallet/internal/config"
	"github.com/haniyfdev/Chontak-wallet/internal/model"
	"github.com/haniyfdev/Chontak-wallet/internal/repository"
	"github.com/haniyfdev/Chontak-wallet/pkg/idgen"
)

// A billing cycle: next_payment_at advances by this much per charge.
const billingCycleDays = 31

// SubscriptionService owns the premium subscription lifecycle: the first
// charge that creates a subscription and the renewal charge the scheduler
// drives. Both move money the same way a transfer does: funding card to
// platform card, locked in canonical order, commission zero.
type SubscriptionService struct {
	runner        TxRunner
	cards         CardStore
	subscriptions SubscriptionStore
	users         UserStore
	transactions  TransactionStore
	outbox        OutboxStore
	cfg           *config.Config
}

func NewSubscriptionService(db *gorm.DB, cfg *config.Config) *SubscriptionService {
	return newSubscriptionService(
		db,
		repository.NewCardRepository(db),
		repository.NewSubscriptionRepository(db),
		repository.NewUserRepository(db),
		repository.NewTransactionRepository(db),
		repository.NewOutboxRepository(db),
		cfg,
	)
}

func newSubscriptionService(runner TxRunner, cards CardStore, subscriptions SubscriptionStore, users UserStore, transactions TransactionStore, outbox OutboxStore, cfg *config.Config) *SubscriptionService {
	return &SubscriptionService{
		runner:        runner,
		cards:         cards,
		subscriptions: subscriptions,
		users:         users,
		transactions:  transactions,
		outbox:        outbox,
		cfg:           cfg,
	}
}

// Subscribe takes the first charge and creates the subscription. The card
// must be ACTIVE and carry no active subscription already; the user is
// upgraded to premium in the same atomic scope as the charge.
func (s *SubscriptionService) Subscribe(ctx context.Context, actor Actor, cardID int64) (*model.Subscription, error) {
	price := s.cfg.Business.Price()

	var sub *model.Subscription
	err := s.runner.Transaction(func(tx *gorm.DB) error {
		card, err := s.cards.GetByIDForUser(ctx, cardID, actor.UserID)
		if err != nil {
			return err
		}

		existing, err := s.subscriptions.GetActiveByCardID(ctx, card.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadySubscribed
		}

		platform, err := s.cards.GetByNumber(ctx, s.cfg.Business.PlatformCard)
		if err != nil {
			return fmt.Errorf("resolve platform card: %w", err)
		}

		locked, err := lockCardsOrdered(ctx, tx, s.cards, card.ID, platform.ID)
		if err != nil {
			return err
		}
		card, platform = locked[card.ID], locked[platform.ID]

		if card.Status != model.CardStatusActive {
			return fmt.Errorf("%w: card %s is %s", ErrCardNotActive, card.Number, card.Status)
		}
		if price.GreaterThan(card.Balance) {
			return ErrInsufficientFunds
		}

		fromID := card.ID
		if err := moveFunds(ctx, tx, s.cards, &fromID, platform.ID, price, decimal.Zero, 0); err != nil {
			return err
		}
		if err := s.users.UpdateRole(ctx, tx, actor.UserID, model.TierPremium); err != nil {
			return err
		}

		now := time.Now()
		txn := &model.Transaction{
			ID:          idgen.TransactionID(),
			FromCardID:  &fromID,
			ToCardID:    platform.ID,
			Amount:      price,
			Commission:  decimal.Zero,
			Type:        model.TransactionTypeTransfer,
			Status:      model.TransactionStatusSuccess,
			Description: "Premium subscription",
			CompletedAt: &now,
		}
		if err := s.transactions.Create(ctx, tx, txn); err != nil {
			return err
		}
		if err := enqueueEvent(ctx, tx, s.outbox, s.cfg.Kafka.Topic.TransactionCompleted, txn.ID, transactionEventPayload(txn)); err != nil {
			return err
		}

		sub = &model.Subscription{
			UserID:        actor.UserID,
			CardID:        card.ID,
			Price:         price,
			NextPaymentAt: now.AddDate(0, 0, billingCycleDays),
			IsActive:      true,
		}
		return s.subscriptions.Create(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Subscription] created: id=%d, user=%d, card=%d, price=%s", sub.ID, sub.UserID, sub.CardID, sub.Price)
	return sub, nil
}

// ChargeSubscription runs one renewal charge in its own atomic scope.
//
// A shortfall (or a vanished funding card) is not surfaced as an error: the
// subscription is deactivated and the owner dropped to the standard tier,
// with no transaction record and no balance change. The renewal charge does
// not require the funding card to be ACTIVE: a frozen card with funds
// still pays, matching how the wallet has always billed.
func (s *SubscriptionService) ChargeSubscription(ctx context.Context, sub *model.Subscription) error {
	return s.runner.Transaction(func(tx *gorm.DB) error {
		platform, err := s.cards.GetByNumber(ctx, s.cfg.Business.PlatformCard)
		if err != nil {
			return fmt.Errorf("resolve platform card: %w", err)
		}

		funding, err := s.cards.GetByID(ctx, sub.CardID)
		if err != nil {
			if err == repository.ErrCardNotFound {
				return s.lapse(ctx, tx, sub, "card missing")
			}
			return err
		}

		locked, err := lockCardsOrdered(ctx, tx, s.cards, funding.ID, platform.ID)
		if err != nil {
			return err
		}
		funding, platform = locked[funding.ID], locked[platform.ID]

		if sub.Price.GreaterThan(funding.Balance) {
			return s.lapse(ctx, tx, sub, "insufficient funds")
		}

		fromID := funding.ID
		if err := moveFunds(ctx, tx, s.cards, &fromID, platform.ID, sub.Price, decimal.Zero, 0); err != nil {
			return err
		}
		if err := s.subscriptions.Advance(ctx, tx, sub.ID, time.Now().AddDate(0, 0, billingCycleDays)); err != nil {
			return err
		}

		now := time.Now()
		txn := &model.Transaction{
			ID:          idgen.TransactionID(),
			FromCardID:  &fromID,
			ToCardID:    platform.ID,
			Amount:      sub.Price,
			Commission:  decimal.Zero,
			Type:        model.TransactionTypeTransfer,
			Status:      model.TransactionStatusSuccess,
			Description: "Premium subscription renewed",
			CompletedAt: &now,
		}
		if err := s.transactions.Create(ctx, tx, txn); err != nil {
			return err
		}

		return enqueueEvent(ctx, tx, s.outbox, s.cfg.Kafka.Topic.TransactionCompleted, txn.ID, transactionEventPayload(txn))
	})
}

// lapse deactivates the subscription and downgrades the user, emitting an
// event a notification service can pick up. The user is not told directly.
func (s *SubscriptionService) lapse(ctx context.Context, tx *gorm.DB, sub *model.Subscription, reason string) error {
	if err := s.subscriptions.Deactivate(ctx, tx, sub.ID); err != nil {
		return err
	}
	if err := s.users.UpdateRole(ctx, tx, sub.UserID, model.TierStandard); err != nil {
		return err
	}

	log.Printf("[Subscription] lapsed: id=%d, user=%d, reason=%s", sub.ID, sub.UserID, reason)
	return enqueueEvent(ctx, tx, s.outbox, s.cfg.Kafka.Topic.SubscriptionLapsed, fmt.Sprintf("sub-%d", sub.ID), map[string]interface{}{
		"subscription_id": sub.ID,
		"user_id":         sub.UserID,
		"card_id":         sub.CardID,
		"reason":          reason,
	})
}

// GetActive returns the caller's active subscription on the card.
func (s *SubscriptionService) GetActive(ctx context.Context, actor Actor, cardID int64) (*model.Subscription, error) {
	return s.subscriptions.GetActive(ctx, actor.UserID, cardID)
}

// ListDue returns the active subscriptions due on or before dueBy.
func (s *SubscriptionService) ListDue(ctx context.Context, dueBy time.Time, limit int) ([]*model.Subscription, error) {
	return s.subscriptions.ListDue(ctx, dueBy, limit)
}
