package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/haniyfdev/Chontak-wallet/internal/config"
	"github.com/haniyfdev/Chontak-wallet/internal/model"
	"github.com/haniyfdev/Chontak-wallet/internal/repository"
	"github.com/haniyfdev/Chontak-wallet/pkg/idgen"
)

var ErrCardLimitReached = errors.New("card limit reached")

// Attempts to mint a card number before giving up on uniqueness collisions.
const cardNumberAttempts = 5

// CardService owns the card lifecycle outside of money movement: issuing,
// the owner-driven status transitions, and renewal of expired cards.
type CardService struct {
	runner TxRunner
	cards  CardStore
	users  UserStore
	cfg    *config.Config
}

func NewCardService(db *gorm.DB, cfg *config.Config) *CardService {
	return newCardService(db, repository.NewCardRepository(db), repository.NewUserRepository(db), cfg)
}

func newCardService(runner TxRunner, cards CardStore, users UserStore, cfg *config.Config) *CardService {
	return &CardService{runner: runner, cards: cards, users: users, cfg: cfg}
}

// Create issues a new card for the actor. Standard users hold at most one
// card; premium and platform users are capped by configuration. New cards
// start FROZEN and must be activated explicitly before they can move money.
func (s *CardService) Create(ctx context.Context, actor Actor) (*model.Card, error) {
	count, err := s.cards.CountByUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	limit := s.cfg.Business.MaxCardsPerUser
	if actor.Tier == model.TierStandard {
		limit = 1
	}
	if count >= limit {
		return nil, fmt.Errorf("%w: user %d already holds %d cards", ErrCardLimitReached, actor.UserID, count)
	}

	card := &model.Card{
		UserID:    actor.UserID,
		Status:    model.CardStatusFrozen,
		ExpiresAt: time.Now().AddDate(0, 0, s.cfg.Business.CardExpiryDays),
	}

	// The number space is large, but a collision is possible; retry with a
	// fresh number instead of surfacing the unique-index violation.
	for attempt := 0; attempt < cardNumberAttempts; attempt++ {
		card.Number = idgen.CardNumber()
		if _, err := s.cards.GetByNumber(ctx, card.Number); err == repository.ErrCardNotFound {
			break
		} else if err != nil {
			return nil, err
		}
		if attempt == cardNumberAttempts-1 {
			return nil, errors.New("could not mint a unique card number")
		}
	}

	if err := s.cards.Create(ctx, nil, card); err != nil {
		return nil, err
	}

	log.Printf("[Card] created: id=%d, user=%d, number=%s", card.ID, card.UserID, card.Number)
	return card, nil
}

// Get resolves a card the actor owns.
func (s *CardService) Get(ctx context.Context, actor Actor, cardID int64) (*model.Card, error) {
	return s.cards.GetByIDForUser(ctx, cardID, actor.UserID)
}

// List returns the actor's cards, oldest first.
func (s *CardService) List(ctx context.Context, actor Actor) ([]*model.Card, error) {
	return s.cards.ListByUser(ctx, actor.UserID)
}

// Freeze suspends an active card.
func (s *CardService) Freeze(ctx context.Context, actor Actor, cardID int64) error {
	return s.transition(ctx, actor, cardID, model.CardStatusFrozen)
}

// Unfreeze reactivates a frozen card.
func (s *CardService) Unfreeze(ctx context.Context, actor Actor, cardID int64) error {
	return s.transition(ctx, actor, cardID, model.CardStatusActive)
}

// Close retires a card permanently. There is no way back from CLOSED.
func (s *CardService) Close(ctx context.Context, actor Actor, cardID int64) error {
	return s.transition(ctx, actor, cardID, model.CardStatusClosed)
}

func (s *CardService) transition(ctx context.Context, actor Actor, cardID int64, target string) error {
	card, err := s.cards.GetByIDForUser(ctx, cardID, actor.UserID)
	if err != nil {
		return err
	}
	if err := s.cards.UpdateStatus(ctx, nil, card.ID, card.Status, target); err != nil {
		return err
	}

	log.Printf("[Card] status changed: id=%d, %s -> %s", card.ID, card.Status, target)
	return nil
}

// Renew reactivates an expired card the actor owns and pushes its expiry
// date out. Only EXPIRED cards renew; anything else is rejected.
func (s *CardService) Renew(ctx context.Context, actor Actor, cardID int64) (*model.Card, error) {
	card, err := s.cards.GetByIDForUser(ctx, cardID, actor.UserID)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().AddDate(0, 0, s.cfg.Business.CardRenewalDays)
	if err := s.cards.Renew(ctx, nil, card.ID, expiresAt); err != nil {
		return nil, err
	}

	card.Status = model.CardStatusActive
	card.ExpiresAt = expiresAt
	log.Printf("[Card] renewed: id=%d, expires=%s", card.ID, expiresAt.Format("2006-01-02"))
	return card, nil
}

// SetStatus is the operator override: it drives the same state machine but
// skips the ownership check. Used by back-office tooling.
func (s *CardService) SetStatus(ctx context.Context, cardID int64, target string) error {
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		return err
	}
	if err := s.cards.UpdateStatus(ctx, nil, card.ID, card.Status, target); err != nil {
		return err
	}

	log.Printf("[Card] status forced: id=%d, %s -> %s", card.ID, card.Status, target)
	return nil
}

// PlatformCard resolves the configured platform card.
func (s *CardService) PlatformCard(ctx context.Context) (*model.Card, error) {
	return s.cards.GetByNumber(ctx, s.cfg.Business.PlatformCard)
}
