package service

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/haniyfdev/Chontak-wallet/internal/model"
)

// lockCardsOrdered is the single place multi-card row locks are taken.
// Ids are sorted ascending before locking, so two concurrent operations on
// the same cards always contend in the same order and cannot deadlock. The
// ordering lives here, not at call sites, so no caller can get it wrong.
//
// Cards whose expiry date has passed are swept into EXPIRED while the lock
// is held; status checks downstream then see the real state.
func lockCardsOrdered(ctx context.Context, tx *gorm.DB, cards CardStore, ids ...int64) (map[int64]*model.Card, error) {
	sorted := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			sorted = append(sorted, id)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	locked, err := cards.LockCards(ctx, tx, sorted...)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for _, card := range locked {
		if card.Overdue(now) {
			if err := cards.UpdateStatus(ctx, tx, card.ID, card.Status, model.CardStatusExpired); err != nil {
				return nil, err
			}
			card.Status = model.CardStatusExpired
		}
	}
	return locked, nil
}

// moveFunds is the single balance-mutation path: debit the source by
// amount+commission, credit the destination by amount, credit the platform
// card by the commission. A nil source is a platform-originated credit with
// nothing debited. All writes are relative adjustments, so the legs compose
// even when two of them land on the same row (destination == platform).
// Callers hold the row locks; this only applies the arithmetic.
func moveFunds(ctx context.Context, tx *gorm.DB, cards CardStore, fromID *int64, toID int64, amount, commission decimal.Decimal, platformID int64) error {
	if fromID != nil {
		if err := cards.AdjustBalance(ctx, tx, *fromID, amount.Add(commission).Neg()); err != nil {
			return err
		}
	}
	if err := cards.AdjustBalance(ctx, tx, toID, amount); err != nil {
		return err
	}
	if commission.IsPositive() {
		return cards.AdjustBalance(ctx, tx, platformID, commission)
	}
	return nil
}

// enqueueEvent writes an outbox row in the enclosing transaction.
func enqueueEvent(ctx context.Context, tx *gorm.DB, outbox OutboxStore, topic, key string, payload map[string]interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return outbox.Create(ctx, tx, &model.OutboxMessage{
		MessageKey: key,
		Topic:      topic,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	})
}

func transactionEventPayload(txn *model.Transaction) map[string]interface{} {
	payload := map[string]interface{}{
		"transaction_id": txn.ID,
		"to_card_id":     txn.ToCardID,
		"amount":         txn.Amount.String(),
		"commission":     txn.Commission.String(),
		"type":           txn.Type,
		"status":         txn.Status,
	}
	if txn.FromCardID != nil {
		payload["from_card_id"] = *txn.FromCardID
	}
	if txn.CompletedAt != nil {
		payload["completed_at"] = txn.CompletedAt.Format(time.RFC3339)
	}
	return payload
}
