package service

import (
	"context"
	"log"

	"gorm.io/gorm"

	"github.com/haniyfdev/Chontak-wallet/internal/model"
	"github.com/haniyfdev/Chontak-wallet/internal/repository"
)

// OutboxService is the operator's view of the event outbox: messages that
// exhausted their delivery retries, and the way to put one back on the
// queue once the downstream problem is resolved.
type OutboxService struct {
	outbox OutboxAdminStore
}

func NewOutboxService(db *gorm.DB) *OutboxService {
	return newOutboxService(repository.NewOutboxRepository(db))
}

func newOutboxService(outbox OutboxAdminStore) *OutboxService {
	return &OutboxService{outbox: outbox}
}

// ListFailed returns dead-lettered messages, oldest first.
func (s *OutboxService) ListFailed(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.outbox.GetFailedMessages(ctx, limit)
}

// Requeue resets a dead-lettered message so the sender picks it up again.
func (s *OutboxService) Requeue(ctx context.Context, id int64) error {
	if err := s.outbox.Requeue(ctx, id); err != nil {
		return err
	}

	log.Printf("[Outbox] message requeued: id=%d", id)
	return nil
}
