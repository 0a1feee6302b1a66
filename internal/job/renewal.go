package job

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/haniyfdev/Chontak-wallet/internal/config"
	"github.com/haniyfdev/Chontak-wallet/internal/model"
	"github.com/haniyfdev/Chontak-wallet/internal/service"
)

// SubscriptionCharger runs one renewal charge; DueLister finds the
// subscriptions that owe one. Both are served by the subscription service.
type SubscriptionCharger interface {
	ChargeSubscription(ctx context.Context, sub *model.Subscription) error
}

type DueLister interface {
	ListDue(ctx context.Context, dueBy time.Time, limit int) ([]*model.Subscription, error)
}

// RenewalJob wakes once a day at a fixed hour and charges every
// subscription whose payment date has arrived. Each charge is its own
// atomic operation, so one failed renewal never blocks the rest of the
// batch.
type RenewalJob struct {
	charger   SubscriptionCharger
	lister    DueLister
	stopCh    chan struct{}
	hour      int
	batchSize int
}

func NewRenewalJob(db *gorm.DB, cfg *config.Config) *RenewalJob {
	subs := service.NewSubscriptionService(db, cfg)
	return newRenewalJob(subs, subs, cfg.Business.RenewalHour, cfg.Business.RenewalBatchSize)
}

func newRenewalJob(charger SubscriptionCharger, lister DueLister, hour, batchSize int) *RenewalJob {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &RenewalJob{
		charger:   charger,
		lister:    lister,
		stopCh:    make(chan struct{}),
		hour:      hour,
		batchSize: batchSize,
	}
}

func (j *RenewalJob) Start(ctx context.Context) {
	log.Printf("[RenewalJob] started, runs daily at %02d:00", j.hour)

	for {
		timer := time.NewTimer(time.Until(nextRunAt(time.Now(), j.hour)))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Println("[RenewalJob] context cancelled, exiting")
			return
		case <-j.stopCh:
			timer.Stop()
			log.Println("[RenewalJob] stopped")
			return
		case <-timer.C:
			j.renewDue(ctx)
		}
	}
}

func (j *RenewalJob) Stop() {
	close(j.stopCh)
}

// nextRunAt is the next occurrence of hour:00, strictly after now.
func nextRunAt(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// renewDue drains the due set in batches until no subscription is left
// owing a charge. A lapse advances nothing, but it also deactivates the
// row, so every processed subscription leaves the due set either way.
func (j *RenewalJob) renewDue(ctx context.Context) {
	for {
		due, err := j.lister.ListDue(ctx, time.Now(), j.batchSize)
		if err != nil {
			log.Printf("[RenewalJob] list due subscriptions failed: %v", err)
			return
		}
		if len(due) == 0 {
			return
		}

		log.Printf("[RenewalJob] found %d due subscriptions", len(due))

		charged := 0
		for _, sub := range due {
			if err := j.charger.ChargeSubscription(ctx, sub); err != nil {
				log.Printf("[RenewalJob] charge failed: subscription=%d, user=%d, err=%v", sub.ID, sub.UserID, err)
				continue
			}
			charged++
		}

		log.Printf("[RenewalJob] batch done: %d/%d charged", charged, len(due))

		// A batch where every charge errored would loop on the same rows;
		// back off until the next scheduled run instead.
		if charged == 0 && len(due) > 0 {
			return
		}
	}
}
