package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/haniyfdev/Chontak-wallet/internal/config"
	"github.com/haniyfdev/Chontak-wallet/internal/guard"
	"github.com/haniyfdev/Chontak-wallet/internal/model"
	"github.com/haniyfdev/Chontak-wallet/internal/repository"
)

// fakeWorld is an in-memory stand-in for the repository layer. It implements
// every store interface plus TxRunner: each Transaction call gets a fresh
// *gorm.DB token, a snapshot of the world, and per-card mutex locks that are
// held until the transaction ends. Enough to exercise rollback semantics
// and lock ordering without a database.
type fakeWorld struct {
	mu            sync.Mutex
	cards         map[int64]*model.Card
	transactions  map[string]*model.Transaction
	subscriptions map[int64]*model.Subscription
	users         map[int64]*model.User
	events        []*model.OutboxMessage
	nextCardID    int64
	nextSubID     int64

	cardLocks  map[int64]*sync.Mutex
	held       map[*gorm.DB][]int64
	lockOrders [][]int64 // every id sequence handed to LockCards
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		cards:         make(map[int64]*model.Card),
		transactions:  make(map[string]*model.Transaction),
		subscriptions: make(map[int64]*model.Subscription),
		users:         make(map[int64]*model.User),
		cardLocks:     make(map[int64]*sync.Mutex),
		held:          make(map[*gorm.DB][]int64),
	}
}

type worldSnapshot struct {
	cards         map[int64]*model.Card
	transactions  map[string]*model.Transaction
	subscriptions map[int64]*model.Subscription
	users         map[int64]*model.User
	events        []*model.OutboxMessage
}

func copyCard(c *model.Card) *model.Card {
	cp := *c
	return &cp
}

func (w *fakeWorld) snapshot() *worldSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := &worldSnapshot{
		cards:         make(map[int64]*model.Card, len(w.cards)),
		transactions:  make(map[string]*model.Transaction, len(w.transactions)),
		subscriptions: make(map[int64]*model.Subscription, len(w.subscriptions)),
		users:         make(map[int64]*model.User, len(w.users)),
		events:        append([]*model.OutboxMessage(nil), w.events...),
	}
	for id, c := range w.cards {
		snap.cards[id] = copyCard(c)
	}
	for id, t := range w.transactions {
		cp := *t
		snap.transactions[id] = &cp
	}
	for id, s := range w.subscriptions {
		cp := *s
		snap.subscriptions[id] = &cp
	}
	for id, u := range w.users {
		cp := *u
		snap.users[id] = &cp
	}
	return snap
}

func (w *fakeWorld) restore(snap *worldSnapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.cards = snap.cards
	w.transactions = snap.transactions
	w.subscriptions = snap.subscriptions
	w.users = snap.users
	w.events = snap.events
}

// Transaction mimics gorm's callback style: run fn, roll the world back if
// it errors, and drop any row locks the transaction still holds either way.
func (w *fakeWorld) Transaction(fn func(tx *gorm.DB) error, opts ...*sql.TxOptions) error {
	tx := &gorm.DB{}
	snap := w.snapshot()

	err := fn(tx)

	w.releaseLocks(tx)
	if err != nil {
		w.restore(snap)
	}
	return err
}

func (w *fakeWorld) releaseLocks(tx *gorm.DB) {
	w.mu.Lock()
	held := w.held[tx]
	delete(w.held, tx)
	locks := make([]*sync.Mutex, 0, len(held))
	for _, id := range held {
		locks = append(locks, w.cardLocks[id])
	}
	w.mu.Unlock()

	for i := len(locks) - 1; i >= 0; i-- {
		locks[i].Unlock()
	}
}

// ---- CardStore ----

func (w *fakeWorld) Create(ctx context.Context, tx *gorm.DB, card *model.Card) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.nextCardID++
	card.ID = w.nextCardID
	card.CreatedAt = time.Now()
	w.cards[card.ID] = copyCard(card)
	return nil
}

func (w *fakeWorld) GetByID(ctx context.Context, id int64) (*model.Card, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	card, ok := w.cards[id]
	if !ok {
		return nil, repository.ErrCardNotFound
	}
	return copyCard(card), nil
}

func (w *fakeWorld) GetByIDForUser(ctx context.Context, id, userID int64) (*model.Card, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	card, ok := w.cards[id]
	if !ok || card.UserID != userID {
		return nil, repository.ErrCardNotFound
	}
	return copyCard(card), nil
}

func (w *fakeWorld) GetByNumber(ctx context.Context, number string) (*model.Card, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, card := range w.cards {
		if card.Number == number {
			return copyCard(card), nil
		}
	}
	return nil, repository.ErrCardNotFound
}

func (w *fakeWorld) ListByUser(ctx context.Context, userID int64) ([]*model.Card, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var cards []*model.Card
	for _, card := range w.cards {
		if card.UserID == userID {
			cards = append(cards, copyCard(card))
		}
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].ID < cards[j].ID })
	return cards, nil
}

func (w *fakeWorld) ListAll(ctx context.Context) ([]*model.Card, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var cards []*model.Card
	for _, card := range w.cards {
		cards = append(cards, copyCard(card))
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].ID < cards[j].ID })
	return cards, nil
}

func (w *fakeWorld) CountByUser(ctx context.Context, userID int64) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var count int64
	for _, card := range w.cards {
		if card.UserID == userID {
			count++
		}
	}
	return count, nil
}

// LockCards records the id order it was called with and takes the per-card
// mutexes in that order, holding them until the transaction ends.
func (w *fakeWorld) LockCards(ctx context.Context, tx *gorm.DB, ids ...int64) (map[int64]*model.Card, error) {
	w.mu.Lock()
	w.lockOrders = append(w.lockOrders, append([]int64(nil), ids...))
	w.mu.Unlock()

	cards := make(map[int64]*model.Card, len(ids))
	for _, id := range ids {
		w.mu.Lock()
		lock, ok := w.cardLocks[id]
		if !ok {
			lock = &sync.Mutex{}
			w.cardLocks[id] = lock
		}
		w.mu.Unlock()

		lock.Lock()

		w.mu.Lock()
		w.held[tx] = append(w.held[tx], id)
		card, ok := w.cards[id]
		if !ok {
			w.mu.Unlock()
			return nil, repository.ErrCardNotFound
		}
		cards[id] = copyCard(card)
		w.mu.Unlock()
	}
	return cards, nil
}

func (w *fakeWorld) AdjustBalance(ctx context.Context, tx *gorm.DB, id int64, delta decimal.Decimal) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	card, ok := w.cards[id]
	if !ok {
		return repository.ErrCardNotFound
	}
	card.Balance = card.Balance.Add(delta)
	return nil
}

func (w *fakeWorld) UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, fromStatus, toStatus string) error {
	if !model.CanTransitionTo(fromStatus, toStatus) {
		return repository.ErrInvalidCardStatus
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	card, ok := w.cards[id]
	if !ok || card.Status != fromStatus {
		return repository.ErrInvalidCardStatus
	}
	card.Status = toStatus
	return nil
}

func (w *fakeWorld) Renew(ctx context.Context, tx *gorm.DB, id int64, expiresAt time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	card, ok := w.cards[id]
	if !ok || card.Status != model.CardStatusExpired {
		return repository.ErrInvalidCardStatus
	}
	card.Status = model.CardStatusActive
	card.ExpiresAt = expiresAt
	return nil
}

// ---- TransactionStore ----

func (w *fakeWorld) CreateTransaction(ctx context.Context, tx *gorm.DB, trans *model.Transaction) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	trans.CreatedAt = time.Now()
	cp := *trans
	w.transactions[trans.ID] = &cp
	return nil
}

func (w *fakeWorld) GetByIDForCards(ctx context.Context, id string, cardIDs []int64) (*model.Transaction, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	trans, ok := w.transactions[id]
	if !ok || !transactionTouches(trans, cardIDs) {
		return nil, repository.ErrTransactionNotFound
	}
	cp := *trans
	return &cp, nil
}

func (w *fakeWorld) ListByCards(ctx context.Context, cardIDs []int64, page, pageSize int) ([]*model.Transaction, int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var matched []*model.Transaction
	for _, trans := range w.transactions {
		if transactionTouches(trans, cardIDs) {
			cp := *trans
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	start := (page - 1) * pageSize
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func transactionTouches(trans *model.Transaction, cardIDs []int64) bool {
	for _, id := range cardIDs {
		if trans.ToCardID == id || (trans.FromCardID != nil && *trans.FromCardID == id) {
			return true
		}
	}
	return false
}

func (w *fakeWorld) SumIncoming(ctx context.Context, cardID int64) (decimal.Decimal, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	total := decimal.Zero
	for _, trans := range w.transactions {
		if trans.ToCardID == cardID && trans.Status == model.TransactionStatusSuccess {
			total = total.Add(trans.Amount)
		}
	}
	return total, nil
}

func (w *fakeWorld) SumOutgoing(ctx context.Context, cardID int64) (decimal.Decimal, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	total := decimal.Zero
	for _, trans := range w.transactions {
		if trans.FromCardID != nil && *trans.FromCardID == cardID && trans.Status == model.TransactionStatusSuccess {
			total = total.Add(trans.Amount).Add(trans.Commission)
		}
	}
	return total, nil
}

// ---- SubscriptionStore ----

func (w *fakeWorld) CreateSubscription(ctx context.Context, tx *gorm.DB, sub *model.Subscription) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.nextSubID++
	sub.ID = w.nextSubID
	sub.CreatedAt = time.Now()
	cp := *sub
	w.subscriptions[sub.ID] = &cp
	return nil
}

func (w *fakeWorld) GetActiveByCardID(ctx context.Context, cardID int64) (*model.Subscription, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, sub := range w.subscriptions {
		if sub.CardID == cardID && sub.IsActive {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, nil
}

func (w *fakeWorld) GetActive(ctx context.Context, userID, cardID int64) (*model.Subscription, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, sub := range w.subscriptions {
		if sub.UserID == userID && sub.CardID == cardID && sub.IsActive {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, repository.ErrSubscriptionNotFound
}

func (w *fakeWorld) ListDue(ctx context.Context, dueBy time.Time, limit int) ([]*model.Subscription, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var due []*model.Subscription
	for _, sub := range w.subscriptions {
		if sub.IsActive && !sub.NextPaymentAt.After(dueBy) {
			cp := *sub
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextPaymentAt.Before(due[j].NextPaymentAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (w *fakeWorld) Advance(ctx context.Context, tx *gorm.DB, id int64, nextPaymentAt time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	sub, ok := w.subscriptions[id]
	if !ok || !sub.IsActive {
		return repository.ErrSubscriptionNotFound
	}
	sub.NextPaymentAt = nextPaymentAt
	return nil
}

func (w *fakeWorld) Deactivate(ctx context.Context, tx *gorm.DB, id int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	sub, ok := w.subscriptions[id]
	if !ok {
		return repository.ErrSubscriptionNotFound
	}
	sub.IsActive = false
	return nil
}

// ---- UserStore ----

func (w *fakeWorld) GetByIDUser(ctx context.Context, id int64) (*model.User, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	user, ok := w.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (w *fakeWorld) UpdateRole(ctx context.Context, tx *gorm.DB, id int64, role string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	user, ok := w.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.Role = role
	return nil
}

// ---- OutboxStore ----

func (w *fakeWorld) CreateOutbox(ctx context.Context, tx *gorm.DB, msg *model.OutboxMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.events = append(w.events, msg)
	return nil
}

func (w *fakeWorld) eventsForTopic(topic string) []*model.OutboxMessage {
	w.mu.Lock()
	defer w.mu.Unlock()

	var matched []*model.OutboxMessage
	for _, e := range w.events {
		if e.Topic == topic {
			matched = append(matched, e)
		}
	}
	return matched
}

// Interface adapters: the world exposes several Create methods under the
// names the store interfaces expect.

type cardStoreView struct{ *fakeWorld }

type transactionStoreView struct{ *fakeWorld }

func (v transactionStoreView) Create(ctx context.Context, tx *gorm.DB, trans *model.Transaction) error {
	return v.CreateTransaction(ctx, tx, trans)
}

type subscriptionStoreView struct{ *fakeWorld }

func (v subscriptionStoreView) Create(ctx context.Context, tx *gorm.DB, sub *model.Subscription) error {
	return v.CreateSubscription(ctx, tx, sub)
}

type userStoreView struct{ *fakeWorld }

func (v userStoreView) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return v.GetByIDUser(ctx, id)
}

type outboxStoreView struct{ *fakeWorld }

func (v outboxStoreView) Create(ctx context.Context, tx *gorm.DB, msg *model.OutboxMessage) error {
	return v.CreateOutbox(ctx, tx, msg)
}

// ---- RequestGuard ----

type fakeGuard struct {
	mu       sync.Mutex
	reserved map[string]string
	counts   map[int64]int64
	limit    int64
}

func newFakeGuard(limit int64) *fakeGuard {
	return &fakeGuard{
		reserved: make(map[string]string),
		counts:   make(map[int64]int64),
		limit:    limit,
	}
}

func (g *fakeGuard) Reserve(ctx context.Context, key, owner string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if key == "" {
		return guard.ErrMissingIdempotencyKey
	}
	if _, ok := g.reserved[key]; ok {
		return guard.ErrDuplicateRequest
	}
	g.reserved[key] = owner
	return nil
}

func (g *fakeGuard) Release(ctx context.Context, key, owner string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.reserved[key] == owner {
		delete(g.reserved, key)
	}
	return nil
}

func (g *fakeGuard) Allow(ctx context.Context, actorID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.counts[actorID]++
	if g.counts[actorID] > g.limit {
		return guard.ErrRateLimited
	}
	return nil
}

func (g *fakeGuard) holds(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, ok := g.reserved[key]
	return ok
}

// ---- test scaffolding ----

const platformCardNumber = "7777000000000018"

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Business.PlatformCard = platformCardNumber
	cfg.Business.SubscriptionPrice = 85000
	cfg.Business.RateLimitPerMinute = 30
	cfg.Business.IdempotencyTTLHours = 24
	cfg.Business.RenewalHour = 3
	cfg.Business.RenewalBatchSize = 100
	cfg.Business.CardExpiryDays = 1826
	cfg.Business.CardRenewalDays = 1286
	cfg.Business.MaxCardsPerUser = 5
	cfg.Kafka.Topic.TransactionCompleted = "wallet.transaction.completed"
	cfg.Kafka.Topic.SubscriptionLapsed = "wallet.subscription.lapsed"
	return cfg
}

// addUser and addCard seed the world directly, bypassing the services.

func (w *fakeWorld) addUser(id int64, role string) *model.User {
	w.mu.Lock()
	defer w.mu.Unlock()

	user := &model.User{ID: id, FullName: "user", PhoneNumber: "099", Role: role}
	w.users[id] = user
	return user
}

func (w *fakeWorld) addCard(userID int64, number string, balance int64, status string) *model.Card {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.nextCardID++
	card := &model.Card{
		ID:        w.nextCardID,
		UserID:    userID,
		Number:    number,
		Balance:   decimal.NewFromInt(balance),
		Status:    status,
		ExpiresAt: time.Now().AddDate(5, 0, 0),
	}
	w.cards[card.ID] = card
	return card
}

func (w *fakeWorld) setExpired(id int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.cards[id].ExpiresAt = time.Now().AddDate(0, 0, -1)
}

func (w *fakeWorld) lockedOrders() [][]int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	return append([][]int64(nil), w.lockOrders...)
}

func (w *fakeWorld) cardBalance(id int64) decimal.Decimal {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.cards[id].Balance
}

func (w *fakeWorld) transactionCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.transactions)
}
