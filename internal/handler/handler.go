package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/haniyfdev/Chontak-wallet/internal/config"
	"github.com/haniyfdev/Chontak-wallet/internal/guard"
	"github.com/haniyfdev/Chontak-wallet/internal/service"
	"github.com/haniyfdev/Chontak-wallet/pkg/response"
)

// Handler carries every service the HTTP surface dispatches into.
type Handler struct {
	cardService         *service.CardService
	transferService     *service.TransferService
	transactionService  *service.TransactionService
	subscriptionService *service.SubscriptionService
	auditService        *service.AuditService
	outboxService       *service.OutboxService
}

func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	g := guard.New(rdb, cfg.Business.IdempotencyTTL(), time.Minute, cfg.Business.RateLimitPerMinute)
	return &Handler{
		cardService:         service.NewCardService(db, cfg),
		transferService:     service.NewTransferService(db, g, cfg),
		transactionService:  service.NewTransactionService(db),
		subscriptionService: service.NewSubscriptionService(db, cfg),
		auditService:        service.NewAuditService(db),
		outboxService:       service.NewOutboxService(db),
	}
}

// ============================================================
// Card endpoints
// ============================================================

// CreateCard issues a new card for the caller.
// POST /api/v1/card/create
func (h *Handler) CreateCard(c *gin.Context) {
	card, err := h.cardService.Create(c.Request.Context(), actorFrom(c))
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, card)
}

// GetCard returns one of the caller's cards.
// GET /api/v1/card/detail?card_id=xxx
func (h *Handler) GetCard(c *gin.Context) {
	cardID, err := strconv.ParseInt(c.Query("card_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "invalid card_id")
		return
	}

	card, err := h.cardService.Get(c.Request.Context(), actorFrom(c), cardID)
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, card)
}

// ListCards returns all of the caller's cards.
// GET /api/v1/card/list
func (h *Handler) ListCards(c *gin.Context) {
	cards, err := h.cardService.List(c.Request.Context(), actorFrom(c))
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, gin.H{"list": cards, "total": len(cards)})
}

type cardActionRequest struct {
	CardID int64 `json:"card_id" binding:"required"`
}

// FreezeCard suspends an active card.
// POST /api/v1/card/freeze
func (h *Handler) FreezeCard(c *gin.Context) {
	h.cardAction(c, h.cardService.Freeze)
}

// UnfreezeCard reactivates a frozen card.
// POST /api/v1/card/unfreeze
func (h *Handler) UnfreezeCard(c *gin.Context) {
	h.cardAction(c, h.cardService.Unfreeze)
}

// CloseCard retires a card permanently.
// POST /api/v1/card/close
func (h *Handler) CloseCard(c *gin.Context) {
	h.cardAction(c, h.cardService.Close)
}

func (h *Handler) cardAction(c *gin.Context, action func(ctx context.Context, actor service.Actor, cardID int64) error) {
	var req cardActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	if err := action(c.Request.Context(), actorFrom(c), req.CardID); err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, gin.H{"card_id": req.CardID})
}

// RenewCard reactivates an expired card and extends its expiry date.
// POST /api/v1/card/renew
func (h *Handler) RenewCard(c *gin.Context) {
	var req cardActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	card, err := h.cardService.Renew(c.Request.Context(), actorFrom(c), req.CardID)
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, card)
}

// ============================================================
// Transfer endpoints
// ============================================================

type transferRequest struct {
	FromCardID   int64  `json:"from_card_id" binding:"required"`
	ToCardNumber string `json:"to_card_number" binding:"required"`
	Amount       string `json:"amount" binding:"required"`
	Description  string `json:"description"`
}

// Transfer moves money between cards. The Idempotency-Key header is
// required; resubmitting the same key is rejected rather than replayed.
// POST /api/v1/transfer/execute
func (h *Handler) Transfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ParamError(c, "invalid amount: "+req.Amount)
		return
	}

	txn, err := h.transferService.Transfer(c.Request.Context(), &service.TransferRequest{
		Actor:          actorFrom(c),
		FromCardID:     req.FromCardID,
		ToCardNumber:   req.ToCardNumber,
		Amount:         amount,
		Description:    req.Description,
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, txn)
}

// ============================================================
// Transaction endpoints
// ============================================================

// ListTransactions pages through the caller's history, newest first.
// GET /api/v1/transaction/list?page=1&page_size=10
func (h *Handler) ListTransactions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	transactions, total, err := h.transactionService.List(c.Request.Context(), actorFrom(c), page, pageSize)
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      transactions,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetTransaction returns one transaction visible to the caller.
// GET /api/v1/transaction/detail?id=PBC-xxx
func (h *Handler) GetTransaction(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		response.ParamError(c, "id is required")
		return
	}

	txn, err := h.transactionService.Get(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, txn)
}

// ============================================================
// Subscription endpoints
// ============================================================

// Subscribe takes the first premium charge off the given card.
// POST /api/v1/subscription/create
func (h *Handler) Subscribe(c *gin.Context) {
	var req cardActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	sub, err := h.subscriptionService.Subscribe(c.Request.Context(), actorFrom(c), req.CardID)
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, sub)
}

// GetSubscription returns the caller's active subscription on a card.
// GET /api/v1/subscription/detail?card_id=xxx
func (h *Handler) GetSubscription(c *gin.Context) {
	cardID, err := strconv.ParseInt(c.Query("card_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "invalid card_id")
		return
	}

	sub, err := h.subscriptionService.GetActive(c.Request.Context(), actorFrom(c), cardID)
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, sub)
}

// ============================================================
// Admin endpoints
// ============================================================

type depositRequest struct {
	ToCardNumber string `json:"to_card_number" binding:"required"`
	Amount       string `json:"amount" binding:"required"`
	Description  string `json:"description"`
}

// Deposit credits a card from the platform.
// POST /api/v1/admin/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ParamError(c, "invalid amount: "+req.Amount)
		return
	}

	txn, err := h.transferService.Deposit(c.Request.Context(), &service.DepositRequest{
		Actor:        actorFrom(c),
		ToCardNumber: req.ToCardNumber,
		Amount:       amount,
		Description:  req.Description,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, txn)
}

// GetPlatformCard returns the platform card.
// GET /api/v1/admin/platform-card
func (h *Handler) GetPlatformCard(c *gin.Context) {
	card, err := h.cardService.PlatformCard(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, card)
}

type setStatusRequest struct {
	CardID int64  `json:"card_id" binding:"required"`
	Status string `json:"status" binding:"required"`
}

// SetCardStatus drives the card state machine for any card, skipping the
// ownership check.
// POST /api/v1/admin/card/status
func (h *Handler) SetCardStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	if err := h.cardService.SetStatus(c.Request.Context(), req.CardID, req.Status); err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, gin.H{"card_id": req.CardID, "status": req.Status})
}

// ListFailedOutbox returns events that exhausted their delivery retries.
// GET /api/v1/admin/outbox/failed?limit=50
func (h *Handler) ListFailedOutbox(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	messages, err := h.outboxService.ListFailed(c.Request.Context(), limit)
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, gin.H{"list": messages, "total": len(messages)})
}

type requeueOutboxRequest struct {
	ID int64 `json:"id" binding:"required"`
}

// RequeueOutbox puts a dead-lettered event back on the queue.
// POST /api/v1/admin/outbox/requeue
func (h *Handler) RequeueOutbox(c *gin.Context) {
	var req requeueOutboxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	if err := h.outboxService.Requeue(c.Request.Context(), req.ID); err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, gin.H{"id": req.ID})
}

// Audit reconciles stored balances against the transaction ledger, for one
// card or all of them.
// GET /api/v1/admin/audit[?card_id=xxx]
func (h *Handler) Audit(c *gin.Context) {
	if cardIDStr := c.Query("card_id"); cardIDStr != "" {
		cardID, err := strconv.ParseInt(cardIDStr, 10, 64)
		if err != nil {
			response.ParamError(c, "invalid card_id")
			return
		}

		report, err := h.auditService.VerifyCard(c.Request.Context(), cardID)
		if err != nil {
			renderError(c, err)
			return
		}
		response.Success(c, report)
		return
	}

	reports, err := h.auditService.VerifyAll(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, gin.H{"list": reports, "total": len(reports)})
}
