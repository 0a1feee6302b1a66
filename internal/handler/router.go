package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"github.com/haniyfdev/Chontak-wallet/internal/config"
)

// SetupRouter wires the HTTP surface. Everything under /api/v1 requires the
// identity headers; the admin group additionally requires the platform role.
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(db, rdb, cfg)

	api := r.Group("/api/v1")
	api.Use(IdentityMiddleware())
	{
		card := api.Group("/card")
		{
			card.POST("/create", h.CreateCard)
			card.GET("/detail", h.GetCard)
			card.GET("/list", h.ListCards)
			card.POST("/freeze", h.FreezeCard)
			card.POST("/unfreeze", h.UnfreezeCard)
			card.POST("/renew", h.RenewCard)
			card.POST("/close", h.CloseCard)
		}

		transfer := api.Group("/transfer")
		{
			transfer.POST("/execute", h.Transfer)
		}

		transaction := api.Group("/transaction")
		{
			transaction.GET("/list", h.ListTransactions)
			transaction.GET("/detail", h.GetTransaction)
		}

		subscription := api.Group("/subscription")
		{
			subscription.POST("/create", h.Subscribe)
			subscription.GET("/detail", h.GetSubscription)
		}

		admin := api.Group("/admin")
		admin.Use(AdminOnlyMiddleware())
		{
			admin.POST("/deposit", h.Deposit)
			admin.GET("/platform-card", h.GetPlatformCard)
			admin.POST("/card/status", h.SetCardStatus)
			admin.GET("/audit", h.Audit)
			admin.GET("/outbox/failed", h.ListFailedOutbox)
			admin.POST("/outbox/requeue", h.RequeueOutbox)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
