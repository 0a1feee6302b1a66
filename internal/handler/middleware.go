package handler

import (
	"log"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/haniyfdev/Chontak-wallet/internal/model"
	"github.com/haniyfdev/Chontak-wallet/internal/service"
	"github.com/haniyfdev/Chontak-wallet/pkg/response"
)

const actorContextKey = "actor"

func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if query != "" {
			path = path + "?" + query
		}

		log.Printf("[HTTP] %d | %13v | %15s | %-7s %s",
			status,
			latency,
			c.ClientIP(),
			c.Request.Method,
			path,
		)
	}
}

func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[PANIC] %v", err)
				c.AbortWithStatusJSON(500, gin.H{
					"code":    500,
					"message": "internal server error",
				})
			}
		}()
		c.Next()
	}
}

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, Idempotency-Key, X-User-ID, X-User-Role")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// IdentityMiddleware resolves the caller from the identity headers the edge
// gateway injects after authenticating the session. Requests that arrive
// without them never reach a handler.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
		if err != nil || userID <= 0 {
			response.Error(c, response.CodeUnauthorized, "missing or invalid identity")
			c.Abort()
			return
		}

		tier := c.GetHeader("X-User-Role")
		if !model.ValidTier(tier) {
			response.Error(c, response.CodeUnauthorized, "missing or invalid role")
			c.Abort()
			return
		}

		c.Set(actorContextKey, service.Actor{UserID: userID, Tier: tier})
		c.Next()
	}
}

// AdminOnlyMiddleware restricts a route group to platform operators.
func AdminOnlyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actorFrom(c).Tier != model.TierPlatform {
			response.Error(c, response.CodeForbidden, "platform role required")
			c.Abort()
			return
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) service.Actor {
	actor, _ := c.Get(actorContextKey)
	return actor.(service.Actor)
}
