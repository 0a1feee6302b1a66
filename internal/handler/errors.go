package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/haniyfdev/Chontak-wallet/internal/guard"
	"github.com/haniyfdev/Chontak-wallet/internal/policy"
	"github.com/haniyfdev/Chontak-wallet/internal/repository"
	"github.com/haniyfdev/Chontak-wallet/internal/service"
	"github.com/haniyfdev/Chontak-wallet/pkg/response"
)

// renderError maps a service-layer failure to its wire code. Unrecognized
// errors fall through as a plain server error so internals never leak.
func renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrCardNotFound):
		response.BusinessError(c, response.CodeCardNotFound, err.Error())
	case errors.Is(err, repository.ErrInvalidCardStatus), errors.Is(err, service.ErrCardNotActive):
		response.BusinessError(c, response.CodeInvalidCardState, err.Error())
	case errors.Is(err, service.ErrSelfTransfer):
		response.BusinessError(c, response.CodeSelfTransfer, err.Error())
	case errors.Is(err, service.ErrInsufficientFunds):
		response.BusinessError(c, response.CodeInsufficientFunds, err.Error())
	case errors.Is(err, policy.ErrInvalidAmount):
		response.BusinessError(c, response.CodeInvalidAmount, err.Error())
	case errors.Is(err, guard.ErrDuplicateRequest):
		response.BusinessError(c, response.CodeDuplicateRequest, err.Error())
	case errors.Is(err, guard.ErrRateLimited):
		response.BusinessError(c, response.CodeRateLimited, err.Error())
	case errors.Is(err, guard.ErrMissingIdempotencyKey):
		response.BusinessError(c, response.CodeMissingIdempotencyKey, err.Error())
	case errors.Is(err, repository.ErrLockTimeout):
		response.BusinessError(c, response.CodeLockTimeout, err.Error())
	case errors.Is(err, service.ErrAlreadySubscribed):
		response.BusinessError(c, response.CodeAlreadySubscribed, err.Error())
	case errors.Is(err, service.ErrCardLimitReached):
		response.BusinessError(c, response.CodeCardLimitReached, err.Error())
	case errors.Is(err, repository.ErrTransactionNotFound),
		errors.Is(err, repository.ErrSubscriptionNotFound),
		errors.Is(err, repository.ErrOutboxMessageNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		response.Error(c, response.CodeNotFound, err.Error())
	case errors.Is(err, policy.ErrUnknownTier):
		response.ParamError(c, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}
