package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess      = 0
	CodeParamError   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeServerError  = 500
)

// Business error codes, one per entry in the wallet error taxonomy.
const (
	CodeCardNotFound          = 1001
	CodeInvalidCardState      = 1002
	CodeSelfTransfer          = 1003
	CodeInsufficientFunds     = 1004
	CodeInvalidAmount         = 1005
	CodeDuplicateRequest      = 1006
	CodeRateLimited           = 1007
	CodeLockTimeout           = 1008
	CodeMissingIdempotencyKey = 1009
	CodeAlreadySubscribed     = 1010
	CodeCardLimitReached      = 1011
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}
