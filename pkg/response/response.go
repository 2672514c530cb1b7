package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Machine-readable error codes returned in the "code" field.
const (
	CodeBadRequest        = "BAD_REQUEST"
	CodeValidation        = "VALIDATION_FAILED"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeInvalidPlan       = "INVALID_PLAN_OR_METHOD"
	CodeInvalidAmount     = "INVALID_AMOUNT"
	CodeGatewayError      = "GATEWAY_UNAVAILABLE"
	CodeInvalidSignature  = "INVALID_SIGNATURE"
	CodeTooManyRequests   = "RATE_LIMITED"
	CodeBusy              = "PAYMENT_IN_PROGRESS"
	CodeServerError       = "INTERNAL"
)

type ErrorBody struct {
	Error   string      `json:"error"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

func Error(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorBody{
		Error: message,
		Code:  code,
	})
}

func ErrorWithDetails(c *gin.Context, status int, code, message string, details interface{}) {
	c.AbortWithStatusJSON(status, ErrorBody{
		Error:   message,
		Code:    code,
		Details: details,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, CodeBadRequest, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, CodeUnauthorized, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, CodeNotFound, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, CodeServerError, message)
}
