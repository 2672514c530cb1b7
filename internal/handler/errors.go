package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"crmbilling/internal/auth"
	"crmbilling/internal/model"
	"crmbilling/internal/service"
	"crmbilling/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ValidationError is one rejected request field.
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

var registerOnce sync.Once

// registerValidation makes validation errors report json field names.
func registerValidation() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "gt":
		return fe.Field() + " must be greater than " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}

// bindJSON decodes the body into req and answers 400 itself on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]ValidationError, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, ValidationError{
				Field:   fe.Field(),
				Tag:     fe.Tag(),
				Message: validationMessage(fe),
			})
		}
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeValidation, "Validation failed", details)
		return false
	}
	response.ParamError(c, "Invalid request body")
	return false
}

// writeError maps a service error to its HTTP status and code.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInsufficientFunds):
		response.Error(c, http.StatusBadRequest, response.CodeInsufficientFunds, "Insufficient funds in wallet")
	case errors.Is(err, service.ErrInvalidPlanOrMethod):
		response.Error(c, http.StatusBadRequest, response.CodeInvalidPlan, "Invalid plan or payment method")
	case errors.Is(err, service.ErrInvalidAmount):
		response.Error(c, http.StatusBadRequest, response.CodeInvalidAmount, "Amount must be a positive number")
	case errors.Is(err, service.ErrInvalidCurrency):
		response.ParamError(c, "Currency must be 1-10 characters")
	case errors.Is(err, service.ErrUnauthorized):
		response.Unauthorized(c, "User email not provided")
	case errors.Is(err, service.ErrPaymentNotFound):
		response.NotFound(c, "Payment not found")
	case errors.Is(err, service.ErrWalletNotFound):
		response.NotFound(c, "Wallet not found")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, "User not found")
	case errors.Is(err, service.ErrBusy):
		response.Error(c, http.StatusConflict, response.CodeBusy, "Another payment is in progress")
	case errors.Is(err, service.ErrGatewayUnavailable):
		h.logger.Error("payment gateway unavailable", zap.String("path", c.FullPath()), zap.Error(err))
		response.Error(c, http.StatusBadGateway, response.CodeGatewayError, "Payment gateway unavailable")
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		if h.exposeErrors {
			response.ErrorWithDetails(c, http.StatusInternalServerError, response.CodeServerError, "Internal server error", err.Error())
			return
		}
		response.ServerError(c, "Internal server error")
	}
}

func currentUser(c *gin.Context) (*model.User, bool) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "User email not provided")
	}
	return user, ok
}

// pagination reads limit and offset; bad values fall back to zero and the
// service applies its defaults.
func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.Query("limit"))
	offset, _ = strconv.Atoi(c.Query("offset"))
	return limit, offset
}
