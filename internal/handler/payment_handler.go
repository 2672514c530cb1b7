package handler

import (
	"strconv"
	"strings"

	"crmbilling/internal/model"
	"crmbilling/internal/service"
	"crmbilling/pkg/response"

	"github.com/gin-gonic/gin"
)

type SubscribeRequest struct {
	Plan          string `json:"plan" binding:"required"`
	PaymentMethod string `json:"paymentMethod" binding:"required"`
	RequestID     string `json:"requestId" binding:"omitempty,max=64"`
}

func (r SubscribeRequest) command(userID int64) (service.SubscribeCommand, error) {
	plan, ok := model.ParsePlan(r.Plan)
	if !ok {
		return service.SubscribeCommand{}, service.ErrInvalidPlanOrMethod
	}
	return service.SubscribeCommand{
		UserID:        userID,
		Plan:          plan,
		PaymentMethod: strings.ToLower(strings.TrimSpace(r.PaymentMethod)),
		RequestID:     strings.TrimSpace(r.RequestID),
	}, nil
}

// Subscribe buys a plan from the wallet or starts a Kaspi payment.
// POST /api/v1/payments/subscribe
func (h *Handler) Subscribe(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req SubscribeRequest
	if !bindJSON(c, &req) {
		return
	}
	cmd, err := req.command(user.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	res, err := h.payments.Subscribe(c.Request.Context(), cmd)
	if err != nil {
		h.writeError(c, err)
		return
	}

	switch {
	case res.Replayed:
		response.Success(c, gin.H{
			"success":  true,
			"replayed": true,
			"payment":  res.Payment,
		})
	case res.Wallet != nil:
		response.Success(c, gin.H{
			"success":               true,
			"payment":               res.Payment,
			"walletTransaction":     res.Wallet.Transaction,
			"newBalance":            res.Wallet.NewBalance,
			"subscriptionExpiresAt": res.Wallet.ExpiresAt,
			"message":               "Subscription activated",
		})
	default:
		response.Success(c, gin.H{
			"success":    true,
			"payment":    res.Payment,
			"paymentUrl": res.External.PaymentURL,
			"orderId":    res.External.OrderID,
			"message":    "Order created, redirecting to payment",
		})
	}
}

type CreateOrderRequest struct {
	Plan   string `json:"plan" binding:"required"`
	Amount int64  `json:"amount"`
}

// CreateKaspiOrder starts a Kaspi payment; amount defaults to the plan price.
// POST /api/v1/payments/kaspi/create-order
func (h *Handler) CreateKaspiOrder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	plan, ok := model.ParsePlan(req.Plan)
	if !ok {
		h.writeError(c, service.ErrInvalidPlanOrMethod)
		return
	}
	if req.Amount < 0 {
		h.writeError(c, service.ErrInvalidAmount)
		return
	}

	res, err := h.payments.CreateKaspiOrder(c.Request.Context(), service.CreateOrderCommand{
		UserID: user.ID,
		Plan:   plan,
		Amount: req.Amount,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"success":    true,
		"paymentUrl": res.PaymentURL,
		"orderId":    res.OrderID,
		"payment":    res.Payment,
	})
}

// PaymentHistory GET /api/v1/payments/history?limit=&offset=
func (h *Handler) PaymentHistory(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)

	payments, total, err := h.payments.ListPayments(c.Request.Context(), user.ID, limit, offset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if payments == nil {
		payments = []*model.Payment{}
	}

	response.Success(c, gin.H{
		"payments": payments,
		"total":    total,
	})
}

// GetPayment GET /api/v1/payments/:id
func (h *Handler) GetPayment(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	paymentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "Invalid payment id")
		return
	}

	payment, err := h.payments.GetPayment(c.Request.Context(), paymentID, user.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, payment)
}
