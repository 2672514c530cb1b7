package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"crmbilling/internal/gateway/kaspi"
	"crmbilling/internal/metrics"
	"crmbilling/internal/service"
	"crmbilling/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SignatureHeader carries an HMAC of the raw request body. Without it the
// signature field of the body is checked against the canonical payload.
const SignatureHeader = "X-Kaspi-Signature"

// KaspiWebhook applies a Kaspi status callback.
// POST /api/v1/payments/kaspi/webhook
//
// Once the request is authenticated the answer is always 200, so Kaspi does
// not redeliver; success=false reports a reconciliation failure.
func (h *Handler) KaspiWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		metrics.RecordWebhook("malformed")
		response.ParamError(c, "Unreadable webhook body")
		return
	}

	var payload kaspi.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.RecordWebhook("malformed")
		response.ParamError(c, "Malformed webhook body")
		return
	}
	if payload.OrderID == "" || payload.Status == "" {
		metrics.RecordWebhook("malformed")
		response.ParamError(c, "Missing required fields: orderId, status")
		return
	}

	if err := h.verifyWebhook(c, body, payload); err != nil {
		metrics.RecordWebhook("rejected")
		h.logger.Warn("kaspi webhook rejected",
			zap.String("order_id", payload.OrderID),
			zap.String("client_ip", c.ClientIP()),
			zap.Error(err))
		response.Error(c, http.StatusUnauthorized, response.CodeInvalidSignature, "Invalid webhook signature")
		return
	}

	res, err := h.payments.ReconcileWebhook(c.Request.Context(), service.ReconcileCommand{
		OrderID:           payload.OrderID,
		Status:            payload.Status,
		ExternalPaymentID: payload.PaymentID,
	})
	if err != nil {
		metrics.RecordWebhook("error")
		h.logger.Error("kaspi webhook reconciliation failed",
			zap.String("order_id", payload.OrderID),
			zap.String("status", payload.Status),
			zap.Error(err))
		msg := "Webhook processing failed"
		if errors.Is(err, service.ErrPaymentNotFound) {
			msg = "Payment not found"
		}
		c.JSON(http.StatusOK, gin.H{"success": false, "error": msg})
		return
	}

	switch {
	case res.Changed:
		metrics.RecordWebhook("applied")
	case res.Outcome == kaspi.StatusUnknown:
		metrics.RecordWebhook("ignored")
	default:
		metrics.RecordWebhook("duplicate")
	}

	response.Success(c, gin.H{
		"success":   true,
		"message":   "Webhook processed",
		"paymentId": res.Payment.ID,
		"status":    res.Payment.Status,
		"changed":   res.Changed,
	})
}

func (h *Handler) verifyWebhook(c *gin.Context, body []byte, payload kaspi.WebhookPayload) error {
	if sig := c.GetHeader(SignatureHeader); sig != "" {
		return h.verifier.Verify(body, sig)
	}
	return h.verifier.Verify(payload.SignedMessage(), payload.Signature)
}
