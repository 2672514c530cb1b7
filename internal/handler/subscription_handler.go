package handler

import (
	"crmbilling/pkg/response"

	"github.com/gin-gonic/gin"
)

type AutoRenewRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// GetSubscription GET /api/v1/subscription
func (h *Handler) GetSubscription(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	info, err := h.subscriptions.Info(c.Request.Context(), user.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, info)
}

// SetAutoRenew POST /api/v1/subscription/auto-renew
func (h *Handler) SetAutoRenew(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req AutoRenewRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.subscriptions.SetAutoRenew(c.Request.Context(), user.ID, *req.Enabled); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"success":   true,
		"autoRenew": *req.Enabled,
	})
}
