package handler

import (
	"crypto/subtle"
	"net/http"

	"crmbilling/pkg/response"

	"github.com/gin-gonic/gin"
)

const AdminTokenHeader = "X-Admin-Token"

// AdminTokenMiddleware guards the maintenance endpoints. With no token
// configured they are switched off.
func AdminTokenMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			response.Error(c, http.StatusForbidden, response.CodeForbidden, "Admin API disabled")
			return
		}
		got := c.GetHeader(AdminTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			response.Unauthorized(c, "Invalid admin token")
			return
		}
		c.Next()
	}
}

// RunSweep POST /api/v1/admin/subscriptions/sweep
func (h *Handler) RunSweep(c *gin.Context) {
	res, err := h.subscriptions.Sweep(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, res)
}

// RunExpiryCheck POST /api/v1/admin/subscriptions/expiry-check
func (h *Handler) RunExpiryCheck(c *gin.Context) {
	res, err := h.subscriptions.ExpiryCheck(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, res)
}
