package handler

import (
	"context"
	"fmt"

	"crmbilling/internal/model"
	"crmbilling/internal/service"
	"crmbilling/pkg/response"

	"github.com/gin-gonic/gin"
)

type AmountRequest struct {
	Amount int64 `json:"amount"`
}

type CurrencyRequest struct {
	Currency string `json:"currency" binding:"required"`
}

// GetWallet GET /api/v1/wallet
func (h *Handler) GetWallet(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	wallet, err := h.wallets.Get(c.Request.Context(), user.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, walletResponse(wallet))
}

// TopUp POST /api/v1/wallet/add
func (h *Handler) TopUp(c *gin.Context) {
	h.walletOperation(c, h.wallets.TopUp, "Wallet topped up by %d %s")
}

// Withdraw POST /api/v1/wallet/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	h.walletOperation(c, h.wallets.Withdraw, "Withdrew %d %s from wallet")
}

type walletOp func(ctx context.Context, cmd service.WalletAmountCommand) (*service.WalletOperationResult, error)

func (h *Handler) walletOperation(c *gin.Context, op walletOp, message string) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req AmountRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := op(c.Request.Context(), service.WalletAmountCommand{UserID: user.ID, Amount: req.Amount})
	if err != nil {
		h.writeError(c, err)
		return
	}

	body := walletResponse(res.Wallet)
	body.Message = fmt.Sprintf(message, req.Amount, res.Wallet.Currency)
	body.Transaction = res.Transaction
	response.Success(c, body)
}

// UpdateCurrency PUT /api/v1/wallet/currency
func (h *Handler) UpdateCurrency(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req CurrencyRequest
	if !bindJSON(c, &req) {
		return
	}

	wallet, err := h.wallets.UpdateCurrency(c.Request.Context(), user.ID, req.Currency)
	if err != nil {
		h.writeError(c, err)
		return
	}
	body := walletResponse(wallet)
	body.Message = "Wallet currency updated"
	response.Success(c, body)
}

// WalletTransactions GET /api/v1/wallet/transactions?limit=&offset=
func (h *Handler) WalletTransactions(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)

	list, total, err := h.wallets.ListTransactions(c.Request.Context(), user.ID, limit, offset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if list == nil {
		list = []*model.WalletTransaction{}
	}
	response.Success(c, gin.H{
		"transactions": list,
		"total":        total,
	})
}
