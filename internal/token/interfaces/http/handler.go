// Package http 代币账本接口
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/stakingyield/internal/token/application"
	"github.com/wyfcoding/stakingyield/internal/token/domain"
)

type Handler struct {
	ledger *application.LedgerService
}

func NewHandler(ledger *application.LedgerService) *Handler {
	return &Handler{ledger: ledger}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/tokens/:denom")
	{
		g.GET("/supply", h.TotalSupply)
		g.GET("/balances/:account", h.BalanceOf)
		g.GET("/allowances/:owner/:spender", h.Allowance)
		g.POST("/transfer", h.Transfer)
		g.POST("/approve", h.Approve)
	}
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrTokenNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrTokenExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrInsufficientAllowance):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) TotalSupply(c *gin.Context) {
	supply, err := h.ledger.TotalSupply(c.Request.Context(), c.Param("denom"))
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"total_supply": supply})
}

func (h *Handler) BalanceOf(c *gin.Context) {
	balance, err := h.ledger.BalanceOf(c.Request.Context(), c.Param("denom"), c.Param("account"))
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

func (h *Handler) Allowance(c *gin.Context) {
	allowance, err := h.ledger.Allowance(c.Request.Context(), c.Param("denom"), c.Param("owner"), c.Param("spender"))
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"allowance": allowance})
}

type TransferReq struct {
	From   string `json:"from" binding:"required"`
	To     string `json:"to" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

func (h *Handler) Transfer(c *gin.Context) {
	var req TransferReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}
	if err := h.ledger.Transfer(c.Request.Context(), c.Param("denom"), req.From, req.To, amount); err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

type ApproveReq struct {
	Owner   string `json:"owner" binding:"required"`
	Spender string `json:"spender" binding:"required"`
	Amount  string `json:"amount" binding:"required"`
}

func (h *Handler) Approve(c *gin.Context) {
	var req ApproveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}
	if err := h.ledger.Approve(c.Request.Context(), c.Param("denom"), req.Owner, req.Spender, amount); err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}
