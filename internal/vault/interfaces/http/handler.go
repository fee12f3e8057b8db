// Package http 金库服务接口
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/stakingyield/internal/vault/application"
	"github.com/wyfcoding/stakingyield/internal/vault/domain"
)

// Handler 按资产类别路由到对应金库实例。
// 闪电贷需要同步回调，只作为进程内 API 暴露，不走 HTTP。
type Handler struct {
	vaults map[string]*application.VaultService
}

func NewHandler(vaults map[string]*application.VaultService) *Handler {
	return &Handler{vaults: vaults}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/vault/:class")
	{
		g.POST("/initialize", h.Initialize)
		g.POST("/claim", h.ClaimExternalYield)
		g.POST("/accrue", h.Accrue)

		g.POST("/admin/protocol-fee", h.SetProtocolFeeRate)
		g.POST("/admin/flash-loan-fee", h.SetFlashLoanFee)
		g.POST("/admin/revenue-pool", h.SetRevenuePool)
		g.POST("/admin/stake-manager", h.SetStakeManager)
	}
}

func (h *Handler) vault(c *gin.Context) (*application.VaultService, bool) {
	vault, ok := h.vaults[c.Param("class")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown asset class"})
		return nil, false
	}
	return vault, true
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrAlreadyInitialized):
		return http.StatusConflict
	case errors.Is(err, domain.ErrReentrantCall):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotInitialized),
		errors.Is(err, domain.ErrZeroInput),
		errors.Is(err, domain.ErrFeeRateOverflow),
		errors.Is(err, domain.ErrAccrualUnsupported),
		errors.Is(err, domain.ErrFlashLoanRepayFailed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type InitializeReq struct {
	Caller              string `json:"caller" binding:"required"`
	VaultAccount        string `json:"vault_account" binding:"required"`
	StakeManagerAccount string `json:"stake_manager_account" binding:"required"`
	RevenuePool         string `json:"revenue_pool" binding:"required"`
}

func (h *Handler) Initialize(c *gin.Context) {
	vault, ok := h.vault(c)
	if !ok {
		return
	}
	var req InitializeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := vault.Initialize(c.Request.Context(), application.InitializeCommand{
		Caller:              req.Caller,
		VaultAccount:        req.VaultAccount,
		StakeManagerAccount: req.StakeManagerAccount,
		RevenuePool:         req.RevenuePool,
	})
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) ClaimExternalYield(c *gin.Context) {
	vault, ok := h.vault(c)
	if !ok {
		return
	}
	net, err := vault.ClaimExternalYield(c.Request.Context())
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"net": net})
}

type AccrueReq struct {
	Caller string `json:"caller" binding:"required"`
	Holder string `json:"holder" binding:"required"`
	Amount string `json:"amount" binding:"required"`
	Source string `json:"source"`
}

// Accrue 登记一笔应计外部收益（运维/模拟入口），仅限金库管理员
func (h *Handler) Accrue(c *gin.Context) {
	vault, ok := h.vault(c)
	if !ok {
		return
	}
	var req AccrueReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}
	err = vault.RecordAccrual(c.Request.Context(), application.RecordAccrualCommand{
		Caller: req.Caller,
		Holder: req.Holder,
		Source: req.Source,
		Amount: amount,
	})
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

type ProtocolFeeReq struct {
	Caller string `json:"caller" binding:"required"`
	Rate   uint32 `json:"rate"`
}

func (h *Handler) SetProtocolFeeRate(c *gin.Context) {
	vault, ok := h.vault(c)
	if !ok {
		return
	}
	var req ProtocolFeeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := vault.SetProtocolFeeRate(c.Request.Context(), application.SetProtocolFeeRateCommand{Caller: req.Caller, Rate: req.Rate})
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

type FlashLoanFeeReq struct {
	Caller       string `json:"caller" binding:"required"`
	ProviderRate uint32 `json:"provider_rate"`
	ProtocolRate uint32 `json:"protocol_rate"`
}

func (h *Handler) SetFlashLoanFee(c *gin.Context) {
	vault, ok := h.vault(c)
	if !ok {
		return
	}
	var req FlashLoanFeeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := vault.SetFlashLoanFee(c.Request.Context(), application.SetFlashLoanFeeCommand{
		Caller:       req.Caller,
		ProviderRate: req.ProviderRate,
		ProtocolRate: req.ProtocolRate,
	})
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

type AccountReq struct {
	Caller  string `json:"caller" binding:"required"`
	Account string `json:"account" binding:"required"`
}

func (h *Handler) SetRevenuePool(c *gin.Context) {
	vault, ok := h.vault(c)
	if !ok {
		return
	}
	var req AccountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := vault.SetRevenuePool(c.Request.Context(), application.SetRevenuePoolCommand{Caller: req.Caller, Account: req.Account})
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) SetStakeManager(c *gin.Context) {
	vault, ok := h.vault(c)
	if !ok {
		return
	}
	var req AccountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := vault.SetStakeManager(c.Request.Context(), application.SetStakeManagerCommand{Caller: req.Caller, Account: req.Account})
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}
