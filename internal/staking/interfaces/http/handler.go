// Package http 质押服务接口
package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/stakingyield/internal/staking/application"
	"github.com/wyfcoding/stakingyield/internal/staking/domain"
)

// Handler 按资产类别路由到对应引擎实例
type Handler struct {
	engines map[string]*application.Engine
	query   *application.QueryService
}

func NewHandler(engines map[string]*application.Engine, query *application.QueryService) *Handler {
	return &Handler{engines: engines, query: query}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/staking/:class")
	{
		g.POST("/initialize", h.Initialize)
		g.POST("/stake", h.Stake)
		g.POST("/unstake", h.Unstake)
		g.POST("/extend", h.ExtendLockTime)
		g.POST("/withdraw-yield", h.WithdrawYield)

		g.POST("/admin/min-lockup-days", h.SetMinLockupDays)
		g.POST("/admin/max-lockup-days", h.SetMaxLockupDays)
		g.POST("/admin/force-unstake-fee", h.SetForceUnstakeFee)
		g.POST("/admin/out-vault", h.SetOutVault)

		g.GET("/pool", h.GetPool)
		g.GET("/positions/:id", h.GetPosition)
		g.GET("/positions", h.ListPositions)
		g.GET("/invariant", h.CheckInvariant)
	}
}

func (h *Handler) engine(c *gin.Context) (*application.Engine, bool) {
	engine, ok := h.engines[c.Param("class")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown asset class"})
		return nil, false
	}
	return engine, true
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrPositionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrAlreadyInitialized):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotInitialized),
		errors.Is(err, domain.ErrMinStakeInsufficient),
		errors.Is(err, domain.ErrInvalidLockupDays),
		errors.Is(err, domain.ErrInvalidExtendDays),
		errors.Is(err, domain.ErrPositionClosed),
		errors.Is(err, domain.ErrNotReachedDeadline),
		errors.Is(err, domain.ErrReachedDeadline),
		errors.Is(err, domain.ErrZeroInput),
		errors.Is(err, domain.ErrAmountOverflow),
		errors.Is(err, domain.ErrDeadlineOverflow),
		errors.Is(err, domain.ErrForceUnstakeFeeOverflow),
		errors.Is(err, domain.ErrYieldPoolUnderflow):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type InitializeReq struct {
	Caller         string `json:"caller" binding:"required"`
	CustodyAccount string `json:"custody_account" binding:"required"`
	OutVault       string `json:"out_vault" binding:"required"`
	MinLockupDays  uint16 `json:"min_lockup_days" binding:"required"`
	MaxLockupDays  uint16 `json:"max_lockup_days" binding:"required"`
}

func (h *Handler) Initialize(c *gin.Context) {
	engine, ok := h.engine(c)
	if !ok {
		return
	}
	var req InitializeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := engine.Initialize(c.Request.Context(), application.InitializeCommand{
		Caller:         req.Caller,
		CustodyAccount: req.CustodyAccount,
		OutVault:       req.OutVault,
		MinLockupDays:  req.MinLockupDays,
		MaxLockupDays:  req.MaxLockupDays,
	})
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

type StakeReq struct {
	Caller        string `json:"caller" binding:"required"`
	Amount        string `json:"amount" binding:"required"`
	LockupDays    uint32 `json:"lockup_days" binding:"required"`
	PositionOwner string `json:"position_owner"`
	SharesTo      string `json:"shares_to"`
	YieldTo       string `json:"yield_to"`
}

func (h *Handler) Stake(c *gin.Context) {
	engine, ok := h.engine(c)
	if !ok {
		return
	}
	var req StakeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}
	// 受益账户缺省为调用者本人
	if req.PositionOwner == "" {
		req.PositionOwner = req.Caller
	}
	if req.SharesTo == "" {
		req.SharesTo = req.Caller
	}
	if req.YieldTo == "" {
		req.YieldTo = req.Caller
	}

	result, err := engine.Stake(c.Request.Context(), application.StakeCommand{
		Caller:        req.Caller,
		Amount:        amount,
		LockupDays:    req.LockupDays,
		PositionOwner: req.PositionOwner,
		SharesTo:      req.SharesTo,
		YieldTo:       req.YieldTo,
	})
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"position_id":  result.PositionID,
		"share_amount": result.ShareAmount,
		"yield_credit": result.YieldCredit,
		"deadline":     result.Deadline,
	})
}

type UnstakeReq struct {
	Caller     string `json:"caller" binding:"required"`
	PositionID uint64 `json:"position_id" binding:"required"`
}

func (h *Handler) Unstake(c *gin.Context) {
	engine, ok := h.engine(c)
	if !ok {
		return
	}
	var req UnstakeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	principal, err := engine.Unstake(c.Request.Context(), application.UnstakeCommand{
		Caller:     req.Caller,
		PositionID: req.PositionID,
	})
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"principal": principal})
}

type ExtendReq struct {
	Caller     string `json:"caller" binding:"required"`
	PositionID uint64 `json:"position_id" binding:"required"`
	ExtendDays uint32 `json:"extend_days" binding:"required"`
}

func (h *Handler) ExtendLockTime(c *gin.Context) {
	engine, ok := h.engine(c)
	if !ok {
		return
	}
	var req ExtendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	credit, err := engine.ExtendLockTime(c.Request.Context(), application.ExtendLockTimeCommand{
		Caller:     req.Caller,
		PositionID: req.PositionID,
		ExtendDays: req.ExtendDays,
	})
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"yield_credit": credit})
}

type WithdrawYieldReq struct {
	Caller string `json:"caller" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

func (h *Handler) WithdrawYield(c *gin.Context) {
	engine, ok := h.engine(c)
	if !ok {
		return
	}
	var req WithdrawYieldReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}
	paid, err := engine.WithdrawYield(c.Request.Context(), application.WithdrawYieldCommand{
		Caller: req.Caller,
		Amount: amount,
	})
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"paid": paid})
}

type AdminDaysReq struct {
	Caller string `json:"caller" binding:"required"`
	Days   uint16 `json:"days" binding:"required"`
}

func (h *Handler) SetMinLockupDays(c *gin.Context) {
	engine, ok := h.engine(c)
	if !ok {
		return
	}
	var req AdminDaysReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := engine.SetMinLockupDays(c.Request.Context(), application.SetMinLockupDaysCommand{Caller: req.Caller, Days: req.Days})
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) SetMaxLockupDays(c *gin.Context) {
	engine, ok := h.engine(c)
	if !ok {
		return
	}
	var req AdminDaysReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := engine.SetMaxLockupDays(c.Request.Context(), application.SetMaxLockupDaysCommand{Caller: req.Caller, Days: req.Days})
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

type AdminRateReq struct {
	Caller string `json:"caller" binding:"required"`
	Rate   uint32 `json:"rate"`
}

func (h *Handler) SetForceUnstakeFee(c *gin.Context) {
	engine, ok := h.engine(c)
	if !ok {
		return
	}
	var req AdminRateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := engine.SetForceUnstakeFee(c.Request.Context(), application.SetForceUnstakeFeeCommand{Caller: req.Caller, Rate: req.Rate})
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

type AdminVaultReq struct {
	Caller string `json:"caller" binding:"required"`
	Vault  string `json:"vault" binding:"required"`
}

func (h *Handler) SetOutVault(c *gin.Context) {
	engine, ok := h.engine(c)
	if !ok {
		return
	}
	var req AdminVaultReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := engine.SetOutVault(c.Request.Context(), application.SetOutVaultCommand{Caller: req.Caller, Vault: req.Vault})
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) GetPool(c *gin.Context) {
	pool, err := h.query.GetPool(c.Request.Context(), c.Param("class"))
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, pool)
}

func (h *Handler) GetPosition(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid position id"})
		return
	}
	position, err := h.query.GetPosition(c.Request.Context(), c.Param("class"), id)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, position)
}

func (h *Handler) ListPositions(c *gin.Context) {
	owner := c.Query("owner")
	if owner == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner required"})
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	positions, total, err := h.query.ListPositions(c.Request.Context(), c.Param("class"), owner, page, pageSize)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions, "total": total})
}

func (h *Handler) CheckInvariant(c *gin.Context) {
	ok, recorded, rebuilt, err := h.query.CheckStakedInvariant(c.Request.Context(), c.Param("class"))
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"consistent": ok, "total_staked": recorded, "rebuilt": rebuilt})
}
