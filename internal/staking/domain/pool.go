package domain

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PoolState 质押池聚合状态，每个资产类别一条
type PoolState struct {
	gorm.Model
	AssetClass      string          `gorm:"column:asset_class;type:varchar(16);uniqueIndex;not null"`
	Admin           string          `gorm:"column:admin;type:varchar(64);not null"`
	OutVault        string          `gorm:"column:out_vault;type:varchar(64)"`
	CustodyAccount  string          `gorm:"column:custody_account;type:varchar(64);not null"`
	ForceUnstakeFee uint32          `gorm:"column:force_unstake_fee;not null;default:0"`
	MinLockupDays   uint16          `gorm:"column:min_lockup_days;not null"`
	MaxLockupDays   uint16          `gorm:"column:max_lockup_days;not null"`
	TotalStaked     decimal.Decimal `gorm:"column:total_staked;type:decimal(40,0);not null"`
	TotalYieldPool  decimal.Decimal `gorm:"column:total_yield_pool;type:decimal(40,0);not null"`
	Initialized     bool            `gorm:"column:initialized;not null;default:false"`

	domainEvents []DomainEvent `gorm:"-"`
}

func (PoolState) TableName() string { return "staking_pools" }

// NewPoolState 创建未初始化的池状态
func NewPoolState(assetClass string) *PoolState {
	return &PoolState{
		AssetClass:     assetClass,
		TotalStaked:    decimal.Zero,
		TotalYieldPool: decimal.Zero,
		Initialized:    false,
	}
}

// Initialize 一次性初始化。相互依赖的实例在构造之后才能互相绑定，
// 所以初始化是显式的受保护状态迁移而不是构造逻辑。
func (ps *PoolState) Initialize(admin, custodyAccount, outVault string, minDays, maxDays uint16) error {
	if ps.Initialized {
		return ErrAlreadyInitialized
	}
	if minDays == 0 || maxDays < minDays {
		return ErrInvalidLockupDays
	}
	ps.Admin = admin
	ps.CustodyAccount = custodyAccount
	ps.OutVault = outVault
	ps.MinLockupDays = minDays
	ps.MaxLockupDays = maxDays
	ps.Initialized = true
	return nil
}

// RequireAdmin 特权操作校验，身份保存在聚合内部而非全局状态
func (ps *PoolState) RequireAdmin(caller string) error {
	if caller == "" || caller != ps.Admin {
		return ErrPermissionDenied
	}
	return nil
}

// ValidateLockupDays 锁定天数必须落在配置区间
func (ps *PoolState) ValidateLockupDays(days uint32) error {
	if days < uint32(ps.MinLockupDays) || days > uint32(ps.MaxLockupDays) {
		return ErrInvalidLockupDays
	}
	return nil
}

// AddStaked totalStaked 只在 stake 时增加
func (ps *PoolState) AddStaked(amount decimal.Decimal) {
	ps.TotalStaked = ps.TotalStaked.Add(amount)
}

// SubStaked totalStaked 只在 unstake 时减少
func (ps *PoolState) SubStaked(amount decimal.Decimal) {
	ps.TotalStaked = ps.TotalStaked.Sub(amount)
}

// CreditYield 金库上缴的外部收益计入池内
func (ps *PoolState) CreditYield(amount decimal.Decimal) {
	ps.TotalYieldPool = ps.TotalYieldPool.Add(amount)
}

// DebitYield 凭证兑付时扣减池内收益，池余额永不为负
func (ps *PoolState) DebitYield(amount decimal.Decimal) error {
	if ps.TotalYieldPool.LessThan(amount) {
		return ErrYieldPoolUnderflow
	}
	ps.TotalYieldPool = ps.TotalYieldPool.Sub(amount)
	return nil
}

// SetForceUnstakeFee 费率以基点计，上限 10000。
// 当前版本没有任何已启用的路径消费该费率，仅保留配置位。
func (ps *PoolState) SetForceUnstakeFee(rate uint32) error {
	if rate > MaxBasisPoints {
		return ErrForceUnstakeFeeOverflow
	}
	ps.ForceUnstakeFee = rate
	return nil
}

// SetMinLockupDays 调整锁定天数下界
func (ps *PoolState) SetMinLockupDays(days uint16) error {
	if days == 0 || days > ps.MaxLockupDays {
		return ErrInvalidLockupDays
	}
	ps.MinLockupDays = days
	return nil
}

// SetMaxLockupDays 调整锁定天数上界
func (ps *PoolState) SetMaxLockupDays(days uint16) error {
	if days < ps.MinLockupDays {
		return ErrInvalidLockupDays
	}
	ps.MaxLockupDays = days
	return nil
}

// SetOutVault 更换配对金库
func (ps *PoolState) SetOutVault(vault string) {
	ps.OutVault = vault
}

func (ps *PoolState) AddEvent(event DomainEvent) {
	ps.domainEvents = append(ps.domainEvents, event)
}

func (ps *PoolState) GetDomainEvents() []DomainEvent {
	return ps.domainEvents
}

func (ps *PoolState) ClearDomainEvents() {
	ps.domainEvents = nil
}
