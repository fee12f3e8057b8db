// Package domain 收益金库领域层。
// 金库托管池内底层资产、领取外部增值收益并按费率分账，
// 同时提供同块闪电贷。
package domain

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	stakingdomain "github.com/wyfcoding/stakingyield/internal/staking/domain"
)

var (
	ErrZeroInput            = errors.New("zero input")
	ErrFeeRateOverflow      = errors.New("fee rate exceeds 10000 basis points")
	ErrFlashLoanRepayFailed = errors.New("flash loan not repaid with fees")
	ErrReentrantCall        = errors.New("reentrant vault call")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrAlreadyInitialized   = errors.New("vault already initialized")
	ErrNotInitialized       = errors.New("vault not initialized")
	ErrAccrualUnsupported   = errors.New("yield source does not support accrual")
)

// VaultState 金库聚合状态，每个资产类别一条
type VaultState struct {
	gorm.Model
	AssetClass           string `gorm:"column:asset_class;type:varchar(16);uniqueIndex;not null"`
	Admin                string `gorm:"column:admin;type:varchar(64);not null"`
	VaultAccount         string `gorm:"column:vault_account;type:varchar(64);not null"`
	StakeManagerAccount  string `gorm:"column:stake_manager_account;type:varchar(64);not null"`
	RevenuePool          string `gorm:"column:revenue_pool;type:varchar(64);not null"`
	ProtocolFeeRate      uint32 `gorm:"column:protocol_fee_rate;not null;default:0"`
	FlashProviderFeeRate uint32 `gorm:"column:flash_provider_fee_rate;not null;default:0"`
	FlashProtocolFeeRate uint32 `gorm:"column:flash_protocol_fee_rate;not null;default:0"`
	Initialized          bool   `gorm:"column:initialized;not null;default:false"`

	domainEvents []DomainEvent `gorm:"-"`
}

func (VaultState) TableName() string { return "yield_vaults" }

func NewVaultState(assetClass string) *VaultState {
	return &VaultState{AssetClass: assetClass}
}

// Initialize 一次性初始化
func (vs *VaultState) Initialize(admin, vaultAccount, stakeManagerAccount, revenuePool string) error {
	if vs.Initialized {
		return ErrAlreadyInitialized
	}
	vs.Admin = admin
	vs.VaultAccount = vaultAccount
	vs.StakeManagerAccount = stakeManagerAccount
	vs.RevenuePool = revenuePool
	vs.Initialized = true
	return nil
}

// RequireAdmin 特权操作校验
func (vs *VaultState) RequireAdmin(caller string) error {
	if caller == "" || caller != vs.Admin {
		return ErrPermissionDenied
	}
	return nil
}

// SplitClaim 把领取到的外部收益拆成协议费与净上缴额，费用向零截断
func (vs *VaultState) SplitClaim(claimed decimal.Decimal) (fee, net decimal.Decimal) {
	fee = stakingdomain.BasisPointFee(claimed, vs.ProtocolFeeRate)
	net = claimed.Sub(fee)
	return fee, net
}

// FlashLoanFees 闪电贷费用：providerFee 流入质押池，protocolFee 归协议
func (vs *VaultState) FlashLoanFees(amount decimal.Decimal) (providerFee, protocolFee decimal.Decimal) {
	providerFee = stakingdomain.BasisPointFee(amount, vs.FlashProviderFeeRate)
	protocolFee = stakingdomain.BasisPointFee(amount, vs.FlashProtocolFeeRate)
	return providerFee, protocolFee
}

// SetProtocolFeeRate 收益分账协议费率
func (vs *VaultState) SetProtocolFeeRate(rate uint32) error {
	if rate > stakingdomain.MaxBasisPoints {
		return ErrFeeRateOverflow
	}
	vs.ProtocolFeeRate = rate
	return nil
}

// SetFlashLoanFeeRates 闪电贷费率，两项之和不得超过 10000 基点
func (vs *VaultState) SetFlashLoanFeeRates(providerRate, protocolRate uint32) error {
	if providerRate > stakingdomain.MaxBasisPoints || protocolRate > stakingdomain.MaxBasisPoints {
		return ErrFeeRateOverflow
	}
	if providerRate+protocolRate > stakingdomain.MaxBasisPoints {
		return ErrFeeRateOverflow
	}
	vs.FlashProviderFeeRate = providerRate
	vs.FlashProtocolFeeRate = protocolRate
	return nil
}

// SetRevenuePool 更换协议费接收账户
func (vs *VaultState) SetRevenuePool(account string) {
	vs.RevenuePool = account
}

// SetStakeManagerAccount 更换配对质押池托管账户
func (vs *VaultState) SetStakeManagerAccount(account string) {
	vs.StakeManagerAccount = account
}

func (vs *VaultState) AddEvent(event DomainEvent) {
	vs.domainEvents = append(vs.domainEvents, event)
}

func (vs *VaultState) GetDomainEvents() []DomainEvent {
	return vs.domainEvents
}

func (vs *VaultState) ClearDomainEvents() {
	vs.domainEvents = nil
}
