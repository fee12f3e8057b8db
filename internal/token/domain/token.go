// Package domain 同质化代币账本领域层。
// 底层资产、份额和收益积分都作为独立币种记在同一套账本上，
// 守恒约束：每个币种的总供应量等于全部账户余额之和。
package domain

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrTokenNotFound         = errors.New("token not found")
	ErrTokenExists           = errors.New("token already exists")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrPermissionDenied      = errors.New("permission denied")
)

// Token 币种元数据，Manager 是唯一允许铸造与销毁的账户
type Token struct {
	gorm.Model
	Denom       string          `gorm:"column:denom;type:varchar(32);uniqueIndex;not null"`
	Manager     string          `gorm:"column:manager;type:varchar(64);not null"`
	TotalSupply decimal.Decimal `gorm:"column:total_supply;type:decimal(40,0);not null;default:0"`
}

func (Token) TableName() string { return "token_denoms" }

// NewToken 登记新币种
func NewToken(denom, manager string) *Token {
	return &Token{
		Denom:       denom,
		Manager:     manager,
		TotalSupply: decimal.Zero,
	}
}

// RequireManager 铸造销毁权限校验
func (t *Token) RequireManager(caller string) error {
	if caller == "" || caller != t.Manager {
		return ErrPermissionDenied
	}
	return nil
}

// AddSupply 铸造后调增总供应量
func (t *Token) AddSupply(amount decimal.Decimal) {
	t.TotalSupply = t.TotalSupply.Add(amount)
}

// SubSupply 销毁后调减总供应量
func (t *Token) SubSupply(amount decimal.Decimal) error {
	next := t.TotalSupply.Sub(amount)
	if next.IsNegative() {
		return ErrInsufficientBalance
	}
	t.TotalSupply = next
	return nil
}

// Balance 账户余额，每个 (denom, account) 一条
type Balance struct {
	gorm.Model
	Denom   string          `gorm:"column:denom;type:varchar(32);uniqueIndex:idx_denom_account;not null"`
	Account string          `gorm:"column:account;type:varchar(64);uniqueIndex:idx_denom_account;not null"`
	Amount  decimal.Decimal `gorm:"column:amount;type:decimal(40,0);not null;default:0"`
}

func (Balance) TableName() string { return "token_balances" }

// Credit 入账
func (b *Balance) Credit(amount decimal.Decimal) {
	b.Amount = b.Amount.Add(amount)
}

// Debit 出账，余额不足时失败
func (b *Balance) Debit(amount decimal.Decimal) error {
	next := b.Amount.Sub(amount)
	if next.IsNegative() {
		return ErrInsufficientBalance
	}
	b.Amount = next
	return nil
}

// Allowance 授权额度，每个 (denom, owner, spender) 一条
type Allowance struct {
	gorm.Model
	Denom   string          `gorm:"column:denom;type:varchar(32);uniqueIndex:idx_denom_owner_spender;not null"`
	Owner   string          `gorm:"column:owner;type:varchar(64);uniqueIndex:idx_denom_owner_spender;not null"`
	Spender string          `gorm:"column:spender;type:varchar(64);uniqueIndex:idx_denom_owner_spender;not null"`
	Amount  decimal.Decimal `gorm:"column:amount;type:decimal(40,0);not null;default:0"`
}

func (Allowance) TableName() string { return "token_allowances" }

// Spend 扣减授权额度
func (a *Allowance) Spend(amount decimal.Decimal) error {
	next := a.Amount.Sub(amount)
	if next.IsNegative() {
		return ErrInsufficientAllowance
	}
	a.Amount = next
	return nil
}
