package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// FungibleLedger 协作方代币账本。引擎只依赖这四类操作并信任其记账，
// 操作要么完整生效要么完整失败，不存在部分生效。
type FungibleLedger interface {
	BalanceOf(ctx context.Context, account string) (decimal.Decimal, error)
	TotalSupply(ctx context.Context) (decimal.Decimal, error)
	Transfer(ctx context.Context, from, to string, amount decimal.Decimal) error
	TransferFrom(ctx context.Context, spender, from, to string, amount decimal.Decimal) error
	// Mint/Burn 仅允许账本配置的管理账户调用
	Mint(ctx context.Context, caller, to string, amount decimal.Decimal) error
	Burn(ctx context.Context, caller, from string, amount decimal.Decimal) error
}

// YieldSource 外部收益来源：余额外生增长，可查询后领取
type YieldSource interface {
	GetClaimableAmount(ctx context.Context, holder string) (decimal.Decimal, error)
	Claim(ctx context.Context, holder string, amount decimal.Decimal) error
}
