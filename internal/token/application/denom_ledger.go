package application

import (
	"context"

	"github.com/shopspring/decimal"

	stakingdomain "github.com/wyfcoding/stakingyield/internal/staking/domain"
)

// DenomLedger 把多币种账本按单一币种适配成质押引擎依赖的账本视图
type DenomLedger struct {
	svc   *LedgerService
	denom string
}

var _ stakingdomain.FungibleLedger = (*DenomLedger)(nil)

func NewDenomLedger(svc *LedgerService, denom string) *DenomLedger {
	return &DenomLedger{svc: svc, denom: denom}
}

func (l *DenomLedger) BalanceOf(ctx context.Context, account string) (decimal.Decimal, error) {
	return l.svc.BalanceOf(ctx, l.denom, account)
}

func (l *DenomLedger) TotalSupply(ctx context.Context) (decimal.Decimal, error) {
	return l.svc.TotalSupply(ctx, l.denom)
}

func (l *DenomLedger) Transfer(ctx context.Context, from, to string, amount decimal.Decimal) error {
	return l.svc.Transfer(ctx, l.denom, from, to, amount)
}

func (l *DenomLedger) TransferFrom(ctx context.Context, spender, from, to string, amount decimal.Decimal) error {
	return l.svc.TransferFrom(ctx, l.denom, spender, from, to, amount)
}

func (l *DenomLedger) Mint(ctx context.Context, caller, to string, amount decimal.Decimal) error {
	return l.svc.Mint(ctx, l.denom, caller, to, amount)
}

func (l *DenomLedger) Burn(ctx context.Context, caller, from string, amount decimal.Decimal) error {
	return l.svc.Burn(ctx, l.denom, caller, from, amount)
}
