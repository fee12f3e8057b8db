// Package application 代币账本应用层
package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/stakingyield/internal/token/domain"
)

// LedgerService 多币种账本服务。所有变更操作要么完整生效
// 要么完整失败，调用方处在事务内时复用其事务。
type LedgerService struct {
	tokens     domain.TokenRepository
	balances   domain.BalanceRepository
	allowances domain.AllowanceRepository
	tx         domain.Transactor
	logger     *slog.Logger
}

func NewLedgerService(
	tokens domain.TokenRepository,
	balances domain.BalanceRepository,
	allowances domain.AllowanceRepository,
	tx domain.Transactor,
	logger *slog.Logger,
) *LedgerService {
	return &LedgerService{
		tokens:     tokens,
		balances:   balances,
		allowances: allowances,
		tx:         tx,
		logger:     logger.With("module", "token_ledger"),
	}
}

// CreateToken 登记币种并指定管理账户
func (s *LedgerService) CreateToken(ctx context.Context, denom, manager string) error {
	return s.tx.Transaction(ctx, func(ctx context.Context) error {
		existing, err := s.tokens.Get(ctx, denom)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrTokenExists
		}
		return s.tokens.Create(ctx, domain.NewToken(denom, manager))
	})
}

// BalanceOf 查询余额，不存在的账户余额为零
func (s *LedgerService) BalanceOf(ctx context.Context, denom, account string) (decimal.Decimal, error) {
	balance, err := s.balances.Get(ctx, denom, account)
	if err != nil {
		return decimal.Zero, err
	}
	if balance == nil {
		return decimal.Zero, nil
	}
	return balance.Amount, nil
}

// TotalSupply 查询币种总供应量
func (s *LedgerService) TotalSupply(ctx context.Context, denom string) (decimal.Decimal, error) {
	token, err := s.tokens.Get(ctx, denom)
	if err != nil {
		return decimal.Zero, err
	}
	if token == nil {
		return decimal.Zero, domain.ErrTokenNotFound
	}
	return token.TotalSupply, nil
}

// Allowance 查询授权额度
func (s *LedgerService) Allowance(ctx context.Context, denom, owner, spender string) (decimal.Decimal, error) {
	allowance, err := s.allowances.Get(ctx, denom, owner, spender)
	if err != nil {
		return decimal.Zero, err
	}
	if allowance == nil {
		return decimal.Zero, nil
	}
	return allowance.Amount, nil
}

// Mint 铸造，仅限币种管理账户
func (s *LedgerService) Mint(ctx context.Context, denom, caller, to string, amount decimal.Decimal) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if amount.IsZero() {
		return nil
	}
	return s.tx.Transaction(ctx, func(ctx context.Context) error {
		token, err := s.mustToken(ctx, denom)
		if err != nil {
			return err
		}
		if err := token.RequireManager(caller); err != nil {
			return err
		}
		if err := s.credit(ctx, denom, to, amount); err != nil {
			return err
		}
		token.AddSupply(amount)
		return s.tokens.Save(ctx, token)
	})
}

// Burn 销毁，仅限币种管理账户
func (s *LedgerService) Burn(ctx context.Context, denom, caller, from string, amount decimal.Decimal) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if amount.IsZero() {
		return nil
	}
	return s.tx.Transaction(ctx, func(ctx context.Context) error {
		token, err := s.mustToken(ctx, denom)
		if err != nil {
			return err
		}
		if err := token.RequireManager(caller); err != nil {
			return err
		}
		if err := s.debit(ctx, denom, from, amount); err != nil {
			return err
		}
		if err := token.SubSupply(amount); err != nil {
			return err
		}
		return s.tokens.Save(ctx, token)
	})
}

// Transfer 转账。from == to 时只校验余额，不落账
func (s *LedgerService) Transfer(ctx context.Context, denom, from, to string, amount decimal.Decimal) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if amount.IsZero() {
		return nil
	}
	return s.tx.Transaction(ctx, func(ctx context.Context) error {
		return s.move(ctx, denom, from, to, amount)
	})
}

// TransferFrom 授权转账：spender 为 from 本人或 from 的授权账户
func (s *LedgerService) TransferFrom(ctx context.Context, denom, spender, from, to string, amount decimal.Decimal) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if amount.IsZero() {
		return nil
	}
	return s.tx.Transaction(ctx, func(ctx context.Context) error {
		if spender != from {
			allowance, err := s.allowances.GetForUpdate(ctx, denom, from, spender)
			if err != nil {
				return err
			}
			if allowance == nil {
				return domain.ErrInsufficientAllowance
			}
			if err := allowance.Spend(amount); err != nil {
				return err
			}
			if err := s.allowances.Save(ctx, allowance); err != nil {
				return err
			}
		}
		return s.move(ctx, denom, from, to, amount)
	})
}

// Approve 设置授权额度，覆盖旧值
func (s *LedgerService) Approve(ctx context.Context, denom, owner, spender string, amount decimal.Decimal) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	return s.tx.Transaction(ctx, func(ctx context.Context) error {
		if _, err := s.mustToken(ctx, denom); err != nil {
			return err
		}
		allowance, err := s.allowances.GetForUpdate(ctx, denom, owner, spender)
		if err != nil {
			return err
		}
		if allowance == nil {
			allowance = &domain.Allowance{Denom: denom, Owner: owner, Spender: spender}
		}
		allowance.Amount = amount
		return s.allowances.Save(ctx, allowance)
	})
}

func (s *LedgerService) move(ctx context.Context, denom, from, to string, amount decimal.Decimal) error {
	if from == to {
		balance, err := s.balances.GetForUpdate(ctx, denom, from)
		if err != nil {
			return err
		}
		if balance == nil || balance.Amount.LessThan(amount) {
			return domain.ErrInsufficientBalance
		}
		return nil
	}
	if err := s.debit(ctx, denom, from, amount); err != nil {
		return err
	}
	return s.credit(ctx, denom, to, amount)
}

func (s *LedgerService) debit(ctx context.Context, denom, account string, amount decimal.Decimal) error {
	balance, err := s.balances.GetForUpdate(ctx, denom, account)
	if err != nil {
		return err
	}
	if balance == nil {
		return domain.ErrInsufficientBalance
	}
	if err := balance.Debit(amount); err != nil {
		return err
	}
	return s.balances.Save(ctx, balance)
}

func (s *LedgerService) credit(ctx context.Context, denom, account string, amount decimal.Decimal) error {
	balance, err := s.balances.GetForUpdate(ctx, denom, account)
	if err != nil {
		return err
	}
	if balance == nil {
		balance = &domain.Balance{Denom: denom, Account: account, Amount: decimal.Zero}
	}
	balance.Credit(amount)
	return s.balances.Save(ctx, balance)
}

func (s *LedgerService) mustToken(ctx context.Context, denom string) (*domain.Token, error) {
	token, err := s.tokens.GetForUpdate(ctx, denom)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, domain.ErrTokenNotFound
	}
	return token, nil
}

func checkAmount(amount decimal.Decimal) error {
	if amount.IsNegative() || !amount.Equal(amount.Truncate(0)) {
		return fmt.Errorf("%w: %s", domain.ErrInvalidAmount, amount)
	}
	return nil
}
