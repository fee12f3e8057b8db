package domain

import "context"

// TokenRepository 币种仓储
type TokenRepository interface {
	Create(ctx context.Context, token *Token) error
	Get(ctx context.Context, denom string) (*Token, error)
	GetForUpdate(ctx context.Context, denom string) (*Token, error)
	Save(ctx context.Context, token *Token) error
}

// BalanceRepository 余额仓储，GetForUpdate 对不存在的账户返回 (nil, nil)
type BalanceRepository interface {
	Get(ctx context.Context, denom, account string) (*Balance, error)
	GetForUpdate(ctx context.Context, denom, account string) (*Balance, error)
	Save(ctx context.Context, balance *Balance) error
}

// AllowanceRepository 授权仓储
type AllowanceRepository interface {
	Get(ctx context.Context, denom, owner, spender string) (*Allowance, error)
	GetForUpdate(ctx context.Context, denom, owner, spender string) (*Allowance, error)
	Save(ctx context.Context, allowance *Allowance) error
}

// Transactor 账本事务边界
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}
