package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// PositionRepository 仓位仓储。
// Get 对不存在的 id 返回 (nil, nil)：历史实现对缺失条目返回零值结构，
// 调用方靠 owner 哨兵判断，这里改为显式的可空返回。
type PositionRepository interface {
	Create(ctx context.Context, position *Position) error
	Get(ctx context.Context, assetClass string, positionID uint64) (*Position, error)
	GetForUpdate(ctx context.Context, assetClass string, positionID uint64) (*Position, error)
	Save(ctx context.Context, position *Position) error
	ListByOwner(ctx context.Context, assetClass, owner string, limit, offset int) ([]*Position, int64, error)
	// SumOpenPrincipal 从账本重建未关闭仓位本金之和，用于核对 totalStaked 不变量
	SumOpenPrincipal(ctx context.Context, assetClass string) (decimal.Decimal, error)
}

// PoolStateRepository 池状态仓储
type PoolStateRepository interface {
	Save(ctx context.Context, pool *PoolState) error
	Get(ctx context.Context, assetClass string) (*PoolState, error)
	GetForUpdate(ctx context.Context, assetClass string) (*PoolState, error)
}

// IDAllocator 仓位 id 分配器：严格递增，永不复用
type IDAllocator interface {
	NextID() uint64
}

// Transactor 把一次外部调用的全部效果放进同一个事务，失败整体回滚
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}
