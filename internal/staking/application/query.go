package application

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/stakingyield/internal/staking/domain"
)

// QueryService 质押查询服务，跨资产类别只读
type QueryService struct {
	pools     domain.PoolStateRepository
	positions domain.PositionRepository
	logger    *slog.Logger
}

func NewQueryService(pools domain.PoolStateRepository, positions domain.PositionRepository, logger *slog.Logger) *QueryService {
	return &QueryService{
		pools:     pools,
		positions: positions,
		logger:    logger.With("module", "staking_query"),
	}
}

// GetPosition 查询仓位，不存在返回 ErrPositionNotFound
func (s *QueryService) GetPosition(ctx context.Context, assetClass string, positionID uint64) (*domain.Position, error) {
	position, err := s.positions.Get(ctx, assetClass, positionID)
	if err != nil {
		return nil, err
	}
	if position == nil {
		return nil, domain.ErrPositionNotFound
	}
	return position, nil
}

// ListPositions 按持有人分页查询仓位（含已关闭仓位，仓位永不删除）
func (s *QueryService) ListPositions(ctx context.Context, assetClass, owner string, page, pageSize int) ([]*domain.Position, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 20
	}
	return s.positions.ListByOwner(ctx, assetClass, owner, pageSize, (page-1)*pageSize)
}

// PoolInfo 池状态快照
type PoolInfo struct {
	AssetClass     string          `json:"asset_class"`
	TotalStaked    decimal.Decimal `json:"total_staked"`
	TotalYieldPool decimal.Decimal `json:"total_yield_pool"`
	MinLockupDays  uint16          `json:"min_lockup_days"`
	MaxLockupDays  uint16          `json:"max_lockup_days"`
	OutVault       string          `json:"out_vault"`
	Initialized    bool            `json:"initialized"`
}

// GetPool 查询池状态
func (s *QueryService) GetPool(ctx context.Context, assetClass string) (*PoolInfo, error) {
	pool, err := s.pools.Get(ctx, assetClass)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, domain.ErrNotInitialized
	}
	return &PoolInfo{
		AssetClass:     pool.AssetClass,
		TotalStaked:    pool.TotalStaked,
		TotalYieldPool: pool.TotalYieldPool,
		MinLockupDays:  pool.MinLockupDays,
		MaxLockupDays:  pool.MaxLockupDays,
		OutVault:       pool.OutVault,
		Initialized:    pool.Initialized,
	}, nil
}

// CheckStakedInvariant 核对 totalStaked 与账本重建值是否一致
func (s *QueryService) CheckStakedInvariant(ctx context.Context, assetClass string) (bool, decimal.Decimal, decimal.Decimal, error) {
	pool, err := s.pools.Get(ctx, assetClass)
	if err != nil {
		return false, decimal.Zero, decimal.Zero, err
	}
	if pool == nil {
		return false, decimal.Zero, decimal.Zero, domain.ErrNotInitialized
	}
	rebuilt, err := s.positions.SumOpenPrincipal(ctx, assetClass)
	if err != nil {
		return false, decimal.Zero, decimal.Zero, err
	}
	return pool.TotalStaked.Equal(rebuilt), pool.TotalStaked, rebuilt, nil
}
