// Package mysql 质押上下文仓储实现，统一处理事务上下文 (contextx.GetTx)
package mysql

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/contextx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/stakingyield/internal/staking/domain"
)

// baseRepository 基础仓储，提供事务支持
type baseRepository struct {
	db *gorm.DB
}

func (r *baseRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db
}

// TransactionManager 事务管理器。上下文里已有事务时直接复用，
// 保证引擎与金库的嵌套调用落在同一个事务里整体提交或回滚。
type TransactionManager struct {
	db *gorm.DB
}

func NewTransactionManager(db *gorm.DB) *TransactionManager {
	return &TransactionManager{db: db}
}

func (tm *TransactionManager) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return fn(ctx)
	}
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(contextx.WithTx(ctx, tx))
	})
}

// --- Position Repository ---

type GormPositionRepository struct {
	baseRepository
}

func NewGormPositionRepository(db *gorm.DB) domain.PositionRepository {
	return &GormPositionRepository{baseRepository{db: db}}
}

func (r *GormPositionRepository) Create(ctx context.Context, position *domain.Position) error {
	return r.getDB(ctx).WithContext(ctx).Create(position).Error
}

func (r *GormPositionRepository) Get(ctx context.Context, assetClass string, positionID uint64) (*domain.Position, error) {
	var position domain.Position
	err := r.getDB(ctx).WithContext(ctx).
		Where("asset_class = ? AND position_id = ?", assetClass, positionID).
		First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &position, nil
}

func (r *GormPositionRepository) GetForUpdate(ctx context.Context, assetClass string, positionID uint64) (*domain.Position, error) {
	var position domain.Position
	err := r.getDB(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("asset_class = ? AND position_id = ?", assetClass, positionID).
		First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &position, nil
}

func (r *GormPositionRepository) Save(ctx context.Context, position *domain.Position) error {
	return r.getDB(ctx).WithContext(ctx).Save(position).Error
}

func (r *GormPositionRepository) ListByOwner(ctx context.Context, assetClass, owner string, limit, offset int) ([]*domain.Position, int64, error) {
	query := r.getDB(ctx).WithContext(ctx).Model(&domain.Position{}).
		Where("asset_class = ? AND owner = ?", assetClass, owner)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var positions []*domain.Position
	if err := query.Order("position_id DESC").Offset(offset).Limit(limit).Find(&positions).Error; err != nil {
		return nil, 0, err
	}
	return positions, total, nil
}

func (r *GormPositionRepository) SumOpenPrincipal(ctx context.Context, assetClass string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	row := r.getDB(ctx).WithContext(ctx).Model(&domain.Position{}).
		Where("asset_class = ? AND closed = ?", assetClass, false).
		Select("COALESCE(SUM(principal_amount), 0)").
		Row()
	if err := row.Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

// --- Pool State Repository ---

type GormPoolStateRepository struct {
	baseRepository
}

func NewGormPoolStateRepository(db *gorm.DB) domain.PoolStateRepository {
	return &GormPoolStateRepository{baseRepository{db: db}}
}

func (r *GormPoolStateRepository) Save(ctx context.Context, pool *domain.PoolState) error {
	return r.getDB(ctx).WithContext(ctx).Save(pool).Error
}

func (r *GormPoolStateRepository) Get(ctx context.Context, assetClass string) (*domain.PoolState, error) {
	var pool domain.PoolState
	err := r.getDB(ctx).WithContext(ctx).Where("asset_class = ?", assetClass).First(&pool).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pool, nil
}

func (r *GormPoolStateRepository) GetForUpdate(ctx context.Context, assetClass string) (*domain.PoolState, error) {
	var pool domain.PoolState
	err := r.getDB(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("asset_class = ?", assetClass).
		First(&pool).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pool, nil
}
