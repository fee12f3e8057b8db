// Package mysql 金库上下文仓储实现
package mysql

import (
	"context"
	"errors"

	"github.com/wyfcoding/pkg/contextx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/stakingyield/internal/vault/domain"
)

type GormVaultStateRepository struct {
	db *gorm.DB
}

func NewGormVaultStateRepository(db *gorm.DB) domain.VaultStateRepository {
	return &GormVaultStateRepository{db: db}
}

func (r *GormVaultStateRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db
}

func (r *GormVaultStateRepository) Save(ctx context.Context, vault *domain.VaultState) error {
	return r.getDB(ctx).WithContext(ctx).Save(vault).Error
}

func (r *GormVaultStateRepository) Get(ctx context.Context, assetClass string) (*domain.VaultState, error) {
	var vault domain.VaultState
	err := r.getDB(ctx).WithContext(ctx).Where("asset_class = ?", assetClass).First(&vault).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &vault, nil
}

func (r *GormVaultStateRepository) GetForUpdate(ctx context.Context, assetClass string) (*domain.VaultState, error) {
	var vault domain.VaultState
	err := r.getDB(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("asset_class = ?", assetClass).
		First(&vault).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &vault, nil
}
