// Package mysql 代币账本仓储实现
package mysql

import (
	"context"
	"errors"

	"github.com/wyfcoding/pkg/contextx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/stakingyield/internal/token/domain"
)

type baseRepository struct {
	db *gorm.DB
}

func (r *baseRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db
}

// --- Token Repository ---

type GormTokenRepository struct {
	baseRepository
}

func NewGormTokenRepository(db *gorm.DB) domain.TokenRepository {
	return &GormTokenRepository{baseRepository{db: db}}
}

func (r *GormTokenRepository) Create(ctx context.Context, token *domain.Token) error {
	return r.getDB(ctx).WithContext(ctx).Create(token).Error
}

func (r *GormTokenRepository) Get(ctx context.Context, denom string) (*domain.Token, error) {
	var token domain.Token
	err := r.getDB(ctx).WithContext(ctx).Where("denom = ?", denom).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

func (r *GormTokenRepository) GetForUpdate(ctx context.Context, denom string) (*domain.Token, error) {
	var token domain.Token
	err := r.getDB(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("denom = ?", denom).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

func (r *GormTokenRepository) Save(ctx context.Context, token *domain.Token) error {
	return r.getDB(ctx).WithContext(ctx).Save(token).Error
}

// --- Balance Repository ---

type GormBalanceRepository struct {
	baseRepository
}

func NewGormBalanceRepository(db *gorm.DB) domain.BalanceRepository {
	return &GormBalanceRepository{baseRepository{db: db}}
}

func (r *GormBalanceRepository) Get(ctx context.Context, denom, account string) (*domain.Balance, error) {
	var balance domain.Balance
	err := r.getDB(ctx).WithContext(ctx).
		Where("denom = ? AND account = ?", denom, account).
		First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &balance, nil
}

func (r *GormBalanceRepository) GetForUpdate(ctx context.Context, denom, account string) (*domain.Balance, error) {
	var balance domain.Balance
	err := r.getDB(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("denom = ? AND account = ?", denom, account).
		First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &balance, nil
}

func (r *GormBalanceRepository) Save(ctx context.Context, balance *domain.Balance) error {
	return r.getDB(ctx).WithContext(ctx).Save(balance).Error
}

// --- Allowance Repository ---

type GormAllowanceRepository struct {
	baseRepository
}

func NewGormAllowanceRepository(db *gorm.DB) domain.AllowanceRepository {
	return &GormAllowanceRepository{baseRepository{db: db}}
}

func (r *GormAllowanceRepository) Get(ctx context.Context, denom, owner, spender string) (*domain.Allowance, error) {
	var allowance domain.Allowance
	err := r.getDB(ctx).WithContext(ctx).
		Where("denom = ? AND owner = ? AND spender = ?", denom, owner, spender).
		First(&allowance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &allowance, nil
}

func (r *GormAllowanceRepository) GetForUpdate(ctx context.Context, denom, owner, spender string) (*domain.Allowance, error) {
	var allowance domain.Allowance
	err := r.getDB(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("denom = ? AND owner = ? AND spender = ?", denom, owner, spender).
		First(&allowance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &allowance, nil
}

func (r *GormAllowanceRepository) Save(ctx context.Context, allowance *domain.Allowance) error {
	return r.getDB(ctx).WithContext(ctx).Save(allowance).Error
}
