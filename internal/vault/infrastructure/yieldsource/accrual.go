// Package yieldsource 外部收益来源。增值收益由外部系统按持有账户
// 记成应计条目，金库领取时把未领取部分铸入底层资产账本。
package yieldsource

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/contextx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	stakingdomain "github.com/wyfcoding/stakingyield/internal/staking/domain"
	tokenapp "github.com/wyfcoding/stakingyield/internal/token/application"
)

// Accrual 应计收益条目
type Accrual struct {
	gorm.Model
	Holder  string          `gorm:"column:holder;type:varchar(64);index;not null"`
	Amount  decimal.Decimal `gorm:"column:amount;type:decimal(40,0);not null"`
	Source  string          `gorm:"column:source;type:varchar(64)"`
	Claimed bool            `gorm:"column:claimed;not null;default:false"`
}

func (Accrual) TableName() string { return "yield_accruals" }

// AccrualSource 以应计表实现收益来源。Claim 把未领取条目标记已领取，
// 并以账本管理账户身份把对应金额铸给持有账户。
type AccrualSource struct {
	db      *gorm.DB
	ledger  *tokenapp.LedgerService
	denom   string
	manager string
}

var _ stakingdomain.YieldSource = (*AccrualSource)(nil)

func NewAccrualSource(db *gorm.DB, ledger *tokenapp.LedgerService, denom, manager string) *AccrualSource {
	return &AccrualSource{db: db, ledger: ledger, denom: denom, manager: manager}
}

func (s *AccrualSource) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return s.db
}

// Accrue 记入一笔应计收益（由外部系统或运维调用）
func (s *AccrualSource) Accrue(ctx context.Context, holder, source string, amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.Equal(amount.Truncate(0)) {
		return errors.New("accrual amount must be a positive integer")
	}
	return s.getDB(ctx).WithContext(ctx).Create(&Accrual{
		Holder: holder,
		Amount: amount,
		Source: source,
	}).Error
}

func (s *AccrualSource) GetClaimableAmount(ctx context.Context, holder string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	row := s.getDB(ctx).WithContext(ctx).Model(&Accrual{}).
		Where("holder = ? AND claimed = ?", holder, false).
		Select("COALESCE(SUM(amount), 0)").
		Row()
	if err := row.Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

func (s *AccrualSource) Claim(ctx context.Context, holder string, amount decimal.Decimal) error {
	db := s.getDB(ctx).WithContext(ctx)

	var accruals []*Accrual
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("holder = ? AND claimed = ?", holder, false).
		Find(&accruals).Error
	if err != nil {
		return err
	}

	total := decimal.Zero
	for _, accrual := range accruals {
		total = total.Add(accrual.Amount)
	}
	if !total.Equal(amount) {
		return fmt.Errorf("claimable amount changed: want %s, have %s", amount, total)
	}
	if total.IsZero() {
		return nil
	}

	ids := make([]uint, 0, len(accruals))
	for _, accrual := range accruals {
		ids = append(ids, accrual.ID)
	}
	if err := db.Model(&Accrual{}).Where("id IN ?", ids).Update("claimed", true).Error; err != nil {
		return err
	}
	return s.ledger.Mint(ctx, s.denom, s.manager, holder, total)
}
