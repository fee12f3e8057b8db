package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const SecondsPerDay = 86400

// Position 质押仓位记录，一次 stake 生成一条，永不删除
type Position struct {
	gorm.Model
	PositionID      uint64          `gorm:"column:position_id;uniqueIndex;not null"`
	AssetClass      string          `gorm:"column:asset_class;type:varchar(16);index;not null"`
	Owner           string          `gorm:"column:owner;type:varchar(64);index;not null"`
	PrincipalAmount decimal.Decimal `gorm:"column:principal_amount;type:decimal(40,0);not null"`
	ShareAmount     decimal.Decimal `gorm:"column:share_amount;type:decimal(40,0);not null"`
	Deadline        int64           `gorm:"column:deadline;not null"`
	Closed          bool            `gorm:"column:closed;not null;default:false"`
}

func (Position) TableName() string { return "staking_positions" }

// NewPosition 创建仓位。principal/share 必须是非负整数且不超过 96 位，
// deadline 不超过 56 位（链上存储布局的历史约束，保持兼容）。
func NewPosition(id uint64, assetClass, owner string, principal, share decimal.Decimal, deadline int64) (*Position, error) {
	if err := CheckAmount(principal); err != nil {
		return nil, err
	}
	if err := CheckAmount(share); err != nil {
		return nil, err
	}
	if err := CheckDeadline(deadline); err != nil {
		return nil, err
	}
	return &Position{
		PositionID:      id,
		AssetClass:      assetClass,
		Owner:           owner,
		PrincipalAmount: principal,
		ShareAmount:     share,
		Deadline:        deadline,
		Closed:          false,
	}, nil
}

// Close 关闭仓位，仅允许一次，且必须到期
func (p *Position) Close(now time.Time) error {
	if p.Closed {
		return ErrPositionClosed
	}
	if now.Unix() < p.Deadline {
		return ErrNotReachedDeadline
	}
	p.Closed = true
	return nil
}

// ExtendDeadline 延长锁定期。只允许未到期仓位延长，
// 延长后的剩余天数必须落在 [minDays, maxDays] 区间。
func (p *Position) ExtendDeadline(now time.Time, extendDays uint32, minDays, maxDays uint16) (int64, error) {
	if p.Closed {
		return 0, ErrPositionClosed
	}
	if now.Unix() >= p.Deadline {
		return 0, ErrReachedDeadline
	}
	newDeadline := p.Deadline + int64(extendDays)*SecondsPerDay
	remainingDays := (newDeadline - now.Unix()) / SecondsPerDay
	if remainingDays < int64(minDays) || remainingDays > int64(maxDays) {
		return 0, ErrInvalidExtendDays
	}
	if err := CheckDeadline(newDeadline); err != nil {
		return 0, err
	}
	p.Deadline = newDeadline
	return newDeadline, nil
}

// IsOwnedBy 仓位归属校验，授权由调用方（StakeManager）执行
func (p *Position) IsOwnedBy(caller string) bool {
	return p.Owner == caller
}
