// Package domain 质押引擎领域事件
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DomainEvent interface {
	EventName() string
	OccurredAt() time.Time
}

// StakedEvent 质押事件
type StakedEvent struct {
	AssetClass  string          `json:"asset_class"`
	PositionID  uint64          `json:"position_id"`
	Owner       string          `json:"owner"`
	Amount      decimal.Decimal `json:"amount"`
	ShareAmount decimal.Decimal `json:"share_amount"`
	YieldCredit decimal.Decimal `json:"yield_credit"`
	LockupDays  uint32          `json:"lockup_days"`
	Deadline    int64           `json:"deadline"`
	Timestamp   time.Time       `json:"timestamp"`
}

func (e *StakedEvent) EventName() string     { return "staking.staked" }
func (e *StakedEvent) OccurredAt() time.Time { return e.Timestamp }

// UnstakedEvent 解押事件
type UnstakedEvent struct {
	AssetClass string          `json:"asset_class"`
	PositionID uint64          `json:"position_id"`
	Owner      string          `json:"owner"`
	Principal  decimal.Decimal `json:"principal"`
	Shares     decimal.Decimal `json:"shares"`
	Timestamp  time.Time       `json:"timestamp"`
}

func (e *UnstakedEvent) EventName() string     { return "staking.unstaked" }
func (e *UnstakedEvent) OccurredAt() time.Time { return e.Timestamp }

// LockExtendedEvent 锁定期延长事件
type LockExtendedEvent struct {
	AssetClass  string          `json:"asset_class"`
	PositionID  uint64          `json:"position_id"`
	Owner       string          `json:"owner"`
	ExtendDays  uint32          `json:"extend_days"`
	NewDeadline int64           `json:"new_deadline"`
	YieldCredit decimal.Decimal `json:"yield_credit"`
	Timestamp   time.Time       `json:"timestamp"`
}

func (e *LockExtendedEvent) EventName() string     { return "staking.lock_extended" }
func (e *LockExtendedEvent) OccurredAt() time.Time { return e.Timestamp }

// YieldWithdrawnEvent 收益兑付事件
type YieldWithdrawnEvent struct {
	AssetClass   string          `json:"asset_class"`
	Caller       string          `json:"caller"`
	CreditBurned decimal.Decimal `json:"credit_burned"`
	Paid         decimal.Decimal `json:"paid"`
	Timestamp    time.Time       `json:"timestamp"`
}

func (e *YieldWithdrawnEvent) EventName() string     { return "staking.yield_withdrawn" }
func (e *YieldWithdrawnEvent) OccurredAt() time.Time { return e.Timestamp }

// YieldPoolUpdatedEvent 收益池入账事件
type YieldPoolUpdatedEvent struct {
	AssetClass string          `json:"asset_class"`
	Amount     decimal.Decimal `json:"amount"`
	PoolAfter  decimal.Decimal `json:"pool_after"`
	Timestamp  time.Time       `json:"timestamp"`
}

func (e *YieldPoolUpdatedEvent) EventName() string     { return "staking.yield_pool_updated" }
func (e *YieldPoolUpdatedEvent) OccurredAt() time.Time { return e.Timestamp }

// PoolConfigChangedEvent 管理参数变更事件，Field 标识变更项
type PoolConfigChangedEvent struct {
	AssetClass string    `json:"asset_class"`
	Field      string    `json:"field"`
	Value      string    `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e *PoolConfigChangedEvent) EventName() string     { return "staking.pool_config_changed" }
func (e *PoolConfigChangedEvent) OccurredAt() time.Time { return e.Timestamp }
